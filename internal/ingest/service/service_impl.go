package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/orderlake/internal/config"
	"github.com/smallbiznis/orderlake/internal/ingest/domain"
	"github.com/smallbiznis/orderlake/internal/ingest/normalize"
	"github.com/smallbiznis/orderlake/internal/ingest/signature"
	"github.com/smallbiznis/orderlake/internal/observability/metrics"
	"github.com/smallbiznis/orderlake/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In
	DB         *gorm.DB
	Log        *zap.Logger
	Cfg        config.Config
	Tuning     *config.TuningHolder
	Repo       domain.Repository
	Verifier   *signature.Verifier
	Normalizer *normalize.Normalizer
	Metrics    *metrics.Metrics `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        config.Config
	tuning     *config.TuningHolder
	repo       domain.Repository
	verifier   *signature.Verifier
	normalizer *normalize.Normalizer
	metrics    *metrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log,
		cfg:        p.Cfg,
		tuning:     p.Tuning,
		repo:       p.Repo,
		verifier:   p.Verifier,
		normalizer: p.Normalizer,
		metrics:    p.Metrics,
	}
}

// IngestOrder runs one delivery through the full pipeline: verify the
// signature over the raw bytes, normalize into warehouse rows, check
// for a prior delivery of the same order, then write both tables.
func (s *service) IngestOrder(ctx context.Context, payload []byte, digest string) (domain.Result, error) {
	started := time.Now()
	tuning := s.tuning.Current()

	if !s.verifier.Verify(payload, digest) {
		reason := "mismatch"
		if digest == "" {
			reason = "missing_header"
		}
		s.metrics.RecordSignatureFailure(ctx, reason)
		s.metrics.RecordOrderIngested(ctx, "rejected_signature")
		return domain.Result{}, domain.ErrInvalidSignature
	}

	order, products, err := s.normalizer.Normalize(payload)
	if err != nil {
		s.log.Warn("rejected malformed order payload",
			zap.Error(err),
			zap.String("payload_snippet", snippet(payload, tuning.LogSnippetBytes)),
		)
		s.metrics.RecordOrderIngested(ctx, "rejected_payload")
		return domain.Result{}, err
	}

	// Point lookup before any write. Two concurrent deliveries of the
	// same order can both pass this check and write twice; downstream
	// consumers deduplicate on order_id.
	exists, err := s.repo.OrderExists(ctx, s.db, order.OrderID)
	if err != nil {
		s.log.Error("duplicate check failed",
			zap.String("order_id", order.OrderID),
			zap.Error(err),
		)
		return domain.Result{}, fmt.Errorf("%w: duplicate check: %v", domain.ErrWriteFailed, err)
	}
	if exists {
		s.log.Info("skipping already processed order",
			zap.String("order_id", order.OrderID),
		)
		s.metrics.RecordDuplicateOrder(ctx)
		s.metrics.RecordOrderIngested(ctx, "duplicate")
		return domain.Result{OrderID: order.OrderID, Duplicate: true}, domain.ErrAlreadyProcessed
	}

	attempts := tuning.WriteAttempts

	err = s.writeWithRetry(ctx, s.cfg.OrdersTable, order.OrderID, attempts, func() error {
		return s.repo.InsertOrders(ctx, s.db, []domain.OrderRow{order})
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			s.metrics.RecordDuplicateOrder(ctx)
			s.metrics.RecordOrderIngested(ctx, "duplicate")
			return domain.Result{OrderID: order.OrderID, Duplicate: true}, domain.ErrAlreadyProcessed
		}
		s.metrics.RecordOrderIngested(ctx, "write_failed")
		return domain.Result{}, domain.ErrWriteFailed
	}
	s.metrics.RecordRowsWritten(ctx, s.cfg.OrdersTable, 1)

	err = s.writeWithRetry(ctx, s.cfg.OrderProductsTable, order.OrderID, attempts, func() error {
		return s.repo.InsertProducts(ctx, s.db, products)
	})
	if err != nil {
		s.metrics.RecordOrderIngested(ctx, "write_failed")
		return domain.Result{}, domain.ErrWriteFailed
	}
	s.metrics.RecordRowsWritten(ctx, s.cfg.OrderProductsTable, len(products))

	s.metrics.RecordOrderIngested(ctx, "ok")
	s.log.Info("order ingested",
		zap.String("order_id", order.OrderID),
		zap.String("shop_id", order.ShopID),
		zap.Int("product_rows", len(products)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return domain.Result{OrderID: order.OrderID, ProductCount: len(products)}, nil
}

// writeWithRetry retries the same rows up to attempts times. Duplicate
// key violations are surfaced immediately since retrying cannot help.
func (s *service) writeWithRetry(ctx context.Context, table, orderID string, attempts int, write func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = write()
		if err == nil {
			return nil
		}
		if db.IsDuplicateKeyErr(err) {
			return err
		}

		s.log.Error("warehouse insert failed",
			zap.String("table", table),
			zap.String("order_id", orderID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
		if attempt < attempts {
			s.metrics.RecordWriteRetry(ctx, table)
		}
	}
	return err
}

func snippet(payload []byte, max int) string {
	if max <= 0 || len(payload) <= max {
		return string(payload)
	}
	return string(payload[:max]) + "..."
}
