package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderlake/internal/clock"
	"github.com/smallbiznis/orderlake/internal/config"
	"github.com/smallbiznis/orderlake/internal/ingest/domain"
	"github.com/smallbiznis/orderlake/internal/ingest/normalize"
	"github.com/smallbiznis/orderlake/internal/ingest/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) OrderExists(ctx context.Context, db *gorm.DB, orderID string) (bool, error) {
	args := m.Called(ctx, db, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *mockRepo) InsertOrders(ctx context.Context, db *gorm.DB, rows []domain.OrderRow) error {
	args := m.Called(ctx, db, rows)
	return args.Error(0)
}

func (m *mockRepo) InsertProducts(ctx context.Context, db *gorm.DB, rows []domain.ProductRow) error {
	args := m.Called(ctx, db, rows)
	return args.Error(0)
}

const testSecret = "topsecret"

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func newTestService(t *testing.T, repo domain.Repository, log *zap.Logger) domain.Service {
	t.Helper()

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder := &config.TuningHolder{}
	holder.Store(config.DefaultTuning())

	return NewService(ServiceParam{
		DB:  nil,
		Log: log,
		Cfg: config.Config{
			OrdersTable:        "orders",
			OrderProductsTable: "order_products",
		},
		Tuning:     holder,
		Repo:       repo,
		Verifier:   signature.New(testSecret, log),
		Normalizer: normalize.New(node, clock.NewFakeClock(time.Now())),
	})
}

func validPayload() []byte {
	return []byte(`{
		"id": 123,
		"total_price": "50.00",
		"line_items": [
			{"product_id": 9, "title": "Widget", "quantity": 2, "price": "25.00"}
		]
	}`)
}

func TestIngestOrderWritesBothTables(t *testing.T) {
	repo := new(mockRepo)
	repo.On("OrderExists", mock.Anything, mock.Anything, "123").Return(false, nil)
	repo.On("InsertOrders", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("InsertProducts", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(t, repo, zap.NewNop())
	payload := validPayload()

	res, err := svc.IngestOrder(context.Background(), payload, sign(payload))
	require.NoError(t, err)
	assert.Equal(t, "123", res.OrderID)
	assert.Equal(t, 1, res.ProductCount)
	assert.False(t, res.Duplicate)
	repo.AssertExpectations(t)
}

func TestIngestOrderRejectsBadSignatureWithoutTouchingRepo(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(t, repo, zap.NewNop())

	_, err := svc.IngestOrder(context.Background(), validPayload(), "bogus")
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	repo.AssertNotCalled(t, "OrderExists", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "InsertOrders", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestOrderRejectsMalformedPayload(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(t, repo, zap.NewNop())

	payload := []byte(`{"line_items": []}`)
	_, err := svc.IngestOrder(context.Background(), payload, sign(payload))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	repo.AssertNotCalled(t, "InsertOrders", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestOrderShortCircuitsDuplicates(t *testing.T) {
	repo := new(mockRepo)
	repo.On("OrderExists", mock.Anything, mock.Anything, "123").Return(true, nil)

	svc := newTestService(t, repo, zap.NewNop())
	payload := validPayload()

	res, err := svc.IngestOrder(context.Background(), payload, sign(payload))
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.True(t, res.Duplicate)
	assert.Equal(t, "123", res.OrderID)

	repo.AssertNotCalled(t, "InsertOrders", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "InsertProducts", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestOrderRetriesTransientWriteFailure(t *testing.T) {
	repo := new(mockRepo)
	repo.On("OrderExists", mock.Anything, mock.Anything, "123").Return(false, nil)
	repo.On("InsertOrders", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("connection reset")).Twice()
	repo.On("InsertOrders", mock.Anything, mock.Anything, mock.Anything).
		Return(nil).Once()
	repo.On("InsertProducts", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(t, repo, zap.NewNop())
	payload := validPayload()

	res, err := svc.IngestOrder(context.Background(), payload, sign(payload))
	require.NoError(t, err)
	assert.Equal(t, "123", res.OrderID)
	repo.AssertExpectations(t)
}

func TestIngestOrderGivesUpAfterMaxAttempts(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)

	repo := new(mockRepo)
	repo.On("OrderExists", mock.Anything, mock.Anything, "123").Return(false, nil)
	repo.On("InsertOrders", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("disk full")).Times(3)

	svc := newTestService(t, repo, zap.New(core))
	payload := validPayload()

	_, err := svc.IngestOrder(context.Background(), payload, sign(payload))
	assert.ErrorIs(t, err, domain.ErrWriteFailed)

	// one error log per failed attempt
	assert.Equal(t, 3, logs.FilterMessage("warehouse insert failed").Len())
	repo.AssertNotCalled(t, "InsertProducts", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestIngestOrderTreatsDuplicateKeyAsAlreadyProcessed(t *testing.T) {
	repo := new(mockRepo)
	repo.On("OrderExists", mock.Anything, mock.Anything, "123").Return(false, nil)
	repo.On("InsertOrders", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New(`duplicate key value violates unique constraint "ux_orders_order_id"`)).Once()

	svc := newTestService(t, repo, zap.NewNop())
	payload := validPayload()

	res, err := svc.IngestOrder(context.Background(), payload, sign(payload))
	assert.ErrorIs(t, err, domain.ErrAlreadyProcessed)
	assert.True(t, res.Duplicate)
	repo.AssertExpectations(t)
}

func TestIngestOrderFailsWhenProductWriteExhausted(t *testing.T) {
	repo := new(mockRepo)
	repo.On("OrderExists", mock.Anything, mock.Anything, "123").Return(false, nil)
	repo.On("InsertOrders", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	repo.On("InsertProducts", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("timeout")).Times(3)

	svc := newTestService(t, repo, zap.NewNop())
	payload := validPayload()

	_, err := svc.IngestOrder(context.Background(), payload, sign(payload))
	assert.ErrorIs(t, err, domain.ErrWriteFailed)
	repo.AssertExpectations(t)
}
