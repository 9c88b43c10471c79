package ingest

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderlake/internal/clock"
	"github.com/smallbiznis/orderlake/internal/config"
	"github.com/smallbiznis/orderlake/internal/ingest/normalize"
	"github.com/smallbiznis/orderlake/internal/ingest/repository"
	"github.com/smallbiznis/orderlake/internal/ingest/service"
	"github.com/smallbiznis/orderlake/internal/ingest/signature"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("ingest",
	fx.Provide(repository.Provide),
	fx.Provide(func(cfg config.Config, log *zap.Logger) *signature.Verifier {
		return signature.New(cfg.WebhookSecret, log)
	}),
	fx.Provide(func(node *snowflake.Node, clk clock.Clock) *normalize.Normalizer {
		return normalize.New(node, clk)
	}),
	fx.Provide(service.NewService),
)
