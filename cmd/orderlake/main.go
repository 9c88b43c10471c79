package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/orderlake/internal/clock"
	"github.com/smallbiznis/orderlake/internal/config"
	"github.com/smallbiznis/orderlake/internal/ingest"
	"github.com/smallbiznis/orderlake/internal/migration"
	"github.com/smallbiznis/orderlake/internal/observability"
	"github.com/smallbiznis/orderlake/internal/ratelimit"
	"github.com/smallbiznis/orderlake/internal/server"
	"github.com/smallbiznis/orderlake/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,
		ingest.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
