package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/orderlake/internal/config"
	ingestdomain "github.com/smallbiznis/orderlake/internal/ingest/domain"
	"github.com/smallbiznis/orderlake/internal/observability"
	obsmiddleware "github.com/smallbiznis/orderlake/internal/observability/logger"
	obstracing "github.com/smallbiznis/orderlake/internal/observability/tracing"
	"github.com/smallbiznis/orderlake/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	tuning    *config.TuningHolder
	ingestSvc ingestdomain.Service
	limiter   *ratelimit.WebhookLimiter
	log       *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Tuning    *config.TuningHolder
	IngestSvc ingestdomain.Service
	Limiter   *ratelimit.WebhookLimiter `optional:"true"`
	Log       *zap.Logger
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		tuning:    p.Tuning,
		ingestSvc: p.IngestSvc,
		limiter:   p.Limiter,
		log:       p.Log,
	}

	s.engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": p.Cfg.AppName, "status": "ok"})
	})
	s.engine.POST("/", s.HandleOrderWebhook)
	s.engine.POST("/webhooks/orders", s.HandleOrderWebhook)

	return s
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    net.JoinHostPort("", cfg.Port),
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
