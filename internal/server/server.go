// Package server wires the HTTP surface: gin engine, middleware chain and
// the versioned API routes.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	calculationdomain "github.com/kpiflow/incento/internal/calculation/domain"
	"github.com/kpiflow/incento/internal/config"
	factdomain "github.com/kpiflow/incento/internal/fact/domain"
	indicatordomain "github.com/kpiflow/incento/internal/indicator/domain"
	"github.com/kpiflow/incento/internal/observability"
	obslogger "github.com/kpiflow/incento/internal/observability/logger"
	rundomain "github.com/kpiflow/incento/internal/run/domain"
	ruledomain "github.com/kpiflow/incento/internal/rule/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	indicatorSvc   indicatordomain.Service
	factSvc        factdomain.Service
	ruleSvc        ruledomain.Service
	calculationSvc calculationdomain.Service
	runSvc         rundomain.Service
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	IndicatorSvc   indicatordomain.Service
	FactSvc        factdomain.Service
	RuleSvc        ruledomain.Service
	CalculationSvc calculationdomain.Service
	RunSvc         rundomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		indicatorSvc:   p.IndicatorSvc,
		factSvc:        p.FactSvc,
		ruleSvc:        p.RuleSvc,
		calculationSvc: p.CalculationSvc,
		runSvc:         p.RunSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/indicators", s.CreateIndicator)
	v1.GET("/indicators", s.ListIndicators)
	v1.GET("/indicators/:id", s.GetIndicator)
	v1.PATCH("/indicators/:id", s.UpdateIndicator)
	v1.DELETE("/indicators/:id", s.DeactivateIndicator)
	v1.GET("/indicator-values", s.ResolveIndicatorValue)

	v1.POST("/expressions/test", s.TestExpression)

	v1.POST("/facts/import", s.ImportFacts)
	v1.GET("/facts", s.ListFacts)

	v1.POST("/rules", s.CreateRule)
	v1.GET("/rules", s.ListRules)
	v1.GET("/rules/in-force", s.ListRulesInForce)
	v1.GET("/rules/:id", s.GetRule)
	v1.PUT("/rules/:id", s.UpdateRule)
	v1.DELETE("/rules/:id", s.DeleteRule)

	v1.POST("/runs", s.RunCalculation)
	v1.GET("/runs", s.ListRuns)
	v1.GET("/runs/:id", s.GetRun)
	v1.PATCH("/runs/:id/status", s.SetRunStatus)
	v1.DELETE("/runs/:id", s.DeleteRun)
}
