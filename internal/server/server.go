package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nulzo/polly/internal/analytics"
	"github.com/nulzo/polly/internal/config"
	"github.com/nulzo/polly/internal/dispatch"
	"github.com/nulzo/polly/internal/probe"
	"github.com/nulzo/polly/internal/registry"
	"github.com/nulzo/polly/internal/server/middleware"
	"github.com/nulzo/polly/internal/server/validator"
)

const serviceName = "polly"

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Registry   *registry.Registry
	Dispatcher *dispatch.Dispatcher
	Prober     *probe.Prober
	Ingestor   analytics.Ingestor
	Analytics  analytics.Service
}

type Server struct {
	router *gin.Engine
	config *config.Config
	logger *zap.Logger
	deps   Deps
}

func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validator.InitValidator()

	engine := gin.New()
	engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(logger, true))
	engine.Use(middleware.Tracing(serviceName))

	s := &Server{
		router: engine,
		config: cfg,
		logger: logger,
		deps:   deps,
	}

	s.SetupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
