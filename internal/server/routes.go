package server

import (
	"github.com/nulzo/polly/internal/server/middleware"
	v1 "github.com/nulzo/polly/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.ErrorHandler(s.logger))

	limiter := middleware.NewRateLimiter(
		s.config.RateLimit.RequestsPerSecond,
		s.config.RateLimit.Burst,
		s.logger,
	)

	healthHandler := v1.NewHealthHandler()
	s.router.GET("/health", healthHandler.Health)

	api := s.router.Group("/v1")
	api.Use(limiter.Middleware())
	{
		chatHandler := v1.NewChatHandler(s.deps.Dispatcher, s.deps.Ingestor, s.config.Defaults)
		api.POST("/chat", chatHandler.Chat)
		api.POST("/chat/agents", chatHandler.Agents)
		api.POST("/chat/structured_output", chatHandler.StructuredOutput)

		providerHandler := v1.NewProviderHandler(s.deps.Registry, s.deps.Prober)
		api.POST("/test-provider", providerHandler.TestProvider)
		api.GET("/providers", providerHandler.List)

		analyticsHandler := v1.NewAnalyticsHandler(s.deps.Analytics)
		api.GET("/usage", analyticsHandler.Usage)
	}
}
