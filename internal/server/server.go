package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/metascope/backend/internal/api/http"
	"github.com/metascope/backend/internal/api/middleware"
	"github.com/metascope/backend/internal/infrastructure/config"
	"github.com/metascope/backend/internal/infrastructure/logging"
	"github.com/metascope/backend/internal/infrastructure/monitoring"
	"github.com/metascope/backend/internal/metadata"
	"github.com/metascope/backend/internal/proxy"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg     *config.Config
	log     *logging.Logger
	httpSrv *http.Server
}

// NewServer wires the proxy pipeline behind the gin router.
func NewServer(cfg *config.Config, log *logging.Logger) *Server {
	policy := proxy.Policy{
		Timeout:        cfg.Proxy.Timeout,
		MaxRedirects:   cfg.Proxy.MaxRedirects,
		MaxBytes:       cfg.Proxy.MaxBytes,
		MaxURLLength:   cfg.Proxy.MaxURLLength,
		UserAgent:      cfg.Proxy.UserAgent,
		Production:     cfg.Server.IsProduction(),
		AllowHTTPInDev: cfg.Proxy.AllowHTTPInDev,
	}

	validator := proxy.NewValidator(policy)
	fetcher := proxy.NewFetcher(policy, validator, log)
	metrics := monitoring.NewMetrics()
	handlers := apihttp.NewHandlers(fetcher, policy, metadata.NewParser(), metrics, log)

	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(monitoring.Middleware(metrics))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api", middleware.BearerAuth(cfg.Auth.Secret))
	api.POST("/fetch", handlers.Fetch)

	return &Server{
		cfg: cfg,
		log: log.Component("server"),
		httpSrv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           gzhttp.GzipHandler(router),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run starts the server and blocks until it stops.
func (s *Server) Run() error {
	s.log.Info("starting fetch proxy",
		zap.String("addr", s.httpSrv.Addr),
		zap.String("environment", s.cfg.Server.Environment),
	)
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down")
	return s.httpSrv.Shutdown(ctx)
}
