package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/database"
	"stockledger/internal/forecast"
	"stockledger/internal/mailer"
	custommiddleware "stockledger/internal/middleware"
	"stockledger/internal/repository"
	"stockledger/internal/service"
	"stockledger/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// routes bundles every handler so tests can build a router without a database
type routes struct {
	products      *transport.ProductHandler
	stock         *transport.StockHandler
	cart          *transport.CartHandler
	notifications *transport.NotificationHandler
	restock       *transport.RestockHandler
	analytics     *transport.AnalyticsHandler
	public        *transport.PublicHandler
}

func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) *Server {
	sqlDB := db.DB()

	// Initialize repositories
	productRepo := repository.NewProductRepository(sqlDB)
	transactionRepo := repository.NewTransactionRepository(sqlDB)
	cartRepo := repository.NewCartRepository(sqlDB)
	notificationRepo := repository.NewNotificationRepository(sqlDB)
	orderRepo := repository.NewPurchaseOrderRepository(sqlDB)

	// Outbound collaborators
	var sender mailer.Sender
	if cfg.SMTP.Enabled {
		sender = mailer.NewSMTPSender(mailer.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     strconv.Itoa(cfg.SMTP.Port),
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Timeout:  cfg.SMTP.Timeout,
		}, logger)
	} else {
		sender = mailer.NewLogSender(logger)
	}

	forecaster := forecast.NewClient(forecast.Config{
		BaseURL:          cfg.Forecast.URL,
		Timeout:          cfg.Forecast.Timeout,
		Retries:          cfg.Forecast.Retries,
		FailureThreshold: cfg.Forecast.FailureThreshold,
		OpenTimeout:      cfg.Forecast.OpenTimeout,
	}, logger)

	// Initialize services
	stockService := service.NewStockService(productRepo, transactionRepo, logger)
	productService := service.NewProductService(productRepo, logger)
	cartService := service.NewCartService(cartRepo, productRepo, stockService, logger)
	alertService := service.NewAlertService(productRepo, notificationRepo, logger)
	analyticsService := service.NewAnalyticsService(transactionRepo, productRepo)
	orderService := service.NewPurchaseOrderService(orderRepo, productRepo, sender, forecaster, service.PurchaseOrderConfig{
		PublicBaseURL:       cfg.Server.PublicBaseURL,
		ForecastConcurrency: cfg.Forecast.Concurrency,
	}, logger)

	// Initialize handlers
	h := routes{
		products:      transport.NewProductHandler(productService, logger),
		stock:         transport.NewStockHandler(stockService, logger),
		cart:          transport.NewCartHandler(cartService, productService, logger),
		notifications: transport.NewNotificationHandler(alertService, logger),
		restock:       transport.NewRestockHandler(orderService, logger),
		analytics:     transport.NewAnalyticsHandler(analyticsService, logger),
		public:        transport.NewPublicHandler(orderService, logger),
	}

	publicLimit := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.PublicRequests,
		Window:            cfg.RateLimit.PublicWindow,
		KeyPrefix:         "rate_limit:po_confirm",
		ByIP:              true,
	}, logger)

	router := newRouter(cfg, logger, h, custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger), publicLimit, db.Health)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}
}

func newRouter(
	cfg *config.Config,
	logger *zap.Logger,
	h routes,
	authMiddleware func(http.Handler) http.Handler,
	publicLimit func(http.Handler) http.Handler,
	health func(context.Context) map[string]string,
) chi.Router {
	router := chi.NewRouter()

	for _, mw := range custommiddleware.DefaultMiddlewareStack(logger, cfg.Server.TrustProxy) {
		router.Use(mw)
	}
	router.Use(custommiddleware.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.IsDevelopment()))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusNotFound, "resource not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		custommiddleware.RespondWithError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := health(r.Context())
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		custommiddleware.RespondWithJSON(w, status, map[string]any{
			"status":   http.StatusText(status),
			"database": stats,
		})
	})

	// Register routes
	h.products.RegisterRoutes(router, authMiddleware)
	h.stock.RegisterRoutes(router, authMiddleware)
	h.cart.RegisterRoutes(router, authMiddleware)
	h.notifications.RegisterRoutes(router, authMiddleware)
	h.restock.RegisterRoutes(router, authMiddleware)
	h.analytics.RegisterRoutes(router, authMiddleware)
	h.public.RegisterRoutes(router, publicLimit)

	return router
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	var errs []error

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
			errs = append(errs, err)
		}
	}

	// Close database connection
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
			errs = append(errs, err)
		}
	}

	_ = s.logger.Sync()
	return errors.Join(errs...)
}
