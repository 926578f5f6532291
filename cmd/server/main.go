// cmd/server/main.go
// HTTP Server
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pesapal-proxy/internal/config"
	"pesapal-proxy/internal/handler"
	"pesapal-proxy/internal/models"
	"pesapal-proxy/internal/pesapal"
	"pesapal-proxy/internal/repository"
	"pesapal-proxy/internal/service"
	"pesapal-proxy/pkg/database"
	"pesapal-proxy/pkg/logger"
	"pesapal-proxy/pkg/middleware"
	"pesapal-proxy/pkg/redis"
)

const (
	serviceName   = "pesapal-proxy"
	stateCacheTTL = 24 * time.Hour
)

func main() {
	// Load configuration
	cfg, err := config.Load()

	// Initialize logger
	log := logger.New(serviceName, cfg.Environment)
	defer log.Sync()

	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()

	// Initialize stores
	stores, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize stores", zap.Error(err))
	}
	defer stores.Close()

	// Initialize gateway client
	client := pesapal.NewClient(cfg.Pesapal.Endpoints(), cfg.Pesapal.Credentials(), cfg.Pesapal.Timeout, log)
	reconciler := service.NewReconciler(stores.states, log)

	if cfg.Pesapal.NotificationID == "" {
		cfg = registerIPN(ctx, cfg, client, reconciler, log)
	}

	// Initialize services
	paymentService := service.NewPaymentService(client, reconciler, cfg, log)
	notificationService := service.NewNotificationService(stores.notifications, reconciler, paymentService, log)

	// Initialize handlers
	paymentHandler := handler.NewPaymentHandler(paymentService, cfg.AppReturnURL, log)
	notificationHandler := handler.NewNotificationHandler(notificationService, log)
	healthHandler := handler.NewHealthHandler(serviceName, cfg, stores)

	// Setup router
	router := setupRouter(cfg, paymentHandler, notificationHandler, healthHandler, log)

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2*cfg.Pesapal.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("starting server",
			zap.String("port", cfg.Port),
			zap.String("pesapal_env", string(cfg.Pesapal.Env)),
			zap.Bool("notification_id_configured", cfg.Pesapal.NotificationID != ""))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}

// registerIPN registers the proxy's IPN URL when asked to and returns cfg with the
// resulting notification id. Without it orders are refused until one is configured.
func registerIPN(ctx context.Context, cfg config.Config, client *pesapal.Client, reconciler *service.Reconciler, log *zap.Logger) config.Config {
	if !cfg.Pesapal.AutoRegisterIPN {
		log.Warn("PESAPAL_NOTIFICATION_ID is not set; payments will be refused until it is configured")
		return cfg
	}

	bootstrap := service.NewPaymentService(client, reconciler, cfg, log)
	id, err := bootstrap.RegisterIPN(ctx)
	if err != nil {
		log.Error("IPN auto-registration failed", zap.Error(err))
		return cfg
	}
	return cfg.WithNotificationID(id)
}

type stores struct {
	states        service.StateStore
	notifications service.NotificationStore
	db            *database.PostgresDB
	redis         *redis.Client
}

// openStores picks Postgres and Redis when configured and falls back to memory
func openStores(ctx context.Context, cfg config.Config, log *zap.Logger) (*stores, error) {
	s := &stores{
		states:        repository.NewMemoryStateStore(),
		notifications: repository.NewMemoryNotificationStore(),
	}

	var backing repository.Store
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, models.OrderStateSchema, models.NotificationSchema)
		if err != nil {
			return nil, err
		}
		s.db = db
		orderStates := repository.NewOrderStateRepository(db.DB)
		backing = orderStates
		s.states = orderStates
		s.notifications = repository.NewNotificationRepository(db.DB)
		log.Info("using postgres stores")
	}

	if cfg.RedisURL != "" {
		s.redis = redis.NewRedisClient(cfg.RedisURL)
		if err := s.redis.Ping(ctx); err != nil {
			log.Warn("redis is not reachable yet", zap.Error(err))
		}
		s.states = repository.NewRedisStateStore(s.redis, backing, stateCacheTTL, log)
		if s.db == nil {
			s.notifications = repository.NewRedisNotificationStore(s.redis, stateCacheTTL, log)
		}
		log.Info("using redis stores", zap.Bool("write_through", backing != nil))
	}

	return s, nil
}

func (s *stores) Ping(ctx context.Context) error {
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Ping(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (s *stores) Close() {
	if s.db != nil {
		s.db.Close()
	}
	if s.redis != nil {
		s.redis.Close()
	}
}

func setupRouter(cfg config.Config, payments *handler.PaymentHandler, notifications *handler.NotificationHandler, health *handler.HealthHandler, log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, time.Minute)

	router.GET("/", health.Root)

	// Health checks
	router.GET("/health", health.Health)
	router.GET("/ready", health.Ready)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/pesapal")
	{
		// The gateway must always reach the IPN receiver
		api.POST("/ipn", notifications.Receive)
		api.GET("/ipn", notifications.Receive)

		limited := api.Group("", limiter.Handler())
		limited.POST("/pay", payments.CreatePayment)
		limited.GET("/status", payments.GetStatus)
		limited.GET("/status/:trackingId", payments.GetStatus)
		limited.GET("/callback", payments.Callback)
		limited.POST("/ipn/register", payments.RegisterIPN)
	}

	return router
}
