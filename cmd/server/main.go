package main

import (
	"context"
	"crypto/tls"
	"encoding/pem"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finearr/finearr/internal/config"
	"github.com/finearr/finearr/internal/handler"
	"github.com/finearr/finearr/internal/metrics"
	"github.com/finearr/finearr/internal/middleware"
	"github.com/finearr/finearr/internal/repository"
	"github.com/finearr/finearr/internal/service"
	"github.com/finearr/finearr/internal/service/arr"
	"github.com/finearr/finearr/internal/service/plex"
	"github.com/finearr/finearr/internal/store"
	"github.com/finearr/finearr/internal/validation"
	"github.com/finearr/finearr/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	docs, err := openStore(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("Failed to open document store", zap.Error(err))
	}
	defer func() { _ = docs.Close() }()

	logger.Log.Info("Document store ready", zap.String("driver", cfg.Storage.Driver))

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Optional RabbitMQ ledger events
	var events service.EventPublisher = service.NoopPublisher{}
	var publisherHealth handler.HealthReporter
	var eventQueue *service.AsyncPublisher
	if cfg.RabbitMQ.Enabled {
		publisher, err := service.NewMessagePublisher(&cfg.RabbitMQ)
		if err != nil {
			logger.Log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer func() { _ = publisher.Close() }()
		eventQueue = service.NewAsyncPublisher(publisher, cfg.RabbitMQ.QueueSize, service.EventPublishTimeout)
		events = eventQueue
		publisherHealth = publisher
		logger.Log.Info("Ledger events enabled", zap.String("exchange", cfg.RabbitMQ.Exchange))
	}

	// Admin sessions live in Redis when configured, in memory otherwise
	var sessions service.SessionStore = service.NewMemorySessionStore()
	var sessionHealth handler.Pinger
	if cfg.Redis.URL != "" {
		opts, err := service.ParseRedisURL(cfg.Redis.URL)
		if err != nil {
			logger.Log.Fatal("Invalid Redis URL", zap.Error(err))
		}
		redisClient := redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()

		redisSessions := service.NewRedisSessionStore(redisClient)
		if err := redisSessions.Ping(ctx); err != nil {
			logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		sessions = redisSessions
		sessionHealth = redisSessions
		logger.Log.Info("Admin sessions stored in Redis")
	}

	defaultHash, err := service.HashPassword(cfg.Admin.DefaultPassword)
	if err != nil {
		logger.Log.Fatal("Failed to hash default admin password", zap.Error(err))
	}

	userRepo := repository.NewUserRepository(docs)
	adminRepo := repository.NewAdminRepository(docs, defaultHash)
	permissionRepo := repository.NewPermissionRepository(docs)
	ledgerRepo := repository.NewLedgerRepository(docs)

	movies := arr.NewClient(arr.Radarr, cfg.Radarr, nil)
	shows := arr.NewClient(arr.Sonarr, cfg.Sonarr, nil)
	if !movies.Configured() {
		logger.Log.Warn("Radarr not configured, approved movies will not be sent to a downloader")
	}
	if !shows.Configured() {
		logger.Log.Warn("Sonarr not configured, approved shows will not be sent to a downloader")
	}
	dispatcher := service.NewAsyncDispatcher(service.NewArrDispatcher(movies, shows), cfg.Dispatch.Timeout, m)

	permissionService := service.NewPermissionService(permissionRepo)
	ledgerService := service.NewLedgerService(ledgerRepo, permissionService, dispatcher, events, m)
	plexClient := plex.NewClient(cfg.Plex, nil)
	logger.Log.Info("Plex sign-in ready", zap.String("clientIdentifier", plexClient.ClientIdentifier()))
	broker := service.NewSessionBroker(plexClient, userRepo, cfg.UI.DefaultBackground)
	userService := service.NewUserService(userRepo)

	adminService, err := service.NewAdminService(adminRepo, sessions, cfg.Admin.JWTSecret, cfg.Admin.SessionTTL)
	if err != nil {
		logger.Log.Fatal("Failed to initialize admin service", zap.Error(err))
	}
	if cfg.Admin.JWTSecret == "" {
		logger.Log.Warn("No admin JWT secret configured, admin sessions will not survive a restart")
	}

	validator := validation.New(cfg.Validation.MaxFieldLength, cfg.Validation.Enabled)

	gin.SetMode(gin.ReleaseMode)
	engine := handler.Router{
		Config:      handler.NewConfigHandler(cfg),
		Plex:        handler.NewPlexHandler(broker),
		Admin:       handler.NewAdminHandler(adminService, validator),
		Requests:    handler.NewRequestHandler(ledgerService, broker, validator),
		Permissions: handler.NewPermissionHandler(permissionService),
		Users:       handler.NewUserHandler(userService, validator),
		Health:      handler.NewHealthHandler(docs, sessionHealth, publisherHealth),
		AdminGuard:  middleware.NewAdminAuth(adminService, logger.Named("auth")).Middleware(),
		Metrics:     m,
		Logger:      logger.Named("http"),
	}.Engine()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.TLS.Enabled {
		tlsConfig, err := loadTLS(cfg.TLS)
		if err != nil {
			logger.Log.Fatal("Failed to load TLS material", zap.Error(err))
		}
		server.TLSConfig = tlsConfig
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Log.Info("Server starting",
			zap.Int("port", cfg.Server.Port),
			zap.Bool("tls", cfg.TLS.Enabled),
		)
		if cfg.TLS.Enabled {
			serverErrors <- server.ListenAndServeTLS("", "")
			return
		}
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Server error", zap.Error(err))
		}
	case sig := <-shutdown:
		logger.Log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Log.Error("Graceful shutdown failed", zap.Error(err))
			if err := server.Close(); err != nil {
				logger.Log.Error("Failed to close server", zap.Error(err))
			}
		}

		if err := dispatcher.Wait(ctx); err != nil {
			logger.Log.Warn("Dispatches still in flight at shutdown", zap.Error(err))
		}

		if eventQueue != nil {
			if err := eventQueue.Close(ctx); err != nil {
				logger.Log.Warn("Ledger events still queued at shutdown", zap.Error(err))
			}
		}

		logger.Log.Info("Server stopped gracefully")
	}
}

// openStore opens the configured document store.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Storage.Driver == "postgres" {
		pool, err := store.NewPool(ctx, store.PoolConfig{
			URL:             cfg.Database.URL(),
			MaxConns:        int32(cfg.Database.MaxConnections),
			MinConns:        int32(cfg.Database.MinConnections),
			MaxConnLifetime: cfg.Database.MaxLifetime,
			MaxConnIdleTime: cfg.Database.MaxIdleTime,
		})
		if err != nil {
			return nil, err
		}
		return store.NewPostgresStore(pool), nil
	}

	return store.NewFileStore(cfg.Storage.DataDir)
}

// loadTLS loads the key pair and appends the optional CA bundle to the
// served certificate chain.
func loadTLS(cfg config.TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}

	if cfg.CAFile != "" {
		raw, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		for {
			var block *pem.Block
			block, raw = pem.Decode(raw)
			if block == nil {
				break
			}
			if block.Type == "CERTIFICATE" {
				cert.Certificate = append(cert.Certificate, block.Bytes)
			}
		}
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
