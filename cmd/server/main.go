package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory-service/internal/cache"
	"inventory-service/internal/config"
	"inventory-service/internal/database"
	"inventory-service/internal/events"
	"inventory-service/internal/handlers"
	"inventory-service/internal/middleware"
	"inventory-service/internal/repository"
	"inventory-service/internal/routes"
	"inventory-service/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(cfg.Server.GinMode)

	// Base de datos
	db, err := database.Open(cfg.Database.Driver, cfg.Database.URL, database.PoolConfig{
		MaxOpenConns:     cfg.Database.MaxOpenConns,
		MaxIdleConns:     cfg.Database.MaxIdleConns,
		ConnMaxLifetime:  cfg.Database.ConnMaxLifetime,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = database.Migrate(migrateCtx, db, logger)
	cancel()
	if err != nil {
		logger.Fatal("Failed to migrate schema", zap.Error(err))
	}

	// Redis es opcional: sin él el caché queda solo en memoria
	var redisDB *database.RedisDB
	if cfg.Redis.URL != "" {
		redisDB, err = database.NewRedisDB(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Warn("Redis no disponible, se usa solo caché L1", zap.Error(err))
			redisDB = nil
		} else {
			defer redisDB.Close()
		}
	}

	var itemCache *cache.ItemCache
	if redisDB != nil {
		itemCache = cache.NewItemCache(redisDB.Client, cfg.Cache.L1Size, cfg.Cache.TTL, logger)
	} else {
		itemCache = cache.NewItemCache(nil, cfg.Cache.L1Size, cfg.Cache.TTL, logger)
	}
	defer itemCache.Close()

	// Difusión de cambios
	hub := events.NewHub(logger)
	defer hub.Close()
	publishers := events.MultiPublisher{hub}
	if cfg.Kafka.Enabled() {
		kafka, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Warn("Kafka no disponible, se publica solo por WebSocket", zap.Error(err))
		} else {
			defer kafka.Close()
			publishers = append(publishers, kafka)
		}
	}

	// Repositories y servicios
	stockRepo := repository.NewStockRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	stockService := services.NewStockService(stockRepo, publishers, logger)
	catalogService := services.NewCatalogService(catalogRepo, stockService, itemCache, logger)
	monitoringService := services.NewMonitoringService(logger, cfg, db, redisDB, itemCache, stockService, hub)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(routes.CORS(cfg.Server.CORSOrigins))

	routes.SetupRoutes(router, routes.Handlers{
		Stock:         handlers.NewStockHandler(stockService, logger),
		Catalog:       handlers.NewCatalogHandler(catalogService, logger),
		Monitoring:    handlers.NewMonitoringHandler(monitoringService, hub, logger),
		HealthChecker: middleware.NewHealthChecker(db, redisDB, logger),
		Auth:          middleware.NewAuthenticator(cfg.JWT, logger),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	middleware.ServerInfo(cfg, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Los WebSocket no se drenan con Shutdown: se cierran antes
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Server.GinMode == gin.DebugMode {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
