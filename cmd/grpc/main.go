package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fekuna/omnipos-category-service/config"
	"github.com/fekuna/omnipos-category-service/internal/auth"
	"github.com/fekuna/omnipos-category-service/internal/category"
	"github.com/fekuna/omnipos-category-service/internal/pkg/broker"
	"github.com/fekuna/omnipos-category-service/internal/pkg/cache"
	"github.com/fekuna/omnipos-category-service/internal/pkg/database/postgres"
	"github.com/fekuna/omnipos-category-service/internal/pkg/logger"
	"github.com/fekuna/omnipos-category-service/internal/pkg/metrics"
	"github.com/fekuna/omnipos-category-service/internal/server"

	catH "github.com/fekuna/omnipos-category-service/internal/category/handler"
	"github.com/fekuna/omnipos-category-service/internal/category/listener"
	catRepoPkg "github.com/fekuna/omnipos-category-service/internal/category/repository"
	catUCPkg "github.com/fekuna/omnipos-category-service/internal/category/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	logConfig := &logger.ZapLoggerConfig{
		IsDevelopment:     false,
		Encoding:          "json",
		Level:             "info",
		DisableCaller:     cfg.Logger.DisableCaller,
		DisableStacktrace: cfg.Logger.DisableStacktrace,
	}

	if cfg.Server.AppEnv == "development" || cfg.Server.AppEnv == "dev" {
		logConfig.IsDevelopment = true
		logConfig.Encoding = cfg.Logger.Encoding
		logConfig.Level = cfg.Logger.Level
	}

	appLogger := logger.NewZapLogger(logConfig)
	defer appLogger.Sync()

	// 3. Connect to Database
	db, err := postgres.NewPostgres(&postgres.Config{
		Driver:          cfg.Postgres.Driver,
		SQLitePath:      cfg.Postgres.SQLitePath,
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Postgres.ConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.Postgres.ConnMaxIdleTime) * time.Second,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()
	appLogger.Info("Connected to database", zap.String("driver", cfg.Postgres.Driver))

	// 4. Initialize Repository
	catRepo := catRepoPkg.NewPGRepository(db)
	if err := catRepo.Migrate(context.Background()); err != nil {
		appLogger.Fatal("Could not migrate categories schema", zap.Error(err))
	}

	readyChecks := map[string]server.Check{"database": db.PingContext}

	// 5. Initialize Cache
	var treeCache cache.Cache = cache.NewMemoryCache(0)
	sharedCache := false
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedisClient(&cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			appLogger.Warn("Could not connect to Redis, using in-process cache", zap.Error(err))
		} else {
			defer redisClient.Close()
			treeCache = redisClient
			sharedCache = true
			readyChecks["cache"] = redisClient.Ping
			appLogger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr))
		}
	}

	// 6. Initialize Event Publisher
	var publisher category.EventPublisher = broker.NopPublisher{}
	if cfg.Kafka.EventsEnabled {
		producer := broker.NewProducer(&broker.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		defer producer.Close()
		publisher = producer
		appLogger.Info("Publishing category events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// An in-process cache only sees this replica's writes; follow the
	// category topic to drop entries other replicas invalidated.
	if cfg.Kafka.EventsEnabled && !sharedCache {
		consumer := broker.NewConsumer(&broker.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.ConsumerGroup(),
		})
		defer consumer.Close()
		go listener.NewInvalidationListener(consumer, treeCache, appLogger).Start(ctx)
	}

	// 7. Initialize UseCase and Handler
	collector := metrics.NewCollector("omnipos")
	catUC := catUCPkg.NewCategoryUseCase(catRepo, treeCache, publisher, collector, appLogger, catUCPkg.Config{
		TreeTTL: cfg.Cache.TreeTTL,
		NodeTTL: cfg.Cache.NodeTTL,
	})
	catHandler := catH.NewCategoryHandler(catUC, appLogger)

	// 8. Start gRPC Server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	lis, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(auth.ContextInterceptor()),
	)

	catH.RegisterCategoryTreeServiceServer(grpcServer, catHandler)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(catH.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("port", port))

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	// 9. Start ops HTTP server
	httpPort := cfg.Server.HTTPPort
	if !strings.HasPrefix(httpPort, ":") {
		httpPort = ":" + httpPort
	}
	opsServer := &http.Server{
		Addr:              httpPort,
		Handler:           server.NewOpsRouter(appLogger, collector.Handler(), readyChecks),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		appLogger.Info("Starting ops HTTP server", zap.String("port", httpPort))
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("ops server stopped", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("ops server shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
}
