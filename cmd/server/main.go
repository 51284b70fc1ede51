package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/recruai/interview-sync/internal/api"
	"github.com/recruai/interview-sync/internal/auth"
	"github.com/recruai/interview-sync/internal/backend"
	"github.com/recruai/interview-sync/internal/db"
	"github.com/recruai/interview-sync/internal/preferences"
	"github.com/recruai/interview-sync/internal/timefmt"
	"github.com/recruai/interview-sync/internal/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("config: no .env file loaded: %v", err)
	}

	cfg, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("config: failed to load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("logger: failed to build: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	store, closeStore, err := openPreferenceStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("preferences: failed to open store", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer closeStore()

	authService, err := auth.NewService(cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		logger.Fatal("failed to initialise auth service", zap.Error(err))
	}

	client := backend.NewClient(cfg.Backend.URL(),
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(utils.Component("backend")),
	)

	formatter := timefmt.New(
		timefmt.WithLocalTimezone(cfg.DefaultTimezone),
		timefmt.WithLogger(utils.Component("timefmt")),
	)

	router := gin.New()
	router.Use(api.AccessLog(utils.Component("http")), gin.Recovery())
	api.NewHandler(authService, store, client, formatter, cfg.Polling, utils.Component("api")).RegisterRoutes(router)

	// No WriteTimeout: live websocket connections outlive any fixed write deadline.
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr), zap.String("backend", cfg.Backend.URL()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server crashed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped cleanly")
}

// openPreferenceStore builds the configured preference store, wrapped in the Redis
// cache when REDIS_ADDR is set. The returned func releases every connection it opened.
func openPreferenceStore(ctx context.Context, cfg *utils.Config, logger *zap.Logger) (preferences.Store, func(), error) {
	var (
		store   preferences.Store
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Storage.Backend {
	case "postgres":
		postgres, err := db.NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, postgres.Close)
		if err := postgres.Ping(ctx); err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("postgres: ping failed: %w", err)
		}
		if err := postgres.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, func() {}, err
		}
		pgStore, err := preferences.NewPostgresStore(postgres.Pool)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		store = pgStore
	case "mongo":
		mongoDB, err := db.NewMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, func() {
			if err := mongoDB.Close(context.Background()); err != nil {
				logger.Warn("mongo: close error", zap.Error(err))
			}
		})
		if err := mongoDB.EnsureCollections(ctx); err != nil {
			closeAll()
			return nil, func() {}, err
		}
		mongoStore, err := preferences.NewMongoStore(mongoDB.Preferences)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		store = mongoStore
	default:
		store = preferences.NewMemoryStore()
	}

	if cfg.Redis.Addr == "" {
		return store, closeAll, nil
	}

	client, err := db.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// the cache is optional; serve straight from the store
		logger.Warn("redis: cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		return store, closeAll, nil
	}
	closers = append(closers, func() { closeRedis(client, logger) })

	logger.Info("preferences: redis cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.CacheTTL))
	return preferences.NewCachedStore(store, client, cfg.Redis.CacheTTL, utils.Component("preferences")), closeAll, nil
}

func closeRedis(client *redis.Client, logger *zap.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn("redis: close error", zap.Error(err))
	}
}
