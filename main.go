package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Zacison/natours-backend/config"
	"github.com/Zacison/natours-backend/controllers"
	"github.com/Zacison/natours-backend/logger"
	"github.com/Zacison/natours-backend/middleware"
	"github.com/Zacison/natours-backend/repository"
	"github.com/Zacison/natours-backend/routes"
	"github.com/Zacison/natours-backend/services"
	"github.com/Zacison/natours-backend/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.SetDefault(logger.New(os.Stdout, cfg.Server.LogLevel))
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	client, db, err := config.ConnectDB(ctx, cfg.Mongo)
	if err != nil {
		logger.Error("mongo connection failed", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to MongoDB", "database", cfg.Mongo.Database)

	if err := repository.EnsureIndexes(ctx, db); err != nil {
		logger.Error("index setup failed", "error", err)
		os.Exit(1)
	}

	rdb, err := config.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		// The limiter degrades to passthrough without Redis.
		logger.Warn("redis unavailable, rate limiting disabled", "error", err)
		rdb = nil
	}

	mailer, err := utils.NewMailer(cfg.Email)
	if err != nil {
		logger.Error("mailer setup failed", "error", err)
		os.Exit(1)
	}

	users := repository.NewUserRepository(db)
	tours := repository.NewTourRepository(db)
	tokens := utils.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn)
	authService := services.NewAuthService(
		users,
		utils.NewPasswordHasher(cfg.Auth.BcryptCost),
		tokens,
		utils.NewResetTokenService(cfg.Auth.ResetTokenTTL),
		mailer,
	)

	router := gin.New()
	routes.Setup(router, routes.Deps{
		Config:  cfg,
		Auth:    controllers.NewAuthController(authService, cfg.Server.PublicURL),
		Tours:   controllers.NewToursController(tours, cfg.Tours.MaxPageSize),
		Users:   controllers.NewUsersController(users),
		Health:  controllers.NewHealthController(healthChecks(client, rdb)),
		Tokens:  tokens,
		Finder:  users,
		Metrics: middleware.NewMetrics(),
		Redis:   rdb,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		logger.Error("mongo disconnect failed", "error", err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close failed", "error", err)
		}
	}
	logger.Info("server exited")
}

func healthChecks(client *mongo.Client, rdb *redis.Client) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{
		"mongo": func(ctx context.Context) error { return client.Ping(ctx, nil) },
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}
