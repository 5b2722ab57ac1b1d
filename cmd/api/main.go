package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"journal-workflow-api/config"
	"journal-workflow-api/controllers"
	"journal-workflow-api/middleware"
	"journal-workflow-api/routes"
	"journal-workflow-api/services"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := config.NewLogger(&cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := config.InitDB(&cfg.Database, cfg.Environment, logger)
	if err != nil {
		logger.Fatal("Database connection failed", zap.Error(err))
	}

	rdb, err := config.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, event publishing to Redis disabled", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	dispatcher := services.NewDispatcherFromConfig(cfg, db, rdb, logger)
	workflow := services.NewWorkflow(services.Deps{
		DB:     db,
		Events: dispatcher,
		Logger: logger.Named("workflow"),
	})

	if cfg.Server.GinMode == gin.ReleaseMode || cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := routes.NewRouter(
		controllers.NewHandler(workflow),
		middleware.AuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		routes.RouterOptions{Logger: logger.Named("http"), AllowOrigins: cfg.Server.AllowOrigins},
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	dispatcher.Wait()
}
