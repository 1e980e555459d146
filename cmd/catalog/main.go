package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"khoomi-api-io/catalog/config"
	"khoomi-api-io/catalog/internal"
	"khoomi-api-io/catalog/internal/container"
	"khoomi-api-io/catalog/internal/routers"
	"khoomi-api-io/catalog/pkg/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger, err := util.InitLogger(cfg.GinMode, cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialise logger: ", err)
	}
	defer logger.Sync()
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	sc, err := container.NewServiceContainer(connectCtx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("Failed to initialise services", zap.Error(err))
	}

	if sc.CachePublisher != nil {
		go watchCache(ctx, sc.CachePublisher, logger)
	}

	srv := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Port,
		Handler:      routers.InitRoute(sc),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", zap.Error(err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	sc.Close(shutdownCtx)
	logger.Info("server stopped gracefully")
}

// watchCache logs the invalidations other replicas broadcast.
func watchCache(ctx context.Context, publisher *internal.RedisCachePublisher, logger *zap.Logger) {
	err := publisher.Subscribe(ctx, func(msg internal.CacheMessage) {
		logger.Debug("cache invalidation received",
			zap.String("type", msg.Type), zap.String("payload", msg.Payload))
	})
	if err != nil && ctx.Err() == nil {
		logger.Warn("cache subscription ended", zap.Error(err))
	}
}
