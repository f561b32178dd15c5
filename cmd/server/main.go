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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/newsflow/variantpad/internal/config"
	"github.com/newsflow/variantpad/internal/fetcher"
	"github.com/newsflow/variantpad/internal/handler"
	"github.com/newsflow/variantpad/internal/logging"
	"github.com/newsflow/variantpad/internal/monitoring"
	"github.com/newsflow/variantpad/internal/queue"
	"github.com/newsflow/variantpad/internal/service"
	"github.com/newsflow/variantpad/internal/storage"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create fetcher", zap.Error(err))
	}
	defer f.Close()
	f.OnAttempt(metrics.ObserveFetch)

	opts := service.OptionsFromConfig(cfg)
	opts.Fetcher = f
	opts.Metrics = metrics
	opts.Logger = logger

	// 归档存储（可选）
	if cfg.Archive.Enabled() {
		store, err := storage.NewS3Store(cfg.Archive)
		if err != nil {
			logger.Fatal("Failed to create archive store", zap.Error(err))
		}
		opts.Store = store
	}

	svc := service.New(opts)
	h := handler.New(svc, cfg, logger, promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动 Redis 队列消费者（可选）
	if cfg.RedisURL != "" {
		go startQueueConsumer(ctx, cfg, svc, logger)
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
		defer done()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Shutdown error", zap.Error(err))
		}
	}()

	logger.Info("variantpad starting",
		zap.String("port", cfg.HTTPPort),
		zap.Int("max_concurrent", cfg.MaxConcurrent),
		zap.Strings("strategies", f.Strategies()),
		zap.Bool("archive_store", svc.HasStore()),
	)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server error", zap.Error(err))
	}

	logger.Info("Server stopped")
}

// startQueueConsumer 启动队列消费者
func startQueueConsumer(ctx context.Context, cfg *config.Config, svc *service.Service, logger *zap.Logger) {
	q, err := queue.NewRedisQueue(cfg.RedisURL, cfg.QueueConsumer, logger)
	if err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		return
	}
	defer q.Close()

	// 批处理同一时刻只允许一个，消费者串行执行
	q.StartConsumer(ctx, queue.NewTaskHandler(svc, logger), 1)
}
