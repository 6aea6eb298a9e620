package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/plastinin/identtracker/internal/adapter/cache"
	"github.com/plastinin/identtracker/internal/adapter/queue"
	"github.com/plastinin/identtracker/internal/adapter/remote"
	"github.com/plastinin/identtracker/internal/adapter/repository"
	"github.com/plastinin/identtracker/internal/adapter/storage"
	"github.com/plastinin/identtracker/internal/config"
	"github.com/plastinin/identtracker/internal/usecase"
	"github.com/plastinin/identtracker/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Инициализируем логгер
	log := logger.Must(cfg.Log.Level, cfg.Log.Format)
	defer log.Sync()

	log.Info("Starting identtracker worker",
		zap.String("remote_api", cfg.RemoteAPI.BaseURL),
		zap.Int("concurrency", cfg.Watch.Concurrency),
	)

	// Контекст для инициализации
	ctx := context.Background()

	// Инициализируем PostgreSQL
	dbPool, err := repository.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()
	log.Info("Connected to PostgreSQL")

	// Инициализируем S3 Storage
	s3Storage, err := storage.NewS3Storage(ctx, cfg.S3)
	if err != nil {
		log.Fatal("Failed to connect to S3", zap.Error(err))
	}
	log.Info("Connected to S3",
		zap.String("endpoint", cfg.S3.Endpoint),
		zap.String("bucket", cfg.S3.Bucket),
	)

	// Инициализируем клиент удалённого API
	remoteClient := remote.NewClient(cfg.RemoteAPI, remote.NewSession(cfg.RemoteAPI.Token), log)

	// Инициализируем репозитории
	taskRepo := repository.NewTaskRepository(dbPool)
	prefRepo := repository.NewPreferenceRepository(dbPool, cfg.Poll.Preferences())

	// Инициализируем use cases; воркер сам задачи в очередь не ставит,
	// а кэш результатов читает только API
	lifecycleUC := usecase.NewLifecycleUseCase(remoteClient, log)
	trackerUC := usecase.NewTrackerUseCase(lifecycleUC, taskRepo, prefRepo, s3Storage, nil, cache.Nop{}, log)

	// Инициализируем consumer
	consumer := queue.NewTaskConsumer(cfg.Redis, cfg.Watch, trackerUC, log)

	// Запускаем consumer в горутине
	go func() {
		if err := consumer.Start(); err != nil {
			log.Fatal("Failed to start consumer", zap.Error(err))
		}
	}()

	log.Info("Worker started, waiting for tasks...")

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down worker...")

	// Останавливаем consumer
	consumer.Stop()

	log.Info("Worker stopped")
}
