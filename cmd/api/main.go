package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/plastinin/identtracker/internal/adapter/cache"
	"github.com/plastinin/identtracker/internal/adapter/http/handler"
	"github.com/plastinin/identtracker/internal/adapter/queue"
	"github.com/plastinin/identtracker/internal/adapter/remote"
	"github.com/plastinin/identtracker/internal/adapter/repository"
	"github.com/plastinin/identtracker/internal/adapter/storage"
	"github.com/plastinin/identtracker/internal/config"
	"github.com/plastinin/identtracker/internal/usecase"
	"github.com/plastinin/identtracker/pkg/logger"
	"go.uber.org/zap"

	apphttp "github.com/plastinin/identtracker/internal/adapter/http"
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

	log.Info("Starting identtracker API",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("remote_api", cfg.RemoteAPI.BaseURL),
	)

	// Контекст с отменой для graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализируем PostgreSQL
	dbPool, err := repository.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()
	log.Info("Connected to PostgreSQL")

	if cfg.Database.AutoMigrate {
		if err := repository.RunMigrations(ctx, cfg.Database); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
		log.Info("Database migrations applied")
	}

	// Инициализируем S3 Storage
	s3Storage, err := storage.NewS3Storage(ctx, cfg.S3)
	if err != nil {
		log.Fatal("Failed to connect to S3", zap.Error(err))
	}
	log.Info("Connected to S3",
		zap.String("endpoint", cfg.S3.Endpoint),
		zap.String("bucket", cfg.S3.Bucket),
	)

	// Инициализируем Queue Producer
	queueProducer := queue.NewTaskProducer(cfg.Redis, cfg.Watch)
	defer queueProducer.Close()
	log.Info("Connected to Redis",
		zap.String("addr", cfg.Redis.Addr()),
	)

	resultCache, err := cache.NewResultCache(cfg.Cache)
	if err != nil {
		log.Fatal("Failed to create result cache", zap.Error(err))
	}
	defer resultCache.Close()

	if cfg.RemoteAPI.Token == "" {
		log.Warn("IDENT_API_TOKEN is empty, remote requests will fail until it is set")
	}

	// Инициализируем клиент удалённого API
	remoteClient := remote.NewClient(cfg.RemoteAPI, remote.NewSession(cfg.RemoteAPI.Token), log)

	// Инициализируем репозитории
	taskRepo := repository.NewTaskRepository(dbPool)
	prefRepo := repository.NewPreferenceRepository(dbPool, cfg.Poll.Preferences())

	// Инициализируем use cases
	lifecycleUC := usecase.NewLifecycleUseCase(remoteClient, log)
	trackerUC := usecase.NewTrackerUseCase(lifecycleUC, taskRepo, prefRepo, s3Storage, queueProducer, resultCache, log)

	// Инициализируем handlers
	taskHandler := handler.NewTaskHandler(trackerUC, log)
	preferenceHandler := handler.NewPreferenceHandler(trackerUC, log)
	healthHandler := handler.NewHealthHandler(dbPool, log)

	// Создаём роутер
	router := apphttp.NewRouter(taskHandler, preferenceHandler, healthHandler, log)

	// Создаём HTTP сервер
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Запускаем сервер в горутине
	go func() {
		log.Info("HTTP server starting",
			zap.String("addr", cfg.Server.Addr()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Ожидаем сигнал завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}
