package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/plastinin/identtracker/internal/config"
	"github.com/plastinin/identtracker/internal/domain"
	"go.uber.org/zap"
)

// TaskWatcher дожидается финального состояния задачи
type TaskWatcher interface {
	Watch(ctx context.Context, taskID string) error
}

// TaskConsumer обрабатывает задачи из очереди
type TaskConsumer struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	watcher TaskWatcher
	logger  *zap.Logger
}

// NewTaskConsumer создаёт новый экземпляр TaskConsumer
func NewTaskConsumer(
	redis config.RedisConfig,
	cfg config.WatchConfig,
	watcher TaskWatcher,
	logger *zap.Logger,
) *TaskConsumer {
	server := asynq.NewServer(
		redisOpt(redis),
		asynq.Config{
			// Воркер в основном ждёт ответа сервера, поэтому конкурентность можно поднять
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				QueueIdentification: 10, // Приоритет очереди
				"default":           1,
			},
			Logger: newAsynqLogger(logger),
		},
	)

	consumer := &TaskConsumer{
		server:  server,
		mux:     asynq.NewServeMux(),
		watcher: watcher,
		logger:  logger,
	}

	// Регистрируем обработчики
	consumer.mux.HandleFunc(TypeIdentificationWatch, consumer.handleWatch)

	return consumer
}

// Start запускает обработку задач
func (c *TaskConsumer) Start() error {
	c.logger.Info("Starting task consumer")
	return c.server.Start(c.mux)
}

// Stop останавливает обработку задач
func (c *TaskConsumer) Stop() {
	c.logger.Info("Stopping task consumer")
	c.server.Stop()
	c.server.Shutdown()
}

// handleWatch обрабатывает задачу отслеживания
func (c *TaskConsumer) handleWatch(ctx context.Context, t *asynq.Task) error {
	var payload WatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		c.logger.Error("Failed to unmarshal payload",
			zap.Error(err),
			zap.ByteString("payload", t.Payload()),
		)
		return fmt.Errorf("failed to unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}

	taskID := strings.TrimSpace(payload.TaskID)
	if taskID == "" {
		c.logger.Error("Empty task ID in payload")
		return fmt.Errorf("%w: %w", domain.ErrEmptyTaskID, asynq.SkipRetry)
	}

	c.logger.Info("Processing identification watch", zap.String("task_id", taskID))

	if err := c.watcher.Watch(ctx, taskID); err != nil {
		c.logger.Error("Failed to watch task",
			zap.String("task_id", taskID),
			zap.Error(err),
		)
		// Задачу удалили или её состояние не позволяет продолжить: повтор не поможет
		if errors.Is(err, domain.ErrTaskNotFound) || errors.Is(err, domain.ErrInvalidState) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}

	return nil
}

// asynqLogger адаптер логгера для asynq
type asynqLogger struct {
	logger *zap.Logger
}

func newAsynqLogger(logger *zap.Logger) *asynqLogger {
	return &asynqLogger{logger: logger.Named("asynq")}
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.logger.Fatal(fmt.Sprint(args...))
}
