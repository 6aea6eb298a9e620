package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/plastinin/identtracker/internal/config"
)

// Типы задач
const (
	TypeIdentificationWatch = "identification:watch"
)

// QueueIdentification очередь отслеживания задач идентификации
const QueueIdentification = "identification"

// WatchPayload данные задачи отслеживания
type WatchPayload struct {
	TaskID string `json:"task_id"`
}

// TaskProducer отправляет задачи в очередь
type TaskProducer struct {
	client *asynq.Client
	cfg    config.WatchConfig
}

// NewTaskProducer создаёт новый экземпляр TaskProducer
func NewTaskProducer(redis config.RedisConfig, cfg config.WatchConfig) *TaskProducer {
	client := asynq.NewClient(redisOpt(redis))

	return &TaskProducer{client: client, cfg: cfg}
}

// Enqueue ставит задачу на отслеживание. Повторная постановка той же
// задачи, пока предыдущая в очереди, ничего не делает.
func (p *TaskProducer) Enqueue(ctx context.Context, taskID string) error {
	task, err := newWatchTask(taskID, p.cfg)
	if err != nil {
		return err
	}

	_, err = p.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	return nil
}

// Close закрывает соединение
func (p *TaskProducer) Close() error {
	return p.client.Close()
}

func newWatchTask(taskID string, cfg config.WatchConfig) (*asynq.Task, error) {
	payload, err := json.Marshal(WatchPayload{TaskID: taskID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	return asynq.NewTask(TypeIdentificationWatch, payload,
		asynq.TaskID("watch:"+taskID),
		asynq.MaxRetry(cfg.MaxRetry),
		asynq.Timeout(cfg.Timeout),
		asynq.Queue(QueueIdentification),
	), nil
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}
