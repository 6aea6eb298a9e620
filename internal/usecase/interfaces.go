package usecase

import (
	"context"

	"github.com/plastinin/identtracker/internal/domain"
)

// RemoteTaskAPI интерфейс удалённого API задач идентификации
type RemoteTaskAPI interface {
	CreateTask(ctx context.Context, submission domain.Submission) (taskID string, err error)
	GetTaskStatus(ctx context.Context, taskID string) (*domain.RemoteStatus, error)
	GetTaskResult(ctx context.Context, taskID string) (*domain.Result, error)
	CancelTask(ctx context.Context, taskID string) error
}

// TaskRepository интерфейс для хранения отслеживаемых задач
type TaskRepository interface {
	Save(ctx context.Context, task *domain.TrackedTask) error
	GetByID(ctx context.Context, id string) (*domain.TrackedTask, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter domain.TaskFilter, pagination domain.Pagination) (*domain.TaskListResult, error)
}

// PreferenceStore интерфейс хранилища настроек опроса
type PreferenceStore interface {
	Get(ctx context.Context, profile string) (domain.PollPreferences, error)
	Save(ctx context.Context, profile string, overrides domain.PreferenceOverrides) error
}

// ResultSink интерфейс для экспорта результатов (S3)
type ResultSink interface {
	Export(ctx context.Context, task domain.TaskSnapshot, result *domain.Result) (resultKey string, err error)
	URLs(ctx context.Context, resultKey string) (map[string]string, error)
	Delete(ctx context.Context, resultKey string) error
}

// WatchQueue интерфейс очереди фонового отслеживания
type WatchQueue interface {
	Enqueue(ctx context.Context, taskID string) error
}

// ResultCache интерфейс кэша результатов
type ResultCache interface {
	Get(taskID string) (*domain.Result, bool)
	Set(taskID string, result *domain.Result)
	Delete(taskID string)
}
