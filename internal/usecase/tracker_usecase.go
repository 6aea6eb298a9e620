package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/plastinin/identtracker/internal/domain"
	"go.uber.org/zap"
)

// TrackerUseCase отслеживает задачи в фоне: сохраняет их снимки,
// ставит в очередь ожидание и экспортирует результаты.
type TrackerUseCase struct {
	lifecycle *LifecycleUseCase
	taskRepo  TaskRepository
	prefs     PreferenceStore
	sink      ResultSink
	queue     WatchQueue
	cache     ResultCache
	logger    *zap.Logger
}

// NewTrackerUseCase создаёт новый экземпляр TrackerUseCase.
// queue может быть nil в воркере, который только обрабатывает задачи.
func NewTrackerUseCase(
	lifecycle *LifecycleUseCase,
	taskRepo TaskRepository,
	prefs PreferenceStore,
	sink ResultSink,
	queue WatchQueue,
	cache ResultCache,
	logger *zap.Logger,
) *TrackerUseCase {
	return &TrackerUseCase{
		lifecycle: lifecycle,
		taskRepo:  taskRepo,
		prefs:     prefs,
		sink:      sink,
		queue:     queue,
		cache:     cache,
		logger:    logger,
	}
}

// Submit создаёт задачу на сервере, сохраняет её и ставит на отслеживание
func (uc *TrackerUseCase) Submit(ctx context.Context, input SubmitTaskInput) (*domain.TrackedTask, error) {
	task, err := uc.lifecycle.Submit(ctx, input.Submission())
	if err != nil {
		return nil, err
	}

	tracked := domain.NewTrackedTask(task, input.Profile)
	if err := uc.taskRepo.Save(ctx, tracked); err != nil {
		uc.logger.Error("Failed to save task",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	if uc.queue != nil {
		if err := uc.queue.Enqueue(ctx, task.ID); err != nil {
			uc.logger.Error("Failed to enqueue watch",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
			// Не возвращаем ошибку: задача создана, отслеживание можно запустить позже
		}
	}

	return tracked, nil
}

// GetByID возвращает отслеживаемую задачу
func (uc *TrackerUseCase) GetByID(ctx context.Context, id string) (*domain.TrackedTask, error) {
	return uc.taskRepo.GetByID(ctx, id)
}

// List возвращает список задач
func (uc *TrackerUseCase) List(ctx context.Context, filter domain.TaskFilter, pagination domain.Pagination) (*domain.TaskListResult, error) {
	return uc.taskRepo.List(ctx, filter, pagination)
}

// Cancel отменяет задачу на сервере и сохраняет новое состояние
func (uc *TrackerUseCase) Cancel(ctx context.Context, id string) (*domain.TrackedTask, error) {
	tracked, task, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if _, err := uc.lifecycle.Cancel(ctx, task); err != nil {
		return nil, err
	}

	tracked.Refresh(task)
	if err := uc.taskRepo.Save(ctx, tracked); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Воркер успел сохранить финальное состояние раньше
			return nil, uc.settledError(ctx, "cancel", id)
		}
		return nil, fmt.Errorf("failed to save task: %w", err)
	}

	return tracked, nil
}

// settledError сообщает, в каком состоянии задача уже сохранена
func (uc *TrackerUseCase) settledError(ctx context.Context, op, id string) error {
	stored, err := uc.taskRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to reload task: %w", err)
	}
	return domain.NewInvalidStateError(op, id, stored.State)
}

// Result возвращает результат задачи: кэш, затем БД, затем удалённый API
func (uc *TrackerUseCase) Result(ctx context.Context, id string) (*domain.Result, error) {
	if result, ok := uc.cache.Get(id); ok {
		return result, nil
	}

	tracked, task, err := uc.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if tracked.Result != nil {
		uc.cache.Set(id, tracked.Result)
		return tracked.Result, nil
	}

	result, err := uc.lifecycle.FetchResult(ctx, task)
	if err != nil {
		return nil, err
	}

	tracked.Refresh(task)
	if err := uc.taskRepo.Save(ctx, tracked); err != nil {
		uc.logger.Warn("Failed to persist fetched result",
			zap.String("task_id", id),
			zap.Error(err),
		)
	}
	uc.cache.Set(id, result)

	return result, nil
}

// ExportURLs возвращает ссылки на экспортированный результат
func (uc *TrackerUseCase) ExportURLs(ctx context.Context, id string) (map[string]string, error) {
	tracked, err := uc.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tracked.ResultKey == "" {
		return nil, domain.NewInvalidStateError("export urls", id, tracked.State)
	}
	return uc.sink.URLs(ctx, tracked.ResultKey)
}

// Delete удаляет задачу и экспортированные файлы. Удалённую задачу не трогает.
func (uc *TrackerUseCase) Delete(ctx context.Context, id string) error {
	tracked, err := uc.taskRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if tracked.ResultKey != "" {
		if err := uc.sink.Delete(ctx, tracked.ResultKey); err != nil {
			uc.logger.Warn("Failed to delete exported result",
				zap.String("task_id", id),
				zap.String("result_key", tracked.ResultKey),
				zap.Error(err),
			)
			// Продолжаем удаление задачи
		}
	}

	if err := uc.taskRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	uc.cache.Delete(id)

	uc.logger.Info("Task deleted", zap.String("task_id", id))
	return nil
}

// Preferences возвращает настройки опроса профиля
func (uc *TrackerUseCase) Preferences(ctx context.Context, profile string) (domain.PollPreferences, error) {
	return uc.prefs.Get(ctx, profileOrDefault(profile))
}

// UpdatePreferences сохраняет пользовательские настройки опроса
func (uc *TrackerUseCase) UpdatePreferences(ctx context.Context, profile string, overrides domain.PreferenceOverrides) (domain.PollPreferences, error) {
	profile = profileOrDefault(profile)
	if err := uc.prefs.Save(ctx, profile, overrides); err != nil {
		return domain.PollPreferences{}, fmt.Errorf("failed to save preferences: %w", err)
	}
	return uc.prefs.Get(ctx, profile)
}

// Watch дожидается финального состояния задачи, сохраняет его и
// экспортирует результат. Вызывается воркером очереди.
func (uc *TrackerUseCase) Watch(ctx context.Context, id string) error {
	tracked, task, err := uc.load(ctx, id)
	if err != nil {
		return err
	}

	if task.State().IsTerminal() && (task.State() != domain.TaskStateSucceeded || tracked.ResultKey != "") {
		uc.logger.Info("Task already settled, skipping watch",
			zap.String("task_id", id),
			zap.String("state", task.State().String()),
		)
		return nil
	}

	prefs, err := uc.prefs.Get(ctx, tracked.Profile)
	if err != nil {
		uc.logger.Warn("Failed to load preferences, using defaults",
			zap.String("profile", tracked.Profile),
			zap.Error(err),
		)
		prefs = domain.DefaultPollPreferences()
	}

	_, pollErr := uc.lifecycle.PollUntilTerminal(ctx, task, prefs)

	// Сохраняем последнее известное состояние даже при отмене ожидания
	tracked.Refresh(task)
	if err := uc.taskRepo.Save(context.WithoutCancel(ctx), tracked); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			uc.logger.Info("Task settled concurrently, skipping",
				zap.String("task_id", id),
				zap.String("state", task.State().String()),
			)
			return nil
		}
		return errors.Join(pollErr, fmt.Errorf("failed to save task: %w", err))
	}

	if pollErr != nil {
		return fmt.Errorf("watch task %s: %w", id, pollErr)
	}

	uc.logger.Info("Task settled",
		zap.String("task_id", id),
		zap.String("state", task.State().String()),
	)

	if task.State() == domain.TaskStateSucceeded {
		return uc.exportResult(ctx, tracked, task)
	}
	return nil
}

// exportResult загружает результат и выгружает его в хранилище
func (uc *TrackerUseCase) exportResult(ctx context.Context, tracked *domain.TrackedTask, task *domain.Task) error {
	result, err := uc.lifecycle.FetchResult(ctx, task)
	if err != nil {
		return fmt.Errorf("export result: %w", err)
	}

	key, err := uc.sink.Export(ctx, task.Snapshot(), result)
	if err != nil {
		return fmt.Errorf("export result: %w", err)
	}

	tracked.Refresh(task)
	tracked.ResultKey = key
	if err := uc.taskRepo.Save(ctx, tracked); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			uc.logger.Info("Task settled concurrently, dropping export",
				zap.String("task_id", task.ID),
				zap.String("result_key", key),
			)
			if err := uc.sink.Delete(ctx, key); err != nil {
				uc.logger.Warn("Failed to delete exported result",
					zap.String("task_id", task.ID),
					zap.String("result_key", key),
					zap.Error(err),
				)
			}
			return nil
		}
		return fmt.Errorf("failed to save task: %w", err)
	}
	uc.cache.Set(task.ID, result)

	uc.logger.Info("Task result exported",
		zap.String("task_id", task.ID),
		zap.String("result_key", key),
		zap.Int("nodes", len(result.Values)),
	)

	return nil
}

// load читает снимок и восстанавливает из него задачу
func (uc *TrackerUseCase) load(ctx context.Context, id string) (*domain.TrackedTask, *domain.Task, error) {
	tracked, err := uc.taskRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	task, err := domain.RestoreTask(tracked.TaskSnapshot)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to restore task %s: %w", id, err)
	}

	return tracked, task, nil
}

func profileOrDefault(profile string) string {
	if profile == "" {
		return domain.DefaultProfile
	}
	return profile
}
