package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/plastinin/identtracker/internal/domain"
	"go.uber.org/zap"
)

// LifecycleUseCase управляет жизненным циклом задачи идентификации:
// создание, опрос, отмена, получение результата.
//
// Один экземпляр обслуживает любое число задач; изменять одну задачу
// одновременно из нескольких горутин нельзя, читать можно.
type LifecycleUseCase struct {
	api    RemoteTaskAPI
	logger *zap.Logger
	now    func() time.Time // для тестов
}

// NewLifecycleUseCase создаёт новый экземпляр LifecycleUseCase
func NewLifecycleUseCase(api RemoteTaskAPI, logger *zap.Logger) *LifecycleUseCase {
	return &LifecycleUseCase{
		api:    api,
		logger: logger,
		now:    time.Now,
	}
}

// Submit создаёт задачу на сервере и возвращает её в состоянии pending
func (uc *LifecycleUseCase) Submit(ctx context.Context, submission domain.Submission) (*domain.Task, error) {
	submission = submission.Normalize()
	if err := submission.Validate(); err != nil {
		return nil, &domain.Error{Kind: domain.KindSubmission, Op: "submit", Message: "invalid submission", Err: err}
	}

	taskID, err := uc.api.CreateTask(ctx, submission)
	if err != nil {
		uc.logger.Error("Failed to create identification task",
			zap.Int64("file_id", submission.FileID),
			zap.String("algorithm_key", submission.AlgorithmKey),
			zap.Error(err),
		)
		return nil, &domain.Error{Kind: domain.KindSubmission, Op: "submit", Message: "create request failed", Err: err}
	}

	task, err := domain.NewTask(taskID, submission.FileID, submission.AlgorithmKey, submission.Params, uc.now())
	if err != nil {
		// Сервер ответил успехом, но без идентификатора
		return nil, &domain.Error{Kind: domain.KindSubmission, Op: "submit", Message: "malformed create response", Err: err}
	}

	uc.logger.Info("Identification task submitted",
		zap.String("task_id", task.ID),
		zap.Int64("file_id", task.FileID),
		zap.String("algorithm_key", task.AlgorithmKey),
	)

	return task, nil
}

// Poll однократно запрашивает статус задачи. Финальная задача
// возвращается без обращения к серверу. Ошибка запроса не меняет состояние.
func (uc *LifecycleUseCase) Poll(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	state := task.State()
	if state.IsTerminal() {
		return task, nil
	}

	status, err := uc.api.GetTaskStatus(ctx, task.ID)
	if err != nil {
		uc.logger.Warn("Failed to poll task status",
			zap.String("task_id", task.ID),
			zap.String("state", state.String()),
			zap.Error(err),
		)
		return task, &domain.Error{Kind: domain.KindPoll, Op: "poll", TaskID: task.ID, State: state, Message: "status request failed", Err: err}
	}

	from, to, err := task.ApplyRemoteStatus(*status, uc.now())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Задача стала финальной, пока шёл запрос
			return task, nil
		}
		return task, err
	}

	if from != to {
		uc.logger.Info("Task state changed",
			zap.String("task_id", task.ID),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Int("progress", status.Progress),
		)
	} else {
		uc.logger.Debug("Task polled",
			zap.String("task_id", task.ID),
			zap.String("state", to.String()),
			zap.Int("progress", status.Progress),
			zap.String("stage", status.Stage),
		)
	}

	return task, nil
}

// PollUntilTerminal опрашивает задачу с фиксированным интервалом, пока она
// не станет финальной или не истечёт срок prefs.Timeout от CreatedAt.
//
// По истечении срока задача локально переводится в timed_out, это не ошибка.
// Больше prefs.MaxRetries ошибок опроса подряд дают ErrPollExhausted, состояние
// задачи не меняется. Отмена ctx останавливает ожидание, не трогая задачу.
func (uc *LifecycleUseCase) PollUntilTerminal(ctx context.Context, task *domain.Task, prefs domain.PollPreferences) (*domain.Task, error) {
	prefs = prefs.Normalize()
	deadline := task.CreatedAt.Add(prefs.Timeout)
	failures := 0

	for {
		if task.State().IsTerminal() {
			return task, nil
		}
		if err := ctx.Err(); err != nil {
			return task, err
		}

		now := uc.now()
		if !now.Before(deadline) {
			return uc.markTimedOut(task, prefs.Timeout, now)
		}

		if _, err := uc.Poll(ctx, task); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return task, ctxErr
			}
			failures++
			if failures > prefs.MaxRetries {
				uc.logger.Error("Polling exhausted",
					zap.String("task_id", task.ID),
					zap.Int("consecutive_failures", failures),
					zap.String("state", task.State().String()),
				)
				return task, &domain.Error{
					Kind:    domain.KindPollExhausted,
					Op:      "poll until terminal",
					TaskID:  task.ID,
					State:   task.State(),
					Message: fmt.Sprintf("%d consecutive poll failures", failures),
					Err:     err,
				}
			}
		} else {
			failures = 0
		}

		if task.State().IsTerminal() {
			return task, nil
		}

		wait := prefs.Interval
		if remaining := deadline.Sub(uc.now()); remaining < wait {
			wait = remaining
		}
		if wait > 0 {
			if err := sleepContext(ctx, wait); err != nil {
				return task, err
			}
		}
	}
}

// Cancel отменяет задачу на сервере
func (uc *LifecycleUseCase) Cancel(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	state := task.State()
	if state.IsTerminal() {
		return task, domain.NewInvalidStateError("cancel", task.ID, state)
	}

	if err := uc.api.CancelTask(ctx, task.ID); err != nil {
		uc.logger.Warn("Failed to cancel task",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
		return task, &domain.Error{Kind: domain.KindCancellation, Op: "cancel", TaskID: task.ID, State: state, Message: "cancel request failed", Err: err}
	}

	if err := task.MarkCancelled(uc.now()); err != nil {
		return task, domain.NewInvalidStateError("cancel", task.ID, task.State())
	}

	uc.logger.Info("Task cancelled",
		zap.String("task_id", task.ID),
		zap.String("from", state.String()),
	)

	return task, nil
}

// FetchResult загружает результат успешной задачи. Повторные вызовы
// возвращают закэшированный результат без запроса к серверу.
func (uc *LifecycleUseCase) FetchResult(ctx context.Context, task *domain.Task) (*domain.Result, error) {
	state := task.State()
	if state != domain.TaskStateSucceeded {
		return nil, domain.NewInvalidStateError("fetch result", task.ID, state)
	}

	if result, ok := task.Result(); ok {
		return result, nil
	}

	result, err := uc.api.GetTaskResult(ctx, task.ID)
	if err != nil {
		uc.logger.Warn("Failed to fetch task result",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
		return nil, &domain.Error{Kind: domain.KindResult, Op: "fetch result", TaskID: task.ID, State: state, Message: "result request failed", Err: err}
	}

	stored, err := task.SetResult(result)
	if err != nil {
		return nil, err
	}

	uc.logger.Debug("Task result fetched",
		zap.String("task_id", task.ID),
		zap.Int("nodes", len(stored.Values)),
	)

	return stored, nil
}

// markTimedOut фиксирует локальный таймаут
func (uc *LifecycleUseCase) markTimedOut(task *domain.Task, timeout time.Duration, now time.Time) (*domain.Task, error) {
	reason := fmt.Sprintf("no terminal state within %s", timeout)
	if err := task.MarkTimedOut(reason, now); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			return task, nil
		}
		return task, err
	}

	uc.logger.Warn("Task timed out",
		zap.String("task_id", task.ID),
		zap.Duration("timeout", timeout),
	)

	return task, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
