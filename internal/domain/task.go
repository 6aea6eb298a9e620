package domain

import (
	"errors"
	"strings"
	"sync"
	"time"
)

// Ошибки домена
var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrInvalidTransition   = errors.New("invalid task state transition")
	ErrEmptyTaskID         = errors.New("task id cannot be empty")
	ErrInvalidFileID       = errors.New("file id must be positive")
	ErrEmptyAlgorithmKey   = errors.New("algorithm key cannot be empty")
	ErrResultBeforeSuccess = errors.New("result can only be attached to a succeeded task")
)

// Submission входные данные для создания задачи на сервере
type Submission struct {
	FileID       int64          `json:"file_id"`
	AlgorithmKey string         `json:"algorithm_key"`
	Params       map[string]any `json:"params"`
}

// Normalize убирает пробелы в ключе алгоритма и заменяет nil-параметры пустыми
func (s Submission) Normalize() Submission {
	s.AlgorithmKey = strings.TrimSpace(s.AlgorithmKey)
	if s.Params == nil {
		s.Params = map[string]any{}
	}
	return s
}

// Validate проверяет входные данные
func (s Submission) Validate() error {
	if s.FileID <= 0 {
		return ErrInvalidFileID
	}
	if strings.TrimSpace(s.AlgorithmKey) == "" {
		return ErrEmptyAlgorithmKey
	}
	return nil
}

// Task задача идентификации, созданная на удалённом сервере.
// Входные поля неизменяемы; изменяемое состояние защищено mu,
// каждый переход применяется целиком под блокировкой.
type Task struct {
	ID           string
	FileID       int64
	AlgorithmKey string
	Params       map[string]any
	CreatedAt    time.Time

	mu           sync.RWMutex
	state        TaskState
	progress     int
	stage        string
	message      string
	errorMessage string
	result       *Result
	updatedAt    time.Time
	lastPolledAt *time.Time
	completedAt  *time.Time
}

// NewTask создаёт задачу в состоянии pending
func NewTask(id string, fileID int64, algorithmKey string, params map[string]any, createdAt time.Time) (*Task, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrEmptyTaskID
	}

	return &Task{
		ID:           id,
		FileID:       fileID,
		AlgorithmKey: algorithmKey,
		Params:       copyParams(params),
		CreatedAt:    createdAt,
		state:        TaskStatePending,
		updatedAt:    createdAt,
	}, nil
}

// AttachTask создаёт handle для задачи, созданной в другом месте
// (например, id передан в CLI). Срок ожидания отсчитывается от attachedAt.
func AttachTask(id string, attachedAt time.Time) (*Task, error) {
	return NewTask(id, 0, "", nil, attachedAt)
}

// RestoreTask восстанавливает задачу из сохранённого снимка
func RestoreTask(s TaskSnapshot) (*Task, error) {
	if strings.TrimSpace(s.ID) == "" {
		return nil, ErrEmptyTaskID
	}
	if !s.State.IsValid() {
		return nil, ErrInvalidTransition
	}
	if s.Result != nil && s.State != TaskStateSucceeded {
		return nil, ErrResultBeforeSuccess
	}

	return &Task{
		ID:           s.ID,
		FileID:       s.FileID,
		AlgorithmKey: s.AlgorithmKey,
		Params:       copyParams(s.Params),
		CreatedAt:    s.CreatedAt,
		state:        s.State,
		progress:     s.Progress,
		stage:        s.Stage,
		message:      s.Message,
		errorMessage: s.ErrorMessage,
		result:       s.Result,
		updatedAt:    s.UpdatedAt,
		lastPolledAt: copyTime(s.LastPolledAt),
		completedAt:  copyTime(s.CompletedAt),
	}, nil
}

// State возвращает текущее состояние
func (t *Task) State() TaskState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Result возвращает закэшированный результат, если он уже загружен
func (t *Task) Result() (*Result, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.result, t.result != nil
}

// ApplyRemoteStatus применяет ответ сервера на опрос статуса.
// Возвращает состояния до и после; для финальной задачи ErrInvalidTransition без изменений.
func (t *Task) ApplyRemoteStatus(status RemoteStatus, polledAt time.Time) (from, to TaskState, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	from = t.state
	if from.IsTerminal() {
		return from, from, ErrInvalidTransition
	}

	next := from
	switch status.State {
	case RemoteStatePending:
		// Сервер ещё не начал; running назад в pending не откатываем
	case RemoteStateRunning:
		next = TaskStateRunning
	case RemoteStateSucceeded:
		next = TaskStateSucceeded
	case RemoteStateFailed:
		next = TaskStateFailed
	case RemoteStateCancelled:
		next = TaskStateCancelled
	default:
		return from, from, ErrInvalidTransition
	}

	t.lastPolledAt = &polledAt
	t.progress = status.Progress
	t.stage = status.Stage
	t.message = status.Message
	t.updatedAt = polledAt

	if next == TaskStateFailed {
		t.errorMessage = status.FailureMessage()
	}
	t.state = next
	if next.IsTerminal() {
		t.completedAt = &polledAt
	}

	return from, next, nil
}

// MarkCancelled переводит задачу в cancelled
func (t *Task) MarkCancelled(at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.CanTransitionTo(TaskStateCancelled) {
		return ErrInvalidTransition
	}
	t.state = TaskStateCancelled
	t.updatedAt = at
	t.completedAt = &at
	return nil
}

// MarkTimedOut переводит задачу в timed_out (только на стороне клиента)
func (t *Task) MarkTimedOut(reason string, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.CanTransitionTo(TaskStateTimedOut) {
		return ErrInvalidTransition
	}
	t.state = TaskStateTimedOut
	t.errorMessage = reason
	t.updatedAt = at
	t.completedAt = &at
	return nil
}

// SetResult кэширует результат успешной задачи. Повторный вызов
// возвращает ранее сохранённый результат.
func (t *Task) SetResult(result *Result) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != TaskStateSucceeded {
		return nil, ErrResultBeforeSuccess
	}
	if t.result == nil {
		t.result = result
	}
	return t.result, nil
}

// Snapshot возвращает согласованную копию состояния задачи
func (t *Task) Snapshot() TaskSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return TaskSnapshot{
		ID:           t.ID,
		FileID:       t.FileID,
		AlgorithmKey: t.AlgorithmKey,
		Params:       copyParams(t.Params),
		State:        t.state,
		Progress:     t.progress,
		Stage:        t.stage,
		Message:      t.message,
		ErrorMessage: t.errorMessage,
		Result:       t.result,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.updatedAt,
		LastPolledAt: copyTime(t.lastPolledAt),
		CompletedAt:  copyTime(t.completedAt),
	}
}

// TaskSnapshot неизменяемая копия задачи для хранения и ответов API
type TaskSnapshot struct {
	ID           string         `json:"task_id"`
	FileID       int64          `json:"file_id"`
	AlgorithmKey string         `json:"algorithm_key"`
	Params       map[string]any `json:"params"`
	State        TaskState      `json:"state"`
	Progress     int            `json:"progress"`
	Stage        string         `json:"stage,omitempty"`
	Message      string         `json:"message,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Result       *Result        `json:"result,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	LastPolledAt *time.Time     `json:"last_polled_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// TrackedTask задача, которую сервис отслеживает в фоне
type TrackedTask struct {
	TaskSnapshot
	Profile   string `json:"profile"`
	ResultKey string `json:"result_key,omitempty"` // Префикс экспорта результата в S3
}

// DefaultProfile профиль настроек по умолчанию
const DefaultProfile = "default"

// NewTrackedTask оборачивает снимок задачи
func NewTrackedTask(task *Task, profile string) *TrackedTask {
	if strings.TrimSpace(profile) == "" {
		profile = DefaultProfile
	}
	return &TrackedTask{
		TaskSnapshot: task.Snapshot(),
		Profile:      profile,
	}
}

// Refresh обновляет снимок из задачи, сохраняя поля сервиса
func (t *TrackedTask) Refresh(task *Task) {
	t.TaskSnapshot = task.Snapshot()
}

func copyParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
