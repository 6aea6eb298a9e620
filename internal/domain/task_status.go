package domain

import (
	"fmt"
	"strings"
)

// TaskState локальное состояние задачи идентификации
type TaskState string

const (
	TaskStatePending   TaskState = "pending"   // Задача создана, сервер ещё не начал расчёт
	TaskStateRunning   TaskState = "running"   // Сервер выполняет расчёт
	TaskStateSucceeded TaskState = "succeeded" // Расчёт завершён, результат доступен
	TaskStateFailed    TaskState = "failed"    // Сервер сообщил об ошибке
	TaskStateCancelled TaskState = "cancelled" // Клиент отменил задачу
	TaskStateTimedOut  TaskState = "timed_out" // Истёк клиентский срок ожидания
)

// IsValid проверяет валидность состояния
func (s TaskState) IsValid() bool {
	switch s {
	case TaskStatePending, TaskStateRunning, TaskStateSucceeded,
		TaskStateFailed, TaskStateCancelled, TaskStateTimedOut:
		return true
	}
	return false
}

// IsTerminal проверяет, является ли состояние финальным
func (s TaskState) IsTerminal() bool {
	switch s {
	case TaskStateSucceeded, TaskStateFailed, TaskStateCancelled, TaskStateTimedOut:
		return true
	}
	return false
}

// TerminalStates возвращает все финальные состояния
func TerminalStates() []TaskState {
	return []TaskState{TaskStateSucceeded, TaskStateFailed, TaskStateCancelled, TaskStateTimedOut}
}

// CanBeOverwrittenBy проверяет, можно ли заменить сохранённое состояние s на next.
// Финальное состояние перезаписывается только самим собой (например, при
// сохранении экспортированного результата).
func (s TaskState) CanBeOverwrittenBy(next TaskState) bool {
	return !s.IsTerminal() || s == next
}

// CanTransitionTo проверяет допустимость перехода.
// Из pending можно сразу попасть в succeeded/failed: быстрый расчёт
// может завершиться между двумя опросами.
func (s TaskState) CanTransitionTo(next TaskState) bool {
	switch s {
	case TaskStatePending:
		return next.IsValid()
	case TaskStateRunning:
		return next != TaskStatePending && next.IsValid()
	}
	return false
}

func (s TaskState) String() string {
	return string(s)
}

// RemoteState состояние задачи, как его сообщает удалённый API
type RemoteState string

const (
	RemoteStatePending   RemoteState = "pending"
	RemoteStateRunning   RemoteState = "running"
	RemoteStateSucceeded RemoteState = "succeeded"
	RemoteStateFailed    RemoteState = "failed"
	RemoteStateCancelled RemoteState = "cancelled"
)

// ParseRemoteState нормализует состояние из ответа сервера
func ParseRemoteState(raw string) (RemoteState, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "queued":
		return RemoteStatePending, nil
	case "running", "processing":
		return RemoteStateRunning, nil
	case "succeeded", "success", "completed":
		return RemoteStateSucceeded, nil
	case "failed", "failure", "error":
		return RemoteStateFailed, nil
	case "cancelled", "canceled":
		return RemoteStateCancelled, nil
	}
	return "", fmt.Errorf("unknown remote task state %q", raw)
}

// RemoteStatus ответ сервера на запрос статуса
type RemoteStatus struct {
	State        RemoteState
	Progress     int
	Stage        string
	Message      string
	ErrorCode    string
	ErrorMessage string
}

// DefaultFailureMessage используется, если сервер не прислал причину ошибки
const DefaultFailureMessage = "identification task failed"

// FailureMessage возвращает причину ошибки задачи
func (s RemoteStatus) FailureMessage() string {
	if s.ErrorMessage != "" {
		return s.ErrorMessage
	}
	if s.Message != "" {
		return s.Message
	}
	return DefaultFailureMessage
}
