package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind машинно-проверяемый вид ошибки операции над задачей
type ErrorKind string

const (
	KindSubmission    ErrorKind = "submission"     // Сервер отклонил создание задачи
	KindPoll          ErrorKind = "poll"           // Не удалось опросить статус, можно повторить
	KindPollExhausted ErrorKind = "poll_exhausted" // Слишком много ошибок опроса подряд
	KindCancellation  ErrorKind = "cancellation"   // Сервер не принял отмену
	KindInvalidState  ErrorKind = "invalid_state"  // Операция недопустима в текущем состоянии
	KindResult        ErrorKind = "result"         // Не удалось загрузить результат, можно повторить
)

// Шаблоны для errors.Is: сравнение идёт только по виду ошибки
var (
	ErrSubmission    = &Error{Kind: KindSubmission}
	ErrPoll          = &Error{Kind: KindPoll}
	ErrPollExhausted = &Error{Kind: KindPollExhausted}
	ErrCancellation  = &Error{Kind: KindCancellation}
	ErrInvalidState  = &Error{Kind: KindInvalidState}
	ErrResult        = &Error{Kind: KindResult}
)

// Error ошибка операции контроллера задач
type Error struct {
	Kind    ErrorKind
	Op      string
	TaskID  string
	State   TaskState
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(string(e.Kind))
		b.WriteString(" error")
	}
	if e.TaskID != "" {
		fmt.Fprintf(&b, " (task %s)", e.TaskID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сопоставляет ошибку с шаблоном того же вида
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.TaskID == "" && t.Message == "" && t.Err == nil
}

// NewInvalidStateError ошибка операции, недопустимой в состоянии state
func NewInvalidStateError(op, taskID string, state TaskState) *Error {
	return &Error{
		Kind:    KindInvalidState,
		Op:      op,
		TaskID:  taskID,
		State:   state,
		Message: fmt.Sprintf("not allowed in state %q", state),
	}
}

// KindOf возвращает вид ошибки или пустую строку для посторонних ошибок
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
