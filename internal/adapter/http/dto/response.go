package dto

import "github.com/plastinin/identtracker/internal/domain"

// ErrorResponse ответ с ошибкой. Для ошибок конкретной задачи
// заполняются task_id и её текущее состояние.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	State   string `json:"state,omitempty"`
}

// NewErrorResponse создаёт ответ с ошибкой
func NewErrorResponse(code string, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   code,
		Message: message,
	}
}

// WithTask дополняет ответ сведениями о задаче из доменной ошибки
func (r *ErrorResponse) WithTask(err *domain.Error) *ErrorResponse {
	r.TaskID = err.TaskID
	if err.State != "" {
		r.State = err.State.String()
	}
	return r
}

// HealthResponse ответ health check
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}
