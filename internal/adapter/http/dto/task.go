package dto

import (
	"time"

	"github.com/plastinin/identtracker/internal/domain"
	"github.com/plastinin/identtracker/internal/usecase"
)

// CreateTaskRequest запрос на создание задачи идентификации
type CreateTaskRequest struct {
	FileID       int64          `json:"file_id"`
	AlgorithmKey string         `json:"algorithm_key"`
	Params       map[string]any `json:"params"`
	Profile      string         `json:"profile"` // Профиль настроек опроса
}

// Input конвертирует запрос во входные данные usecase
func (r CreateTaskRequest) Input() usecase.SubmitTaskInput {
	return usecase.SubmitTaskInput{
		FileID:       r.FileID,
		AlgorithmKey: r.AlgorithmKey,
		Params:       r.Params,
		Profile:      r.Profile,
	}
}

// TaskResponse ответ с информацией о задаче
type TaskResponse struct {
	ID             string         `json:"id"`
	FileID         int64          `json:"file_id"`
	AlgorithmKey   string         `json:"algorithm_key"`
	Params         map[string]any `json:"params"`
	State          string         `json:"state"`
	Progress       int            `json:"progress"`
	Stage          string         `json:"stage,omitempty"`
	Message        string         `json:"message,omitempty"`
	Error          string         `json:"error,omitempty"`
	Profile        string         `json:"profile"`
	HasResult      bool           `json:"has_result"`
	ResultExported bool           `json:"result_exported"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	LastPolledAt   *time.Time     `json:"last_polled_at,omitempty"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// TaskFromDomain конвертирует доменную модель в DTO
func TaskFromDomain(task *domain.TrackedTask) *TaskResponse {
	return &TaskResponse{
		ID:             task.ID,
		FileID:         task.FileID,
		AlgorithmKey:   task.AlgorithmKey,
		Params:         task.Params,
		State:          task.State.String(),
		Progress:       task.Progress,
		Stage:          task.Stage,
		Message:        task.Message,
		Error:          task.ErrorMessage,
		Profile:        task.Profile,
		HasResult:      task.Result != nil,
		ResultExported: task.ResultKey != "",
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
		LastPolledAt:   task.LastPolledAt,
		CompletedAt:    task.CompletedAt,
	}
}

// TaskListResponse ответ со списком задач
type TaskListResponse struct {
	Tasks      []*TaskResponse `json:"tasks"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// TaskListFromDomain конвертирует результат списка в DTO
func TaskListFromDomain(result *domain.TaskListResult) *TaskListResponse {
	tasks := make([]*TaskResponse, len(result.Tasks))
	for i, task := range result.Tasks {
		tasks[i] = TaskFromDomain(task)
	}

	return &TaskListResponse{
		Tasks:      tasks,
		Total:      result.Total,
		Page:       result.Pagination.Page,
		PageSize:   result.Pagination.PageSize,
		TotalPages: result.Pagination.TotalPages(result.Total),
	}
}

// ResultResponse ответ с результатом идентификации
type ResultResponse struct {
	TaskID string             `json:"task_id"`
	Result map[string]any     `json:"result"`
	Meta   map[string]any     `json:"meta,omitempty"`
	Top    []domain.NodeScore `json:"top"`
}

// ResultFromDomain конвертирует результат; при top <= 0 все узлы
func ResultFromDomain(result *domain.Result, top int) *ResultResponse {
	return &ResultResponse{
		TaskID: result.TaskID,
		Result: result.Values,
		Meta:   result.Meta,
		Top:    result.TopK(top),
	}
}

// ExportResponse ссылки на экспортированный результат
type ExportResponse struct {
	TaskID string            `json:"task_id"`
	URLs   map[string]string `json:"urls"`
}
