package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/plastinin/identtracker/internal/adapter/http/dto"
	"github.com/plastinin/identtracker/internal/domain"
	"github.com/plastinin/identtracker/internal/usecase"
	"go.uber.org/zap"
)

const (
	maxBodySize = 1 << 20 // 1 MB
)

// TaskService операции над отслеживаемыми задачами
type TaskService interface {
	Submit(ctx context.Context, input usecase.SubmitTaskInput) (*domain.TrackedTask, error)
	GetByID(ctx context.Context, id string) (*domain.TrackedTask, error)
	List(ctx context.Context, filter domain.TaskFilter, pagination domain.Pagination) (*domain.TaskListResult, error)
	Cancel(ctx context.Context, id string) (*domain.TrackedTask, error)
	Result(ctx context.Context, id string) (*domain.Result, error)
	ExportURLs(ctx context.Context, id string) (map[string]string, error)
	Delete(ctx context.Context, id string) error
}

// TaskHandler обработчик HTTP запросов для задач
type TaskHandler struct {
	tasks  TaskService
	logger *zap.Logger
}

// NewTaskHandler создаёт новый TaskHandler
func NewTaskHandler(tasks TaskService, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:  tasks,
		logger: logger,
	}
}

// Create создаёт задачу идентификации и ставит её на отслеживание
// POST /api/v1/tasks
// {"file_id": 42, "algorithm_key": "algo-v2", "params": {}, "profile": "default"}
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode request body", zap.Error(err))
		respondError(w, h.logger, http.StatusBadRequest, "invalid_request", "Request body must be a JSON object")
		return
	}

	task, err := h.tasks.Submit(r.Context(), req.Input())
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusCreated, dto.TaskFromDomain(task))
}

// GetByID возвращает задачу по ID
// GET /api/v1/tasks/{id}
func (h *TaskHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.GetByID(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.TaskFromDomain(task))
}

// List возвращает список задач
// GET /api/v1/tasks?page=1&page_size=20&state=running&profile=default
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	// Парсим параметры пагинации
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	pagination := domain.NewPagination(page, pageSize)

	// Парсим фильтры; неизвестное состояние игнорируется
	filter := domain.TaskFilter{Profile: r.URL.Query().Get("profile")}
	if stateStr := r.URL.Query().Get("state"); stateStr != "" {
		state := domain.TaskState(stateStr)
		if state.IsValid() {
			filter.State = &state
		}
	}

	result, err := h.tasks.List(r.Context(), filter, pagination)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.TaskListFromDomain(result))
}

// Cancel отменяет задачу
// POST /api/v1/tasks/{id}/cancel
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	task, err := h.tasks.Cancel(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.TaskFromDomain(task))
}

// Result возвращает результат успешной задачи
// GET /api/v1/tasks/{id}/result?top=10
func (h *TaskHandler) Result(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	top := domain.DefaultTopK
	if topStr := r.URL.Query().Get("top"); topStr != "" {
		n, err := strconv.Atoi(topStr)
		if err != nil || n < 0 {
			respondError(w, h.logger, http.StatusBadRequest, "invalid_request", "top must be a non-negative integer")
			return
		}
		top = n
	}

	result, err := h.tasks.Result(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.ResultFromDomain(result, top))
}

// Export возвращает ссылки на экспортированный результат
// GET /api/v1/tasks/{id}/export
func (h *TaskHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	urls, err := h.tasks.ExportURLs(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, &dto.ExportResponse{TaskID: id, URLs: urls})
}

// Delete удаляет задачу
// DELETE /api/v1/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.taskID(w, r)
	if !ok {
		return
	}

	if err := h.tasks.Delete(r.Context(), id); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// taskID извлекает ID задачи из пути
func (h *TaskHandler) taskID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_id", "Task ID is required")
		return "", false
	}
	return id, true
}
