package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/plastinin/identtracker/internal/adapter/http/dto"
	"github.com/plastinin/identtracker/internal/domain"
	"go.uber.org/zap"
)

// respondJSON отправляет JSON ответ
func respondJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError отправляет ответ с ошибкой
func respondError(w http.ResponseWriter, logger *zap.Logger, status int, errCode string, message string) {
	respondJSON(w, logger, status, dto.NewErrorResponse(errCode, message))
}

// respondDomainError отправляет ответ по типу доменной ошибки
func respondDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		message = "Internal server error"
	} else if status == http.StatusBadGateway {
		logger.Warn("Remote API request failed", zap.Error(err))
	}

	resp := dto.NewErrorResponse(code, message)
	var domainErr *domain.Error
	if status != http.StatusInternalServerError && errors.As(err, &domainErr) {
		resp.WithTask(domainErr)
	}
	respondJSON(w, logger, status, resp)
}

// errorStatus сопоставляет ошибку с HTTP статусом и кодом
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidFileID),
		errors.Is(err, domain.ErrEmptyAlgorithmKey),
		errors.Is(err, domain.ErrEmptyTaskID):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	}

	switch domain.KindOf(err) {
	case domain.KindSubmission, domain.KindPoll, domain.KindPollExhausted,
		domain.KindCancellation, domain.KindResult:
		return http.StatusBadGateway, "remote_error"
	}
	return http.StatusInternalServerError, "internal_error"
}
