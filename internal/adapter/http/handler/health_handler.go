package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/plastinin/identtracker/internal/adapter/http/dto"
	"go.uber.org/zap"
)

// Pinger проверяет доступность зависимости
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler обработчик health check запросов
type HealthHandler struct {
	db     Pinger
	logger *zap.Logger
}

// NewHealthHandler создаёт новый HealthHandler
func NewHealthHandler(db Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// Check проверяет состояние сервиса
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("Database health check failed", zap.Error(err))
		respondJSON(w, h.logger, http.StatusServiceUnavailable, dto.HealthResponse{Status: "degraded", Database: "unavailable"})
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.HealthResponse{Status: "ok", Database: "ok"})
}
