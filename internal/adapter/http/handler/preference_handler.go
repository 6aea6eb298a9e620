package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/plastinin/identtracker/internal/adapter/http/dto"
	"github.com/plastinin/identtracker/internal/domain"
	"go.uber.org/zap"
)

// PreferenceService операции над настройками опроса
type PreferenceService interface {
	Preferences(ctx context.Context, profile string) (domain.PollPreferences, error)
	UpdatePreferences(ctx context.Context, profile string, overrides domain.PreferenceOverrides) (domain.PollPreferences, error)
}

// PreferenceHandler обработчик настроек опроса
type PreferenceHandler struct {
	prefs  PreferenceService
	logger *zap.Logger
}

// NewPreferenceHandler создаёт новый PreferenceHandler
func NewPreferenceHandler(prefs PreferenceService, logger *zap.Logger) *PreferenceHandler {
	return &PreferenceHandler{prefs: prefs, logger: logger}
}

// Get возвращает действующие настройки профиля
// GET /api/v1/preferences/{profile}
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile := profileParam(r)

	prefs, err := h.prefs.Preferences(r.Context(), profile)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, h.logger, http.StatusOK, dto.PreferencesFromDomain(profile, prefs))
}

// Update изменяет настройки профиля
// PUT /api/v1/preferences/{profile}
func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req dto.PreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_request", "Request body must be a JSON object")
		return
	}

	overrides, err := req.Overrides()
	if err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	profile := profileParam(r)
	prefs, err := h.prefs.UpdatePreferences(r.Context(), profile, overrides)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	h.logger.Info("Poll preferences updated", zap.String("profile", profile))
	respondJSON(w, h.logger, http.StatusOK, dto.PreferencesFromDomain(profile, prefs))
}

func profileParam(r *http.Request) string {
	profile := chi.URLParam(r, "profile")
	if profile == "" {
		return domain.DefaultProfile
	}
	return profile
}
