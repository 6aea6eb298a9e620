package dto

import (
	"errors"
	"time"

	"github.com/plastinin/identtracker/internal/domain"
)

// ErrNegativePreference отрицательное значение настройки
var ErrNegativePreference = errors.New("preference values must not be negative")

// PreferencesRequest изменение настроек опроса; отсутствующие поля не меняются
type PreferencesRequest struct {
	IntervalMs *int64 `json:"interval_ms"`
	TimeoutMs  *int64 `json:"timeout_ms"`
	MaxRetries *int   `json:"max_retries"`
}

// Overrides конвертирует запрос в доменные переопределения
func (r PreferencesRequest) Overrides() (domain.PreferenceOverrides, error) {
	var o domain.PreferenceOverrides
	if r.IntervalMs != nil {
		if *r.IntervalMs <= 0 {
			return o, errors.New("interval_ms must be positive")
		}
		d := time.Duration(*r.IntervalMs) * time.Millisecond
		o.Interval = &d
	}
	if r.TimeoutMs != nil {
		if *r.TimeoutMs < 0 {
			return o, ErrNegativePreference
		}
		d := time.Duration(*r.TimeoutMs) * time.Millisecond
		o.Timeout = &d
	}
	if r.MaxRetries != nil {
		if *r.MaxRetries < 0 {
			return o, ErrNegativePreference
		}
		o.MaxRetries = r.MaxRetries
	}
	return o, nil
}

// PreferencesResponse действующие настройки опроса профиля
type PreferencesResponse struct {
	Profile    string `json:"profile"`
	IntervalMs int64  `json:"interval_ms"`
	TimeoutMs  int64  `json:"timeout_ms"`
	MaxRetries int    `json:"max_retries"`
}

// PreferencesFromDomain конвертирует настройки в DTO
func PreferencesFromDomain(profile string, prefs domain.PollPreferences) *PreferencesResponse {
	return &PreferencesResponse{
		Profile:    profile,
		IntervalMs: prefs.Interval.Milliseconds(),
		TimeoutMs:  prefs.Timeout.Milliseconds(),
		MaxRetries: prefs.MaxRetries,
	}
}
