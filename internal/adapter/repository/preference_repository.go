package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/plastinin/identtracker/internal/domain"
)

// PreferenceRepository хранит пользовательские настройки опроса по профилям.
// Незаданные поля берутся из значений по умолчанию.
type PreferenceRepository struct {
	pool     *pgxpool.Pool
	defaults domain.PollPreferences
}

// NewPreferenceRepository создаёт новый экземпляр PreferenceRepository
func NewPreferenceRepository(pool *pgxpool.Pool, defaults domain.PollPreferences) *PreferenceRepository {
	return &PreferenceRepository{pool: pool, defaults: defaults.Normalize()}
}

// Get возвращает настройки профиля поверх значений по умолчанию
func (r *PreferenceRepository) Get(ctx context.Context, profile string) (domain.PollPreferences, error) {
	query := `SELECT interval_ms, timeout_ms, max_retries FROM poll_preferences WHERE profile = $1`

	var intervalMs, timeoutMs *int64
	var maxRetries *int
	err := r.pool.QueryRow(ctx, query, profile).Scan(&intervalMs, &timeoutMs, &maxRetries)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.defaults, nil
		}
		return domain.PollPreferences{}, fmt.Errorf("failed to get preferences: %w", err)
	}

	return overridesFromColumns(intervalMs, timeoutMs, maxRetries).Apply(r.defaults), nil
}

// Save сохраняет настройки профиля. Поля, равные nil, не меняются.
func (r *PreferenceRepository) Save(ctx context.Context, profile string, overrides domain.PreferenceOverrides) error {
	intervalMs, timeoutMs := millis(overrides.Interval), millis(overrides.Timeout)

	query := `
		INSERT INTO poll_preferences (profile, interval_ms, timeout_ms, max_retries, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (profile) DO UPDATE SET
			interval_ms = COALESCE(EXCLUDED.interval_ms, poll_preferences.interval_ms),
			timeout_ms = COALESCE(EXCLUDED.timeout_ms, poll_preferences.timeout_ms),
			max_retries = COALESCE(EXCLUDED.max_retries, poll_preferences.max_retries),
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, profile, intervalMs, timeoutMs, overrides.MaxRetries); err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}

	return nil
}

func overridesFromColumns(intervalMs, timeoutMs *int64, maxRetries *int) domain.PreferenceOverrides {
	var o domain.PreferenceOverrides
	if intervalMs != nil {
		d := time.Duration(*intervalMs) * time.Millisecond
		o.Interval = &d
	}
	if timeoutMs != nil {
		d := time.Duration(*timeoutMs) * time.Millisecond
		o.Timeout = &d
	}
	o.MaxRetries = maxRetries
	return o
}

func millis(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	ms := d.Milliseconds()
	return &ms
}
