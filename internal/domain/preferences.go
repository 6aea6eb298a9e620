package domain

import "time"

// Значения опроса по умолчанию
const (
	DefaultPollInterval   = time.Second
	DefaultPollTimeout    = 10 * time.Minute
	DefaultPollMaxRetries = 3
)

// PollPreferences параметры ожидания финального состояния
type PollPreferences struct {
	Interval   time.Duration `json:"interval"`    // Пауза между опросами
	Timeout    time.Duration `json:"timeout"`     // Общий срок от создания задачи
	MaxRetries int           `json:"max_retries"` // Допустимое число ошибок опроса подряд
}

// DefaultPollPreferences возвращает значения по умолчанию
func DefaultPollPreferences() PollPreferences {
	return PollPreferences{
		Interval:   DefaultPollInterval,
		Timeout:    DefaultPollTimeout,
		MaxRetries: DefaultPollMaxRetries,
	}
}

// Normalize заменяет недопустимые значения значениями по умолчанию.
// Нулевой Timeout допустим: задача сразу считается просроченной.
func (p PollPreferences) Normalize() PollPreferences {
	if p.Interval <= 0 {
		p.Interval = DefaultPollInterval
	}
	if p.Timeout < 0 {
		p.Timeout = 0
	}
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return p
}

// PreferenceOverrides пользовательские значения поверх значений по умолчанию
type PreferenceOverrides struct {
	Interval   *time.Duration `json:"interval,omitempty"`
	Timeout    *time.Duration `json:"timeout,omitempty"`
	MaxRetries *int           `json:"max_retries,omitempty"`
}

// Apply накладывает заданные поля на base
func (o PreferenceOverrides) Apply(base PollPreferences) PollPreferences {
	if o.Interval != nil {
		base.Interval = *o.Interval
	}
	if o.Timeout != nil {
		base.Timeout = *o.Timeout
	}
	if o.MaxRetries != nil {
		base.MaxRetries = *o.MaxRetries
	}
	return base.Normalize()
}
