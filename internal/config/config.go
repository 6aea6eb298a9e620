package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/plastinin/identtracker/internal/domain"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Watch     WatchConfig
	S3        S3Config
	RemoteAPI RemoteAPIConfig
	Poll      PollConfig
	Cache     CacheConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host            string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"identtracker"`
	Password        string        `env:"DB_PASSWORD" envDefault:"secret"`
	Name            string        `env:"DB_NAME" envDefault:"identtracker"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns        int           `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" envDefault:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	// Применять миграции при старте API
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" envDefault:"true"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// WatchConfig настройки фоновых задач отслеживания
type WatchConfig struct {
	Concurrency int           `env:"WATCH_CONCURRENCY" envDefault:"4"`
	MaxRetry    int           `env:"WATCH_MAX_RETRY" envDefault:"5"`
	Timeout     time.Duration `env:"WATCH_TIMEOUT" envDefault:"15m"`
}

type S3Config struct {
	Endpoint  string `env:"S3_ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"S3_ACCESS_KEY" envDefault:"minioadmin"`
	SecretKey string `env:"S3_SECRET_KEY" envDefault:"minioadmin"`
	Bucket    string `env:"S3_BUCKET" envDefault:"identification-results"`
	UseSSL    bool   `env:"S3_USE_SSL" envDefault:"false"`
}

// RemoteAPIConfig параметры удалённого API задач идентификации
type RemoteAPIConfig struct {
	BaseURL        string        `env:"IDENT_API_URL" envDefault:"http://localhost:5000/api/identification"`
	Token          string        `env:"IDENT_API_TOKEN" envDefault:""`
	RequestTimeout time.Duration `env:"IDENT_API_TIMEOUT" envDefault:"30s"`
}

// PollConfig значения опроса по умолчанию
type PollConfig struct {
	Interval   time.Duration `env:"IDENT_POLL_INTERVAL" envDefault:"1s"`
	Timeout    time.Duration `env:"IDENT_POLL_TIMEOUT" envDefault:"10m"`
	MaxRetries int           `env:"IDENT_POLL_MAX_RETRIES" envDefault:"3"`
}

// Preferences возвращает настройки опроса по умолчанию для профилей
func (p PollConfig) Preferences() domain.PollPreferences {
	return domain.PollPreferences{
		Interval:   p.Interval,
		Timeout:    p.Timeout,
		MaxRetries: p.MaxRetries,
	}.Normalize()
}

type CacheConfig struct {
	MaxItems int64         `env:"CACHE_MAX_ITEMS" envDefault:"1000"`
	TTL      time.Duration `env:"CACHE_TTL" envDefault:"10m"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
	// json или console
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}
