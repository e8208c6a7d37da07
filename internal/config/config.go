package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int `validate:"gt=0,lt=65536"`
	AllowedOrigins []string
}

type DBConfig struct {
	DSN             string `validate:"required"`
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

type AuthConfig struct {
	AccessSecret string `validate:"required"`
}

type BackendConfig struct {
	BaseURL    string `validate:"required,url"`
	Timeout    time.Duration
	MaxRetries int `validate:"gte=0"`
}

type TimesheetConfig struct {
	AutosaveDebounce time.Duration `validate:"gt=0"`
	WriteTimeout     time.Duration `validate:"gt=0"`
	SessionIdleTTL   time.Duration `validate:"gt=0"`
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Backend     BackendConfig
	Timesheets  TimesheetConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", 7090)
	v.SetDefault("BACKEND_TIMEOUT", "10s")
	v.SetDefault("BACKEND_MAX_RETRIES", 3)
	v.SetDefault("AUTOSAVE_DEBOUNCE", "1s")
	v.SetDefault("AUTOSAVE_WRITE_TIMEOUT", "15s")
	v.SetDefault("SESSION_IDLE_TTL", "2h")

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Backend: BackendConfig{
			BaseURL:    strings.TrimRight(v.GetString("BACKEND_BASE_URL"), "/"),
			Timeout:    v.GetDuration("BACKEND_TIMEOUT"),
			MaxRetries: v.GetInt("BACKEND_MAX_RETRIES"),
		},
		Timesheets: TimesheetConfig{
			AutosaveDebounce: v.GetDuration("AUTOSAVE_DEBOUNCE"),
			WriteTimeout:     v.GetDuration("AUTOSAVE_WRITE_TIMEOUT"),
			SessionIdleTTL:   v.GetDuration("SESSION_IDLE_TTL"),
		},
	}

	if len(cfg.HTTP.AllowedOrigins) == 0 {
		cfg.HTTP.AllowedOrigins = []string{"*"}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
