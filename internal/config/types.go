// Package config manages application configuration from config.yaml,
// AIPHONE_* environment variables and default values.
package config

import (
	"errors"
	"time"
)

// ErrConfiguration wraps every error returned while loading configuration.
var ErrConfiguration = errors.New("configuration error")

// Config is the root configuration of the aiphone daemon.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Store     StoreConfig     `mapstructure:"store"`
	Reply     ReplyConfig     `mapstructure:"reply"`
	Status    StatusConfig    `mapstructure:"status"`
	Session   SessionConfig   `mapstructure:"session"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
}

// LoggerConfig controls the slog handler.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// ServerConfig configures the HTTP front end.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
	MaxAvatarBytes  int64         `mapstructure:"max_avatar_bytes" validate:"min=1024"`
}

// DatabaseConfig locates the SQLite file used by the sqlite store driver.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// StoreConfig selects the backend holding the persisted profile record.
type StoreConfig struct {
	Driver string      `mapstructure:"driver" validate:"required,oneof=sqlite redis memory"`
	Key    string      `mapstructure:"key"    validate:"required"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// RedisConfig is used when Store.Driver is "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

// ReplyConfig holds the request parameters of the AI reply client.
type ReplyConfig struct {
	Provider         string        `mapstructure:"provider"           validate:"required,oneof=openai gemini"`
	Model            string        `mapstructure:"model"              validate:"required"`
	Temperature      float32       `mapstructure:"temperature"        validate:"min=0,max=2"`
	WelcomeMaxTokens int           `mapstructure:"welcome_max_tokens" validate:"min=1"`
	ReplyMaxTokens   int           `mapstructure:"reply_max_tokens"   validate:"min=1"`
	WelcomePrompt    string        `mapstructure:"welcome_prompt"     validate:"required"`
	WelcomeFallback  string        `mapstructure:"welcome_fallback"   validate:"required"`
	ReplyFallback    string        `mapstructure:"reply_fallback"     validate:"required"`
	Timeout          time.Duration `mapstructure:"timeout"            validate:"min=0"`
}

// StatusConfig configures the device status reporter.
type StatusConfig struct {
	TimeZone        string `mapstructure:"time_zone"`
	PowerSupplyPath string `mapstructure:"power_supply_path" validate:"required"`
	NetClassPath    string `mapstructure:"net_class_path"    validate:"required"`
}

// SessionConfig configures page-load sessions.
type SessionConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=1m"`
}

// SchedulerConfig lists the periodic jobs and their cron schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables a registered task on a six-field cron schedule.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// TelegramConfig configures the optional Telegram bridge.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Token   string `mapstructure:"token" validate:"required_if=Enabled true"`
}
