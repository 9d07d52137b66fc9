// Package config loads lesson-runner settings from, in increasing priority:
// built-in defaults, lessonrun.yaml, a .env file and LESSONRUN_* environment
// variables. Nested keys map to env vars with "_" (remote.base_url →
// LESSONRUN_REMOTE_BASE_URL).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "LESSONRUN"

	HistoryJSON   = "json"
	HistorySQLite = "sqlite"

	BackendProcess = "process"
	BackendDocker  = "docker"
)

type DockerConfig struct {
	Image       string  `mapstructure:"image"`
	MemoryLimit int64   `mapstructure:"memory_limit"`
	CPULimit    float64 `mapstructure:"cpu_limit"`
	PoolSize    int     `mapstructure:"pool_size"`
}

type LocalConfig struct {
	Interpreter string       `mapstructure:"interpreter"`
	Extension   string       `mapstructure:"extension"`
	Backend     string       `mapstructure:"backend"`
	Docker      DockerConfig `mapstructure:"docker"`
}

type RemoteConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	LanguageID  int           `mapstructure:"language_id"`
	AuthToken   string        `mapstructure:"auth_token"`
	BearerToken string        `mapstructure:"bearer_token"`
	HTTPSlack   time.Duration `mapstructure:"http_slack"`
}

type HistoryConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	PassphraseHash    string        `mapstructure:"passphrase_hash"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	MaxTimeoutSeconds int           `mapstructure:"max_timeout_seconds"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Config struct {
	ContentRoot           string        `mapstructure:"content_root"`
	DefaultTimeoutSeconds int           `mapstructure:"default_timeout_seconds"`
	Local                 LocalConfig   `mapstructure:"local"`
	Remote                RemoteConfig  `mapstructure:"remote"`
	History               HistoryConfig `mapstructure:"history"`
	Server                ServerConfig  `mapstructure:"server"`
	Log                   LogConfig     `mapstructure:"log"`
}

// Options says where to look. Empty fields use the defaults: lessonrun.yaml in
// "." or $HOME/.lessonrun, and ".env" in the working directory.
type Options struct {
	ConfigFile string
	EnvFile    string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("content_root", ".")
	v.SetDefault("default_timeout_seconds", 30)

	v.SetDefault("local.interpreter", "python3")
	v.SetDefault("local.extension", ".py")
	v.SetDefault("local.backend", BackendProcess)
	v.SetDefault("local.docker.image", "python:3.12-alpine")
	v.SetDefault("local.docker.memory_limit", 128*1024*1024)
	v.SetDefault("local.docker.cpu_limit", 0.5)
	v.SetDefault("local.docker.pool_size", 2)

	v.SetDefault("remote.base_url", "http://localhost:2358")
	v.SetDefault("remote.language_id", 71)
	v.SetDefault("remote.auth_token", "")
	v.SetDefault("remote.bearer_token", "")
	v.SetDefault("remote.http_slack", "10s")

	v.SetDefault("history.backend", HistoryJSON)
	v.SetDefault("history.path", "")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.passphrase_hash", "")
	v.SetDefault("server.token_ttl", "1h")
	v.SetDefault("server.max_timeout_seconds", 120)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "tint")
}

// Load reads configuration. A missing config file or .env file is not an error.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("lessonrun")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.lessonrun")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDerived fills values that depend on other settings.
func (c *Config) applyDerived() {
	if !strings.HasPrefix(c.Local.Extension, ".") {
		c.Local.Extension = "." + c.Local.Extension
	}
	if c.History.Path == "" {
		name := "history.json"
		if c.History.Backend == HistorySQLite {
			name = "history.db"
		}
		c.History.Path = filepath.Join(c.ContentRoot, "outputs", name)
	}
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.ContentRoot == "":
		return fmt.Errorf("config: content_root must not be empty")
	case c.DefaultTimeoutSeconds <= 0:
		return fmt.Errorf("config: default_timeout_seconds must be positive")
	case c.Local.Backend != BackendProcess && c.Local.Backend != BackendDocker:
		return fmt.Errorf("config: local.backend must be %q or %q, got %q", BackendProcess, BackendDocker, c.Local.Backend)
	case c.History.Backend != HistoryJSON && c.History.Backend != HistorySQLite:
		return fmt.Errorf("config: history.backend must be %q or %q, got %q", HistoryJSON, HistorySQLite, c.History.Backend)
	case c.Remote.HTTPSlack < 0:
		return fmt.Errorf("config: remote.http_slack must not be negative")
	case c.Server.MaxTimeoutSeconds < 0:
		return fmt.Errorf("config: server.max_timeout_seconds must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "tint", "text", "json":
	default:
		return fmt.Errorf("config: log.format must be tint, text or json, got %q", c.Log.Format)
	}
	return nil
}

// SlogLevel parses log.level ("debug", "info", "warn", "error").
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: invalid log.level %q", l.Level)
	}
	return level, nil
}
