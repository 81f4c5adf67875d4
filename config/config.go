package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration problems that must abort startup.
var ErrInvalid = errors.New("invalid configuration")

const maxPageSize = 500

// Config represents the overall application configuration.
type Config struct {
	Authentication AuthConfig       `yaml:"authentication"`
	OpenTypes      []string         `yaml:"open_types" validate:"required,min=1,dive,required"`
	Courses        CourseTable      `yaml:"courses"`
	Protocol       string           `yaml:"protocol" validate:"omitempty,oneof=legacy current"`
	Session        SessionConfig    `yaml:"session"`
	Poller         PollerConfig     `yaml:"poller"`
	Worker         WorkerConfig     `yaml:"worker"`
	Supervisor     SupervisorConfig `yaml:"supervisor"`
	Server         ServerConfig     `yaml:"server"`
	Database       DatabaseConfig   `yaml:"database"`
	Push           PushConfig       `yaml:"push"`
	WorkerPool     WorkerPoolConfig `yaml:"worker_pool"`
	Log            LogConfig        `yaml:"log"`
}

// AuthConfig holds the student credentials. A pre-issued token skips the login call.
type AuthConfig struct {
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password" validate:"required_without=Token"`
	Token    string `yaml:"token"`
}

// SessionConfig configures the shared HTTP session.
type SessionConfig struct {
	BaseURL        string        `yaml:"base_url" validate:"omitempty,url"`
	RateLimitMS    int           `yaml:"rate_limit_ms"`
	RateLimit      time.Duration `yaml:"-"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
	HTTPProxy      string        `yaml:"http_proxy"`
}

// PollerConfig configures the catalog poller.
type PollerConfig struct {
	PageSize int `yaml:"page_size"`
}

// WorkerConfig configures enrollment workers.
type WorkerConfig struct {
	WaitIntervalMS int           `yaml:"wait_interval_ms"`
	WaitInterval   time.Duration `yaml:"-"`
	RetryPauseMS   int           `yaml:"retry_pause_ms"`
	RetryPause     time.Duration `yaml:"-"`
}

// SupervisorConfig configures the status refresh loop and shutdown.
type SupervisorConfig struct {
	RefreshIntervalMS int           `yaml:"refresh_interval_ms"`
	RefreshInterval   time.Duration `yaml:"-"`
	GraceMS           int           `yaml:"grace_ms"`
	Grace             time.Duration `yaml:"-"`
}

// ServerConfig holds the optional status server configuration. Port 0 disables it.
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"gte=0,lte=65535"`
	RateLimitPerSec float64       `yaml:"rate_limit_per_sec"`
	CacheTTLMS      int           `yaml:"cache_ttl_ms"`
	CacheTTL        time.Duration `yaml:"-"`
}

// DatabaseConfig holds the attempt-history database configuration. An empty DSN disables it.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key" validate:"required_with=PublicKey"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// LogConfig configures the zap logger. File "-" logs to stderr.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
	File   string `yaml:"file"`
}

// Load reads the configuration from the given path, applies environment overrides and defaults,
// and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv("RACER_USERNAME"); v != "" {
		cfg.Authentication.Username = v
	}
	if v := os.Getenv("RACER_PASSWORD"); v != "" {
		cfg.Authentication.Password = v
	}
	if v := os.Getenv("RACER_TOKEN"); v != "" {
		cfg.Authentication.Token = v
	}
}

func (cfg *Config) applyDefaults() {
	if cfg.Protocol == "" {
		cfg.Protocol = "current"
	}

	if cfg.Session.RateLimitMS <= 0 {
		cfg.Session.RateLimitMS = 100
	}
	cfg.Session.RateLimit = time.Duration(cfg.Session.RateLimitMS) * time.Millisecond
	if cfg.Session.TimeoutSeconds <= 0 {
		cfg.Session.TimeoutSeconds = 30
	}
	cfg.Session.Timeout = time.Duration(cfg.Session.TimeoutSeconds) * time.Second

	if cfg.Poller.PageSize <= 0 || cfg.Poller.PageSize > maxPageSize {
		cfg.Poller.PageSize = maxPageSize
	}

	if cfg.Worker.WaitIntervalMS <= 0 {
		cfg.Worker.WaitIntervalMS = 1000
	}
	cfg.Worker.WaitInterval = time.Duration(cfg.Worker.WaitIntervalMS) * time.Millisecond
	if cfg.Worker.RetryPauseMS < 0 {
		cfg.Worker.RetryPauseMS = 0
	} else if cfg.Worker.RetryPauseMS == 0 {
		cfg.Worker.RetryPauseMS = 500
	}
	cfg.Worker.RetryPause = time.Duration(cfg.Worker.RetryPauseMS) * time.Millisecond

	if cfg.Supervisor.RefreshIntervalMS <= 0 {
		cfg.Supervisor.RefreshIntervalMS = 100
	}
	cfg.Supervisor.RefreshInterval = time.Duration(cfg.Supervisor.RefreshIntervalMS) * time.Millisecond
	if cfg.Supervisor.GraceMS <= 0 {
		cfg.Supervisor.GraceMS = 1000
	}
	cfg.Supervisor.Grace = time.Duration(cfg.Supervisor.GraceMS) * time.Millisecond

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.CacheTTLMS <= 0 {
		cfg.Server.CacheTTLMS = 500
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLMS) * time.Millisecond

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.WorkerPool.Size <= 0 {
		cfg.WorkerPool.Size = 1
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "racer.log"
	}
}

// Validate checks struct constraints and that at least one course is configured.
func (cfg *Config) Validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if cfg.Courses.JobCount() == 0 {
		return fmt.Errorf("%w: no courses configured", ErrInvalid)
	}
	return nil
}

// CheckBuckets verifies every open type is one of the protocol's known buckets.
func (cfg *Config) CheckBuckets(known []string) error {
	for _, t := range cfg.OpenTypes {
		if !slices.Contains(known, t) {
			return fmt.Errorf("%w: open type %q is not one of %v", ErrInvalid, t, known)
		}
	}
	return nil
}
