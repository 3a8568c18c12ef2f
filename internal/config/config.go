// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Output modes.
const (
	ModeContent = "content"
	ModeStatus  = "status"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Source   SourceConfig   `mapstructure:"source"`
	Sink     SinkConfig     `mapstructure:"sink"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Failures FailuresConfig `mapstructure:"failures"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PipelineConfig sizes the worker pool and its queues.
type PipelineConfig struct {
	WorkerCount     int    `mapstructure:"worker_count"`
	URLQueueSize    int    `mapstructure:"url_queue_size"`
	ResultQueueSize int    `mapstructure:"result_queue_size"`
	OutputMode      string `mapstructure:"output_mode"`
	EmitFailures    bool   `mapstructure:"emit_failures"`
}

// SourceConfig locates the URL list (local path or gs:// URI).
type SourceConfig struct {
	Path string `mapstructure:"path"`
}

// SinkConfig locates the JSON-lines output (local path or gs:// URI).
type SinkConfig struct {
	Path string `mapstructure:"path"`
}

// HTTPConfig configures the HTTP client and per-host rate limiting.
type HTTPConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	MaxBodyBytes   int           `mapstructure:"max_body_bytes"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

// RetryConfig configures the retry policy.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// FailuresConfig enables the Postgres failure ledger when DSN is set.
type FailuresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// NotifyConfig enables the Pub/Sub run summary when Topic is set.
type NotifyConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig enables the metrics listener when ListenAddr is set.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FETCHPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.worker_count", 10)
	v.SetDefault("pipeline.url_queue_size", 100)
	v.SetDefault("pipeline.result_queue_size", 100)
	v.SetDefault("pipeline.output_mode", ModeContent)
	v.SetDefault("pipeline.emit_failures", false)
	v.SetDefault("source.path", "urls.txt")
	v.SetDefault("sink.path", "results.jsonl")
	v.SetDefault("http.timeout", 2*time.Second)
	v.SetDefault("http.user_agent", "fetchpipe/0.1")
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("http.rate_limit_rps", 0)
	v.SetDefault("http.rate_limit_burst", 1)
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.base_delay", time.Second)
	v.SetDefault("retry.max_delay", 30*time.Second)
	v.SetDefault("failures.dsn", "")
	v.SetDefault("failures.table", "fetch_failures")
	v.SetDefault("notify.project_id", "")
	v.SetDefault("notify.topic", "")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Pipeline.WorkerCount <= 0 {
		return fmt.Errorf("pipeline.worker_count must be > 0")
	}
	if c.Pipeline.URLQueueSize < 0 {
		return fmt.Errorf("pipeline.url_queue_size must be >= 0")
	}
	if c.Pipeline.ResultQueueSize < 0 {
		return fmt.Errorf("pipeline.result_queue_size must be >= 0")
	}
	switch c.Pipeline.OutputMode {
	case ModeContent, ModeStatus:
	default:
		return fmt.Errorf("pipeline.output_mode must be %q or %q, got %q", ModeContent, ModeStatus, c.Pipeline.OutputMode)
	}
	if strings.TrimSpace(c.Source.Path) == "" {
		return fmt.Errorf("source.path is required")
	}
	if strings.TrimSpace(c.Sink.Path) == "" {
		return fmt.Errorf("sink.path is required")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0")
	}
	if c.HTTP.RateLimitRPS < 0 {
		return fmt.Errorf("http.rate_limit_rps must be >= 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be > 0")
	}
	if c.Retry.MaxDelay < 0 {
		return fmt.Errorf("retry.max_delay must be >= 0")
	}
	if c.Notify.Topic != "" && c.Notify.ProjectID == "" {
		return fmt.Errorf("notify.project_id must be set when notify.topic is set")
	}
	return nil
}
