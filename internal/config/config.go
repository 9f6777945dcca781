// Package config holds the runtime configuration of the examops tool:
// logging, template lookup, the compliance scorer and report output.
//
// Values are layered: struct defaults, then an optional YAML file, then
// EXAMOPS_* environment variables. See Load.
package config

import (
	"context"
	"time"

	"github.com/lerlerchan/ExamOps-Orchestrator/compliance"
	"github.com/lerlerchan/ExamOps-Orchestrator/internal/logger"
	"github.com/lerlerchan/ExamOps-Orchestrator/report"
)

// Config is the complete configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Template TemplateConfig `koanf:"template"`
	Scorer   ScorerConfig   `koanf:"scorer"`
	Report   ReportConfig   `koanf:"report"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level     string `koanf:"level"      validate:"oneof=debug info warn error disabled"`
	JSON      bool   `koanf:"json"`
	AddSource bool   `koanf:"add_source"`
}

// TemplateConfig selects the rule set. Without a registry the built-in
// default rule set is used.
type TemplateConfig struct {
	Registry    string `koanf:"registry"`
	Institution string `koanf:"institution"`
	Faculty     string `koanf:"faculty"`
}

// ScorerConfig configures the HTTP compliance scorer. An empty endpoint
// disables scoring.
type ScorerConfig struct {
	Endpoint string        `koanf:"endpoint" validate:"omitempty,url"`
	APIKey   string        `koanf:"api_key"`
	Timeout  time.Duration `koanf:"timeout"  validate:"gt=0"`
	Retry    int           `koanf:"retry"    validate:"gte=0,lte=10"`
}

// ReportConfig configures report rendering and the saving stage.
type ReportConfig struct {
	ContextLines int      `koanf:"context_lines" validate:"gte=0,lte=50"`
	Formats      []string `koanf:"formats"       validate:"min=1,dive,oneof=json html text txt diff"`
	OutputDir    string   `koanf:"output_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: "info",
		},
		Scorer: ScorerConfig{
			Timeout: compliance.DefaultTimeout,
			Retry:   2,
		},
		Report: ReportConfig{
			ContextLines: 3,
			Formats:      []string{"json", "html"},
			OutputDir:    "out",
		},
	}
}

// LoggerConfig converts the log section into a logger configuration.
func (c LogConfig) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.ParseLevel(c.Level)
	cfg.JSON = c.JSON
	cfg.AddSource = c.AddSource
	return cfg
}

// HTTPConfig converts the scorer section into an HTTP scorer configuration.
func (c ScorerConfig) HTTPConfig() compliance.HTTPConfig {
	return compliance.HTTPConfig{
		Endpoint:   c.Endpoint,
		APIKey:     c.APIKey,
		Timeout:    c.Timeout,
		RetryCount: c.Retry,
	}
}

// ReportFormats parses the configured report formats.
func (c ReportConfig) ReportFormats() ([]report.Format, error) {
	formats := make([]report.Format, 0, len(c.Formats))
	for _, name := range c.Formats {
		f, err := report.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

type ctxKey string

// ConfigCtxKey is the context key the configuration is stored under.
const ConfigCtxKey ctxKey = "config"

// ContextWithConfig returns a copy of ctx carrying cfg.
func ContextWithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, ConfigCtxKey, cfg)
}

// FromContext returns the configuration stored in ctx, or the defaults.
func FromContext(ctx context.Context) *Config {
	if ctx != nil {
		if cfg, ok := ctx.Value(ConfigCtxKey).(*Config); ok && cfg != nil {
			return cfg
		}
	}
	return Default()
}
