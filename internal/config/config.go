package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is loaded once at
// startup and treated as immutable for the process lifetime.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	PDF       PDFConfig       `yaml:"pdf" mapstructure:"pdf"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	MockMode  bool            `yaml:"mock_mode" mapstructure:"mock_mode"`
}

// AnthropicConfig holds model ids, per-stage timeouts, and output budgets.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	MaxRetries int    `yaml:"max_retries" mapstructure:"max_retries"`

	VisionModel             string `yaml:"vision_model" mapstructure:"vision_model"`
	StructuredModel         string `yaml:"structured_model" mapstructure:"structured_model"`
	VisionFallbackModel     string `yaml:"vision_fallback_model" mapstructure:"vision_fallback_model"`
	StructuredFallbackModel string `yaml:"structured_fallback_model" mapstructure:"structured_fallback_model"`

	VisionTimeoutSecs             int `yaml:"vision_timeout_secs" mapstructure:"vision_timeout_secs"`
	StructuredParseTimeoutSecs    int `yaml:"structured_parse_timeout_secs" mapstructure:"structured_parse_timeout_secs"`
	StructuredFallbackTimeoutSecs int `yaml:"structured_fallback_timeout_secs" mapstructure:"structured_fallback_timeout_secs"`

	DraftMaxTokens int64 `yaml:"draft_max_tokens" mapstructure:"draft_max_tokens"`
	MaxTokens      int64 `yaml:"max_tokens" mapstructure:"max_tokens"`
	DraftMaxChars  int   `yaml:"draft_max_chars" mapstructure:"draft_max_chars"`

	DebugSteps bool `yaml:"debug_steps" mapstructure:"debug_steps"`
}

// VisionTimeout returns the vision stage timeout as a duration.
func (c AnthropicConfig) VisionTimeout() time.Duration {
	return time.Duration(c.VisionTimeoutSecs) * time.Second
}

// StructuredParseTimeout returns the strict-parse stage timeout.
func (c AnthropicConfig) StructuredParseTimeout() time.Duration {
	return time.Duration(c.StructuredParseTimeoutSecs) * time.Second
}

// StructuredFallbackTimeout returns the fallback-call timeout.
func (c AnthropicConfig) StructuredFallbackTimeout() time.Duration {
	return time.Duration(c.StructuredFallbackTimeoutSecs) * time.Second
}

// ResolvedVisionModel applies the override and per-stage defaulting chain.
func (c AnthropicConfig) ResolvedVisionModel(override string) string {
	if override != "" {
		return override
	}
	if c.VisionModel != "" {
		return c.VisionModel
	}
	return c.Model
}

// ResolvedStructuredModel returns the structured-parse model id.
func (c AnthropicConfig) ResolvedStructuredModel() string {
	if c.StructuredModel != "" {
		return c.StructuredModel
	}
	return c.Model
}

// PDFConfig bounds the PDF→image rendering step.
type PDFConfig struct {
	MaxPages         int    `yaml:"max_pages" mapstructure:"max_pages"`
	TargetLongEdge   int    `yaml:"target_long_edge" mapstructure:"target_long_edge"`
	ColorMode        string `yaml:"color_mode" mapstructure:"color_mode"`
	MaxImageB64Chars int    `yaml:"max_image_b64_chars" mapstructure:"max_image_b64_chars"`
	MaxUploadMB      int    `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// MaxPDFBytes is the upload size cap in bytes.
func (c PDFConfig) MaxPDFBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}

// ServerConfig configures the upload server.
type ServerConfig struct {
	Port          int     `yaml:"port" mapstructure:"port"`
	RatePerMinute float64 `yaml:"rate_per_minute" mapstructure:"rate_per_minute"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEAVECLI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_minute", 30)
	v.SetDefault("server.rate_burst", 5)
	v.SetDefault("anthropic.model", "claude-sonnet-4-6")
	v.SetDefault("anthropic.max_retries", 0)
	v.SetDefault("anthropic.vision_timeout_secs", 90)
	v.SetDefault("anthropic.structured_parse_timeout_secs", 15)
	v.SetDefault("anthropic.structured_fallback_timeout_secs", 90)
	v.SetDefault("anthropic.draft_max_tokens", 1024)
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.draft_max_chars", 12000)
	v.SetDefault("pdf.max_pages", 2)
	v.SetDefault("pdf.target_long_edge", 1568)
	v.SetDefault("pdf.color_mode", "gray")
	v.SetDefault("pdf.max_image_b64_chars", 4_000_000)
	v.SetDefault("pdf.max_upload_mb", 15)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
