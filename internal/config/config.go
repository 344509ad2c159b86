// Package config loads and validates the dialogue configuration from a YAML
// file, DIALOGUE_* environment variables and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/capitalize-ai/persona-dialogue/internal/llm"
	"github.com/capitalize-ai/persona-dialogue/internal/model"
	"github.com/capitalize-ai/persona-dialogue/internal/render"
	"github.com/capitalize-ai/persona-dialogue/internal/transcript"
	"github.com/capitalize-ai/persona-dialogue/pkg/logger"
)

// EnvPrefix prefixes every environment override, e.g. DIALOGUE_DELAYS_FIRST.
const EnvPrefix = "DIALOGUE"

// Config holds all configuration for the application.
type Config struct {
	Personas   PersonasConfig   `mapstructure:"personas"`
	Delays     DelaysConfig     `mapstructure:"delays"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
	Render     RenderConfig     `mapstructure:"render"`
	Log        LogConfig        `mapstructure:"log"`
	Observer   ObserverConfig   `mapstructure:"observer"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Tracing    TracingConfig    `mapstructure:"tracing"`

	// Seed opens the conversation. Empty means generate one.
	Seed string `mapstructure:"seed"`
	// MaxTurns ends the run normally after this many replies (0 = unlimited).
	MaxTurns int `mapstructure:"max_turns"`
}

// PersonasConfig holds the two participants; A speaks first.
type PersonasConfig struct {
	A model.Persona `mapstructure:"a"`
	B model.Persona `mapstructure:"b"`
}

// DelaysConfig holds the simulated thinking delays.
type DelaysConfig struct {
	First      time.Duration `mapstructure:"first"`
	Subsequent time.Duration `mapstructure:"subsequent"`
}

// LLMConfig selects the completion provider.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// RetryConfig bounds completion attempts per turn.
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

// TranscriptConfig controls the transcript file and its rotation.
type TranscriptConfig struct {
	Dir        string `mapstructure:"dir"`
	File       string `mapstructure:"file"`
	MaxBytes   int64  `mapstructure:"max_bytes"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// RenderConfig controls terminal presentation.
type RenderConfig struct {
	CharDelay time.Duration `mapstructure:"char_delay"`
	MaxReveal time.Duration `mapstructure:"max_reveal"`
	Spinner   string        `mapstructure:"spinner"`
	Animate   bool          `mapstructure:"animate"`
}

// LogConfig controls operational logging.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Encoding   string `mapstructure:"encoding"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// ObserverConfig controls the optional observer HTTP API.
type ObserverConfig struct {
	Addr           string        `mapstructure:"addr"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	RateLimit      int           `mapstructure:"rate_limit"`
	RateWindow     time.Duration `mapstructure:"rate_window"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// NATSConfig controls the optional JetStream mirror.
type NATSConfig struct {
	URL      string `mapstructure:"url"`
	Token    string `mapstructure:"token"`
	CAFile   string `mapstructure:"ca_file"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Delays: DelaysConfig{
			First:      3 * time.Second,
			Subsequent: 10 * time.Second,
		},
		LLM: LLMConfig{
			Provider:    string(llm.ProviderOpenAI),
			MaxTokens:   1024,
			Temperature: 0.8,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
		},
		Transcript: TranscriptConfig{
			Dir:        "logs",
			File:       transcript.DefaultFileName,
			MaxBytes:   1024 * 1024,
			MaxBackups: 5,
		},
		Render: RenderConfig{
			CharDelay: 20 * time.Millisecond,
			MaxReveal: 5 * time.Second,
			Spinner:   "dot",
			Animate:   true,
		},
		Log: LogConfig{
			Level:      "warn",
			Encoding:   "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Observer: ObserverConfig{
			RateLimit:      60,
			RateWindow:     time.Minute,
			AllowedOrigins: []string{},
		},
		Tracing: TracingConfig{
			Endpoint: "localhost:4318",
		},
	}
}

// SetDefaults registers default values with v. Every key is registered so
// that environment overrides apply to it.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("personas.a.name", "")
	v.SetDefault("personas.a.instructions", "")
	v.SetDefault("personas.b.name", "")
	v.SetDefault("personas.b.instructions", "")

	v.SetDefault("delays.first", defaults.Delays.First)
	v.SetDefault("delays.subsequent", defaults.Delays.Subsequent)

	v.SetDefault("llm.provider", defaults.LLM.Provider)
	v.SetDefault("llm.model", defaults.LLM.Model)
	v.SetDefault("llm.api_key", defaults.LLM.APIKey)
	v.SetDefault("llm.base_url", defaults.LLM.BaseURL)
	v.SetDefault("llm.max_tokens", defaults.LLM.MaxTokens)
	v.SetDefault("llm.temperature", defaults.LLM.Temperature)

	v.SetDefault("retry.max_attempts", defaults.Retry.MaxAttempts)

	v.SetDefault("transcript.dir", defaults.Transcript.Dir)
	v.SetDefault("transcript.file", defaults.Transcript.File)
	v.SetDefault("transcript.max_bytes", defaults.Transcript.MaxBytes)
	v.SetDefault("transcript.max_backups", defaults.Transcript.MaxBackups)

	v.SetDefault("render.char_delay", defaults.Render.CharDelay)
	v.SetDefault("render.max_reveal", defaults.Render.MaxReveal)
	v.SetDefault("render.spinner", defaults.Render.Spinner)
	v.SetDefault("render.animate", defaults.Render.Animate)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.encoding", defaults.Log.Encoding)
	v.SetDefault("log.file", defaults.Log.File)
	v.SetDefault("log.max_size_mb", defaults.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", defaults.Log.MaxBackups)

	v.SetDefault("observer.addr", defaults.Observer.Addr)
	v.SetDefault("observer.jwt_secret", defaults.Observer.JWTSecret)
	v.SetDefault("observer.rate_limit", defaults.Observer.RateLimit)
	v.SetDefault("observer.rate_window", defaults.Observer.RateWindow)
	v.SetDefault("observer.allowed_origins", defaults.Observer.AllowedOrigins)

	v.SetDefault("nats.url", defaults.NATS.URL)
	v.SetDefault("nats.token", defaults.NATS.Token)
	v.SetDefault("nats.ca_file", defaults.NATS.CAFile)
	v.SetDefault("nats.cert_file", defaults.NATS.CertFile)
	v.SetDefault("nats.key_file", defaults.NATS.KeyFile)

	v.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", defaults.Tracing.Endpoint)

	v.SetDefault("seed", defaults.Seed)
	v.SetDefault("max_turns", defaults.MaxTurns)
}

// NewViper returns a viper instance with defaults and DIALOGUE_* environment
// overrides registered.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadConfigFile reads path into v. With an empty path it looks for
// dialogue.yaml in the working directory and the user config directory; a
// missing file is not an error in that case.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		return nil
	}

	v.SetConfigName("dialogue")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(ConfigDir())

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from v, applies provider API key fallbacks
// and validates it. Validation problems are returned as a *ConfigurationError.
func Load(v *viper.Viper) (*Config, error) {
	cfg, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode reads the configuration from v without validating it, for commands
// that only need part of it.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = providerAPIKey(llm.Provider(cfg.LLM.Provider))
	}
	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dialogue")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".dialogue"
	}
	return filepath.Join(home, ".config", "dialogue")
}

// Registry builds the persona registry.
func (c *Config) Registry() (*model.Registry, error) {
	return model.NewRegistry(c.Personas.A, c.Personas.B)
}

// DelayPolicy returns the thinking delay policy.
func (c *Config) DelayPolicy() model.DelayPolicy {
	return model.DelayPolicy{First: c.Delays.First, Subsequent: c.Delays.Subsequent}
}

// TranscriptStore returns the transcript store configuration.
func (c *Config) TranscriptStore() transcript.Config {
	return transcript.Config{
		Dir:      c.Transcript.Dir,
		FileName: c.Transcript.File,
		Rotation: transcript.RotationConfig{
			MaxBytes:   c.Transcript.MaxBytes,
			MaxBackups: c.Transcript.MaxBackups,
		},
	}
}

// Renderer returns the terminal renderer configuration.
func (c *Config) Renderer() render.Config {
	return render.Config{
		CharDelay: c.Render.CharDelay,
		MaxReveal: c.Render.MaxReveal,
		Spinner:   c.Render.Spinner,
		Animate:   c.Render.Animate,
	}
}

// Logger returns the logger options.
func (c *Config) Logger() logger.Options {
	return logger.Options{
		Level:      c.Log.Level,
		Encoding:   c.Log.Encoding,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}
}

// Gateway returns the per-request completion settings.
func (c *Config) Gateway() llm.GatewayConfig {
	return llm.GatewayConfig{
		Model:       c.LLM.Model,
		MaxTokens:   c.LLM.MaxTokens,
		Temperature: c.LLM.Temperature,
	}
}

func providerAPIKey(provider llm.Provider) string {
	switch provider {
	case llm.ProviderOpenAI:
		return getEnv("OPENAI_API_KEY", "")
	case llm.ProviderAnthropic:
		return getEnv("ANTHROPIC_API_KEY", "")
	}
	return ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
