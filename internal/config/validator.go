package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"go.uber.org/multierr"

	"github.com/capitalize-ai/persona-dialogue/internal/llm"
	"github.com/capitalize-ai/persona-dialogue/internal/model"
)

// ConfigurationError reports every problem found before the conversation
// starts.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	errs := e.Errors()
	if len(errs) == 1 {
		return "invalid configuration: " + errs[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "invalid configuration: %d problems:", len(errs))
	for i, err := range errs {
		fmt.Fprintf(&sb, "\n  %d. %s", i+1, err)
	}
	return sb.String()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Errors returns the individual problems.
func (e *ConfigurationError) Errors() []error {
	return multierr.Errors(e.Err)
}

// ValidLogLevels returns the list of valid log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidProviders returns the supported completion providers.
func ValidProviders() []string {
	return []string{string(llm.ProviderOpenAI), string(llm.ProviderAnthropic)}
}

// Validate checks the Config and returns a *ConfigurationError listing all
// problems, or nil.
func (c *Config) Validate() error {
	var err error

	err = multierr.Append(err, c.validatePersonas())
	err = multierr.Append(err, c.validateLLM())
	err = multierr.Append(err, c.validateTranscript())
	err = multierr.Append(err, c.validateRuntime())
	err = multierr.Append(err, c.validateObserver())

	if err != nil {
		return &ConfigurationError{Err: err}
	}
	return nil
}

func (c *Config) validatePersonas() error {
	var err error
	for _, p := range []struct {
		key     string
		persona model.Persona
	}{
		{"personas.a", c.Personas.A},
		{"personas.b", c.Personas.B},
	} {
		if strings.TrimSpace(p.persona.Name) == "" {
			err = multierr.Append(err, fmt.Errorf("%s.name is required", p.key))
		}
		if strings.TrimSpace(p.persona.Instructions) == "" {
			err = multierr.Append(err, fmt.Errorf("%s.instructions is required", p.key))
		}
	}
	if err != nil {
		return err
	}

	if _, rerr := c.Registry(); rerr != nil {
		return fmt.Errorf("personas: %w", rerr)
	}
	return nil
}

func (c *Config) validateLLM() error {
	var err error
	if !slices.Contains(ValidProviders(), c.LLM.Provider) {
		err = multierr.Append(err, fmt.Errorf("llm.provider must be one of %v (got: %q)", ValidProviders(), c.LLM.Provider))
	}
	if c.LLM.APIKey == "" {
		err = multierr.Append(err, fmt.Errorf("llm.api_key is required (or set the provider's API key variable)"))
	}
	if c.LLM.BaseURL != "" {
		if u, perr := url.Parse(c.LLM.BaseURL); perr != nil || u.Scheme == "" || u.Host == "" {
			err = multierr.Append(err, fmt.Errorf("llm.base_url must be an absolute URL (got: %q)", c.LLM.BaseURL))
		}
	}
	if c.LLM.MaxTokens < 0 {
		err = multierr.Append(err, fmt.Errorf("llm.max_tokens must be >= 0 (got: %d)", c.LLM.MaxTokens))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		err = multierr.Append(err, fmt.Errorf("llm.temperature must be between 0 and 2 (got: %g)", c.LLM.Temperature))
	}
	if c.Retry.MaxAttempts < 1 {
		err = multierr.Append(err, fmt.Errorf("retry.max_attempts must be >= 1 (got: %d)", c.Retry.MaxAttempts))
	}
	return err
}

func (c *Config) validateTranscript() error {
	var err error
	if strings.TrimSpace(c.Transcript.Dir) == "" {
		err = multierr.Append(err, fmt.Errorf("transcript.dir is required"))
	}
	if strings.ContainsAny(c.Transcript.File, `/\`) {
		err = multierr.Append(err, fmt.Errorf("transcript.file must be a file name, not a path (got: %q)", c.Transcript.File))
	}
	if c.Transcript.MaxBytes < 0 {
		err = multierr.Append(err, fmt.Errorf("transcript.max_bytes must be >= 0 (got: %d)", c.Transcript.MaxBytes))
	}
	if c.Transcript.MaxBackups < 0 {
		err = multierr.Append(err, fmt.Errorf("transcript.max_backups must be >= 0 (got: %d)", c.Transcript.MaxBackups))
	}
	return err
}

func (c *Config) validateRuntime() error {
	var err error
	if perr := c.DelayPolicy().Validate(); perr != nil {
		err = multierr.Append(err, fmt.Errorf("delays: %w", perr))
	}
	if c.MaxTurns < 0 {
		err = multierr.Append(err, fmt.Errorf("max_turns must be >= 0 (got: %d)", c.MaxTurns))
	}
	if c.Render.CharDelay < 0 {
		err = multierr.Append(err, fmt.Errorf("render.char_delay must be >= 0 (got: %s)", c.Render.CharDelay))
	}
	if c.Render.MaxReveal < 0 || (c.Render.CharDelay > 0 && c.Render.MaxReveal == 0) {
		err = multierr.Append(err, fmt.Errorf("render.max_reveal must be > 0 when render.char_delay is set (got: %s)", c.Render.MaxReveal))
	}
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Log.Level)) {
		err = multierr.Append(err, fmt.Errorf("log.level must be one of %v (got: %q)", ValidLogLevels(), c.Log.Level))
	}
	if c.Log.File != "" && c.Log.MaxSizeMB <= 0 {
		err = multierr.Append(err, fmt.Errorf("log.max_size_mb must be > 0 (got: %d)", c.Log.MaxSizeMB))
	}
	return err
}

func (c *Config) validateObserver() error {
	var err error
	if c.Observer.RateLimit < 0 {
		err = multierr.Append(err, fmt.Errorf("observer.rate_limit must be >= 0 (got: %d)", c.Observer.RateLimit))
	}
	if c.Observer.RateLimit > 0 && c.Observer.RateWindow <= 0 {
		err = multierr.Append(err, fmt.Errorf("observer.rate_window must be > 0 when rate limiting"))
	}

	tls := []string{c.NATS.CAFile, c.NATS.CertFile, c.NATS.KeyFile}
	set := 0
	for _, f := range tls {
		if f != "" {
			set++
		}
	}
	if set != 0 && set != len(tls) {
		err = multierr.Append(err, fmt.Errorf("nats.ca_file, nats.cert_file and nats.key_file must be set together"))
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		err = multierr.Append(err, fmt.Errorf("tracing.endpoint is required when tracing is enabled"))
	}
	return err
}
