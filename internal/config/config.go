// Package config loads stringtran settings from defaults, an optional YAML
// file, STRINGTRAN_* environment variables and bound command flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/stringtran/internal/batcher"
	"github.com/valpere/stringtran/internal/orchestrator"
	"github.com/valpere/stringtran/internal/retry"
	"github.com/valpere/stringtran/internal/translator"
)

const (
	EnvPrefix = "STRINGTRAN"
	FileName  = ".stringtran"
)

// ProviderNames lists the services the translate command can build.
var ProviderNames = []string{"google", "mymemory", "systran", "ollama", "openrouter", "lambda"}

type Config struct {
	SourceLang         string        `mapstructure:"source"`
	TargetLang         string        `mapstructure:"target"`
	MaxChars           int           `mapstructure:"max_chars"`
	MaxRetries         int           `mapstructure:"max_retries"`
	Backoff            time.Duration `mapstructure:"backoff"`
	Service            string        `mapstructure:"service"`
	APIKey             string        `mapstructure:"api_key"`
	SkipUntranslatable bool          `mapstructure:"skip_untranslatable"`
	NoProgress         bool          `mapstructure:"no_progress"`

	Journal   JournalConfig             `mapstructure:"journal"`
	Log       LogConfig                 `mapstructure:"log"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
}

type JournalConfig struct {
	Path     string `mapstructure:"path"`
	Disabled bool   `mapstructure:"disabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ProviderConfig is the per-service section of the file.
type ProviderConfig struct {
	translator.ServiceConfig `mapstructure:",squash"`

	Models []string `mapstructure:"models"`
	Email  string   `mapstructure:"email"`
}

// SetDefaults registers every known key so that environment variables can
// reach nested settings.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source", "en")
	v.SetDefault("target", "es")
	v.SetDefault("max_chars", batcher.DefaultMaxChars)
	v.SetDefault("max_retries", retry.DefaultMaxRetries)
	v.SetDefault("backoff", retry.DefaultBaseBackoff)
	v.SetDefault("service", "google")
	v.SetDefault("api_key", "")
	v.SetDefault("skip_untranslatable", false)
	v.SetDefault("no_progress", false)

	v.SetDefault("journal.path", "./data/stringtran.db")
	v.SetDefault("journal.disabled", false)

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")

	for _, name := range ProviderNames {
		prefix := "providers." + name + "."
		for _, key := range []string{"credentials", "api_key", "model", "base_url", "project_id", "function_name", "region", "email"} {
			v.SetDefault(prefix+key, "")
		}
		v.SetDefault(prefix+"timeout", time.Duration(0))
		v.SetDefault(prefix+"models", []string{})
	}
}

// Load reads configuration into v and returns the decoded result. An empty
// path looks for .stringtran.yaml in the working directory and then in the
// home directory; a missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the pipeline settings.
func (c *Config) Validate() error {
	switch {
	case c.MaxChars <= 0:
		return fmt.Errorf("max_chars must be positive, got %d", c.MaxChars)
	case c.MaxRetries < 0:
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	case c.MaxRetries > retry.MaxRetriesLimit:
		return fmt.Errorf("max_retries must not exceed %d, got %d", retry.MaxRetriesLimit, c.MaxRetries)
	case c.Backoff < 0:
		return fmt.Errorf("backoff must not be negative, got %s", c.Backoff)
	case strings.TrimSpace(c.TargetLang) == "":
		return fmt.Errorf("target language is required")
	case strings.EqualFold(c.SourceLang, c.TargetLang):
		return fmt.Errorf("source and target languages are the same: %s", c.TargetLang)
	}
	return nil
}

// Pipeline returns the orchestrator settings.
func (c *Config) Pipeline() orchestrator.Config {
	return orchestrator.Config{
		SourceLang: c.SourceLang,
		TargetLang: c.TargetLang,
		MaxChars:   c.MaxChars,
		MaxRetries: c.MaxRetries,
		Backoff:    c.Backoff,
		Separator:  batcher.DefaultSeparator,
	}
}

// Provider returns the settings for the named service; unknown names yield
// the zero value. The top-level api_key fills in a provider without one.
func (c *Config) Provider(name string) ProviderConfig {
	p := c.Providers[name]
	if p.APIKey == "" {
		p.APIKey = c.APIKey
	}
	return p
}
