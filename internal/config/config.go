// Package config loads the batch translator configuration from the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pricofy/batch-translator/internal/chunker"
	"github.com/pricofy/batch-translator/internal/dispatch"
	"github.com/pricofy/batch-translator/internal/domain"
)

// EnvPrefix is the prefix of every configuration environment variable.
const EnvPrefix = "TRANSLATION"

// Configuration keys.
const (
	KeyBatchSize        = "batch_size"
	KeyConcurrency      = "concurrency"
	KeySource           = "source"
	KeyTarget           = "target"
	KeyHTML             = "html"
	KeyModel            = "model"
	KeyAPIKey           = "api_key"
	KeyEnvironment      = "environment"
	KeyGlossaryEnabled  = "glossary.enabled"
	KeyGlossaryID       = "glossary.id"
	KeyGlossaryProject  = "glossary.project"
	KeyGlossaryLocation = "glossary.location"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
	KeyMetricsEnabled   = "metrics.enabled"
	KeyConfigFile       = "config_file"
)

// Glossary identifies the server-side glossary applied to translations.
type Glossary struct {
	Enabled  bool
	ID       string
	Project  string
	Location string
}

// Name returns the fully qualified glossary resource name,
// or "" when the glossary is disabled.
func (g Glossary) Name() string {
	if !g.Enabled {
		return ""
	}
	return fmt.Sprintf("projects/%s/locations/%s/glossaries/%s", g.Project, g.Location, g.ID)
}

// Config is built once per process and read-only afterwards.
type Config struct {
	BatchSize   int
	Concurrency int

	// Default languages; a request's own values take precedence.
	Source string
	Target string

	HTML   bool
	Model  string
	APIKey string

	// Environment suffixes the translator function names when set.
	Environment string
	Glossary    Glossary

	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		BatchSize:   chunker.DefaultBatchSize,
		Concurrency: dispatch.DefaultConcurrency,
		Glossary:    Glossary{Location: "us-central1"},
		LogLevel:    "info",
		LogFormat:   "json",
	}
}

// Load reads the configuration from TRANSLATION_* environment variables and,
// when TRANSLATION_CONFIG_FILE is set, from that file. It returns a
// ConfigError if the result is invalid.
func Load() (Config, error) {
	v := newViper()

	if file := v.GetString(KeyConfigFile); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	return FromViper(v)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		BatchSize:   v.GetInt(KeyBatchSize),
		Concurrency: v.GetInt(KeyConcurrency),
		Source:      v.GetString(KeySource),
		Target:      v.GetString(KeyTarget),
		HTML:        v.GetBool(KeyHTML),
		Model:       v.GetString(KeyModel),
		APIKey:      v.GetString(KeyAPIKey),
		Environment: v.GetString(KeyEnvironment),
		Glossary: Glossary{
			Enabled:  v.GetBool(KeyGlossaryEnabled),
			ID:       v.GetString(KeyGlossaryID),
			Project:  v.GetString(KeyGlossaryProject),
			Location: v.GetString(KeyGlossaryLocation),
		},
		LogLevel:       v.GetString(KeyLogLevel),
		LogFormat:      v.GetString(KeyLogFormat),
		MetricsEnabled: v.GetBool(KeyMetricsEnabled),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks limits and required identifiers.
func (c Config) Validate() error {
	if c.BatchSize < 1 {
		return domain.NewConfigError(KeyBatchSize, "must be at least 1, got %d", c.BatchSize)
	}
	if c.Concurrency < 1 {
		return domain.NewConfigError(KeyConcurrency, "must be at least 1, got %d", c.Concurrency)
	}
	if c.Glossary.Enabled {
		if c.Glossary.ID == "" {
			return domain.NewConfigError(KeyGlossaryID, "glossary id is required when the glossary is enabled")
		}
		if c.Glossary.Project == "" {
			return domain.NewConfigError(KeyGlossaryProject, "project id is required when the glossary is enabled")
		}
		if c.Glossary.Location == "" {
			return domain.NewConfigError(KeyGlossaryLocation, "location is required when the glossary is enabled")
		}
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)

	// ENVIRONMENT is shared with the rest of the stack and has no prefix.
	_ = v.BindEnv(KeyEnvironment, "ENVIRONMENT", EnvPrefix+"_ENVIRONMENT")

	def := Default()
	v.SetDefault(KeyBatchSize, def.BatchSize)
	v.SetDefault(KeyConcurrency, def.Concurrency)
	v.SetDefault(KeySource, def.Source)
	v.SetDefault(KeyTarget, def.Target)
	v.SetDefault(KeyHTML, def.HTML)
	v.SetDefault(KeyModel, def.Model)
	v.SetDefault(KeyAPIKey, def.APIKey)
	v.SetDefault(KeyEnvironment, def.Environment)
	v.SetDefault(KeyGlossaryEnabled, def.Glossary.Enabled)
	v.SetDefault(KeyGlossaryID, def.Glossary.ID)
	v.SetDefault(KeyGlossaryProject, def.Glossary.Project)
	v.SetDefault(KeyGlossaryLocation, def.Glossary.Location)
	v.SetDefault(KeyLogLevel, def.LogLevel)
	v.SetDefault(KeyLogFormat, def.LogFormat)
	v.SetDefault(KeyMetricsEnabled, def.MetricsEnabled)
	v.SetDefault(KeyConfigFile, "")
	return v
}
