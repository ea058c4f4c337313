// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Squirrel Contributors

package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	sqerr "github.com/squirrel-notes/squirrel/pkg/errors"
	"github.com/squirrel-notes/squirrel/pkg/types"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SQUIRREL_AI_PROVIDER.
const EnvPrefix = "SQUIRREL"

// Config is the top-level Squirrel configuration.
type Config struct {
	Storage   StorageConfig             `mapstructure:"storage" yaml:"storage"`
	AI        AIConfig                  `mapstructure:"ai" yaml:"ai"`
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers,omitempty"`
	QA        QAConfig                  `mapstructure:"qa" yaml:"qa"`
	Server    ServerConfig              `mapstructure:"server" yaml:"server"`
}

// StorageConfig selects the note repository backend.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend" yaml:"backend"`
	DataDir  string         `mapstructure:"data_dir" yaml:"data_dir"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// PostgresConfig configures the remote backend.
type PostgresConfig struct {
	DSN          string `mapstructure:"dsn" yaml:"dsn,omitempty"`
	MaxOpenConns int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
}

// AIConfig selects the AI capability provider.
type AIConfig struct {
	Provider           string `mapstructure:"provider" yaml:"provider"`
	EmbeddingCacheSize int    `mapstructure:"embedding_cache_size" yaml:"embedding_cache_size"`
}

// ProviderConfig holds credentials and model overrides for one provider.
// APIKey may be a keyring:// reference.
type ProviderConfig struct {
	APIKey         string `mapstructure:"api_key" yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Model          string `mapstructure:"model" yaml:"model,omitempty" json:"model,omitempty"`
	EmbeddingModel string `mapstructure:"embedding_model" yaml:"embedding_model,omitempty" json:"embedding_model,omitempty"`
}

// QAConfig bounds retrieval for question answering.
type QAConfig struct {
	TopK            int `mapstructure:"top_k" yaml:"top_k" json:"top_k"`
	TopicLimit      int `mapstructure:"topic_limit" yaml:"topic_limit" json:"topic_limit"`
	MaxContextChars int `mapstructure:"max_context_chars" yaml:"max_context_chars" json:"max_context_chars"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Listen      string   `mapstructure:"listen" yaml:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins,omitempty"`
	// APIToken, when set, is required as a bearer token on /api routes.
	// It may be a keyring:// reference.
	APIToken       string  `mapstructure:"api_token" yaml:"api_token,omitempty"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
}

// DefaultDataDir returns ~/.local/share/squirrel, or a relative directory
// when the home directory cannot be resolved.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".squirrel")
	}
	return filepath.Join(home, ".local", "share", "squirrel")
}

// SetDefaults registers the default value of every known key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.backend", string(types.StorageSQLite))
	v.SetDefault("storage.data_dir", DefaultDataDir())
	v.SetDefault("storage.postgres.dsn", "")
	v.SetDefault("storage.postgres.max_open_conns", 10)
	v.SetDefault("ai.provider", string(types.ProviderLocal))
	v.SetDefault("ai.embedding_cache_size", 256)
	v.SetDefault("qa.top_k", 5)
	v.SetDefault("qa.topic_limit", 10)
	v.SetDefault("qa.max_context_chars", 4000)
	v.SetDefault("server.listen", "127.0.0.1:7878")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.api_token", "")
	v.SetDefault("server.rate_limit_rps", 0.0)
	v.SetDefault("server.rate_limit_burst", 20)
}

// providerKeys are the per-provider settings exposed to the environment,
// e.g. SQUIRREL_PROVIDERS_OPENAI_API_KEY.
var providerKeys = []string{"api_key", "endpoint", "model", "embedding_model"}

// SetupEnv enables SQUIRREL_ environment overrides on v.
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map entries are unknown to AutomaticEnv until bound.
	for _, p := range []types.AIProvider{
		types.ProviderLocal, types.ProviderOpenAI, types.ProviderGoogle,
		types.ProviderAnthropic, types.ProviderOpenRouter,
	} {
		for _, k := range providerKeys {
			_ = v.BindEnv("providers." + string(p) + "." + k)
		}
	}
}

// IsKnownKey reports whether key names a setting of Config.
func IsKnownKey(key string) bool {
	key = strings.ToLower(key)
	if parts := strings.Split(key, "."); len(parts) == 3 && parts[0] == "providers" {
		if _, err := types.ParseAIProvider(parts[1]); err != nil {
			return false
		}
		for _, k := range providerKeys {
			if parts[2] == k {
				return true
			}
		}
		return false
	}

	v := viper.New()
	SetDefaults(v)
	for _, k := range v.AllKeys() {
		if k == key {
			return true
		}
	}
	return false
}

// Load reads configuration from the given path (or defaults) with
// environment variable overrides (prefix SQUIRREL_).
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	SetupEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, sqerr.Wrapf(err, sqerr.CodeConfigLoadReadFailure, "reading config %s", path)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, sqerr.Wrap(err, sqerr.CodeConfigParseInvalidFormat, "unmarshalling config")
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, sqerr.Wrap(errors.Join(errs...), sqerr.CodeConfigValidateInvalidValue, "validating config")
	}
	return &cfg, nil
}

// Validate checks the configuration for logical errors, collecting every
// issue rather than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateStorage()...)
	errs = append(errs, c.validateAI()...)
	errs = append(errs, c.validateQA()...)
	errs = append(errs, c.validateServer()...)

	return errs
}

func (c *Config) validateStorage() []error {
	var errs []error

	if _, err := types.ParseStorageBackend(c.Storage.Backend); err != nil {
		errs = append(errs, sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue,
			"config: storage.backend must be one of [sqlite, postgres], got %q", c.Storage.Backend))
	}
	if c.Storage.Postgres.MaxOpenConns < 0 {
		errs = append(errs, sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue,
			"config: storage.postgres.max_open_conns must not be negative, got %d", c.Storage.Postgres.MaxOpenConns))
	}
	return errs
}

func (c *Config) validateAI() []error {
	var errs []error

	if _, err := types.ParseAIProvider(c.AI.Provider); err != nil {
		errs = append(errs, sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue,
			"config: ai.provider must be one of [local, openai, google, anthropic, openrouter], got %q", c.AI.Provider))
	}
	if c.AI.EmbeddingCacheSize < 0 {
		errs = append(errs, sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue,
			"config: ai.embedding_cache_size must not be negative, got %d", c.AI.EmbeddingCacheSize))
	}

	for _, name := range sortedKeys(c.Providers) {
		if _, err := types.ParseAIProvider(name); err != nil {
			errs = append(errs, sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue,
				"config: providers.%s is not a known provider", name))
		}
	}
	return errs
}

func (c *Config) validateQA() []error {
	var errs []error

	positive := []struct {
		key   string
		value int
	}{
		{"qa.top_k", c.QA.TopK},
		{"qa.topic_limit", c.QA.TopicLimit},
		{"qa.max_context_chars", c.QA.MaxContextChars},
	}
	for _, p := range positive {
		if p.value < 1 {
			errs = append(errs, sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue,
				"config: %s must be at least 1, got %d", p.key, p.value))
		}
	}
	return errs
}

func (c *Config) validateServer() []error {
	var errs []error

	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue,
			"config: server.rate_limit_rps must not be negative, got %g", c.Server.RateLimitRPS))
	}
	if c.Server.RateLimitRPS > 0 && c.Server.RateLimitBurst < 1 {
		errs = append(errs, sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue,
			"config: server.rate_limit_burst must be at least 1 when rate limiting, got %d", c.Server.RateLimitBurst))
	}
	if err := c.validateListen(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func (c *Config) validateListen() error {
	if c.Server.Listen == "" {
		return sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue, "config: server.listen must not be empty")
	}

	// An empty host (":8080") listens on every interface.
	_, portStr, err := net.SplitHostPort(c.Server.Listen)
	if err != nil {
		return sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue,
			"config: server.listen must be a valid host:port address, got %q", c.Server.Listen)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be a number, got %q", portStr)
	}
	if port < 1 || port > 65535 {
		return sqerr.Errorf(sqerr.CodeConfigValidateInvalidValue,
			"config: server.listen port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// StorageBackend returns the parsed storage backend.
func (c *Config) StorageBackend() types.StorageBackend {
	b, err := types.ParseStorageBackend(c.Storage.Backend)
	if err != nil {
		return types.StorageSQLite
	}
	return b
}

// AIProvider returns the parsed provider name.
func (c *Config) AIProvider() types.AIProvider {
	p, err := types.ParseAIProvider(c.AI.Provider)
	if err != nil {
		return types.ProviderLocal
	}
	return p
}

// Provider returns the settings for name. Entries keyed by an alias
// ("gemini", "ollama") are honored.
func (c *Config) Provider(name types.AIProvider) ProviderConfig {
	if pc, ok := c.Providers[string(name)]; ok {
		return pc
	}
	for _, key := range sortedKeys(c.Providers) {
		if p, err := types.ParseAIProvider(key); err == nil && p == name {
			return c.Providers[key]
		}
	}
	return ProviderConfig{}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
