package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file, .env and environment variables.
	// Priority: defaults → config file → environment → flags (flags win)
	Load() (*Config, error)
}

type loader struct {
	rootDir    string
	configFile string
	flags      *pflag.FlagSet
	bindings   map[string]string
}

// Option configures a loader.
type Option func(*loader)

// WithConfigFile reads path instead of searching for .typefind.yml.
func WithConfigFile(path string) Option {
	return func(l *loader) { l.configFile = path }
}

// WithFlags binds command-line flags to config keys. bindings maps a key
// such as "storage.path" to a flag name such as "db". Only flags that were
// set on the command line override other sources.
func WithFlags(flags *pflag.FlagSet, bindings map[string]string) Option {
	return func(l *loader) {
		l.flags = flags
		l.bindings = bindings
	}
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string, opts ...Option) Loader {
	l := &loader{rootDir: rootDir}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Command-line flags
// 2. Environment variables (TYPEFIND_*), including those from .env
// 3. Config file (--config, or .typefind.yml / .typefind.yaml)
// 4. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
	} else {
		v.SetConfigName(".typefind")
		v.SetConfigType("yaml")
		v.AddConfigPath(l.rootDir)
	}

	// .env never overrides variables that are already set.
	if err := godotenv.Load(filepath.Join(l.rootDir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// Replace . with _ in env var names (e.g., TYPEFIND_STORAGE_PATH)
	v.SetEnvPrefix("TYPEFIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	setDefaults(v)

	for key, name := range l.bindings {
		flag := l.flags.Lookup(name)
		if flag == nil {
			return nil, fmt.Errorf("unknown flag %q for %s", name, key)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || l.configFile != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// keys lists every config key, for environment binding.
func keys() []string {
	return []string{
		"storage.path",
		"storage.remove",
		"storage.single_transaction",
		"storage.lock",
		"filter.accept_prefixes",
		"filter.accept_globs",
		"filter.ignore",
		"filter.accept_missing_path",
		"filter.script",
		"index.max_template_depth",
		"index.resolver_cache_size",
		"index.workers",
		"log.level",
		"log.format",
		"metrics.file",
	}
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("storage.path", defaults.Storage.Path)
	v.SetDefault("storage.remove", defaults.Storage.Remove)
	v.SetDefault("storage.single_transaction", defaults.Storage.SingleTransaction)
	v.SetDefault("storage.lock", defaults.Storage.Lock)

	v.SetDefault("filter.accept_prefixes", defaults.Filter.AcceptPrefixes)
	v.SetDefault("filter.accept_globs", defaults.Filter.AcceptGlobs)
	v.SetDefault("filter.ignore", defaults.Filter.Ignore)
	v.SetDefault("filter.accept_missing_path", defaults.Filter.AcceptMissingPath)
	v.SetDefault("filter.script", defaults.Filter.Script)

	v.SetDefault("index.max_template_depth", defaults.Index.MaxTemplateDepth)
	v.SetDefault("index.resolver_cache_size", defaults.Index.ResolverCacheSize)
	v.SetDefault("index.workers", defaults.Index.Workers)

	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)

	v.SetDefault("metrics.file", defaults.Metrics.File)
}

// LoadConfig is a convenience function that creates a loader and loads config.
// It uses the current working directory as the root.
func LoadConfig(opts ...Option) (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return NewLoader(wd, opts...).Load()
}
