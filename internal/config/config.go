package config

// Config represents the complete typefind configuration.
// It can be loaded from .typefind.yml with .env and environment variable overrides.
// Every component receives the values it needs from one Config; there is no
// process-wide instance.
type Config struct {
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Filter  FilterConfig  `yaml:"filter" mapstructure:"filter"`
	Index   IndexConfig   `yaml:"index" mapstructure:"index"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// StorageConfig defines where the graph is written and how the store is owned.
type StorageConfig struct {
	Path              string `yaml:"path" mapstructure:"path"`                             // SQLite file, or ":memory:"
	Remove            bool   `yaml:"remove" mapstructure:"remove"`                         // delete the file before opening
	SingleTransaction bool   `yaml:"single_transaction" mapstructure:"single_transaction"` // one transaction per run
	Lock              bool   `yaml:"lock" mapstructure:"lock"`                             // exclusive <path>.lock
}

// FilterConfig decides which files contribute declarations.
type FilterConfig struct {
	AcceptPrefixes    []string `yaml:"accept_prefixes" mapstructure:"accept_prefixes"`
	AcceptGlobs       []string `yaml:"accept_globs" mapstructure:"accept_globs"`
	Ignore            []string `yaml:"ignore" mapstructure:"ignore"`                           // glob patterns that always reject
	AcceptMissingPath bool     `yaml:"accept_missing_path" mapstructure:"accept_missing_path"` // policy for declarations without a file
	Script            string   `yaml:"script" mapstructure:"script"`                           // Python file defining accept(path)
}

// IndexConfig tunes the builder.
type IndexConfig struct {
	MaxTemplateDepth  int `yaml:"max_template_depth" mapstructure:"max_template_depth"`
	ResolverCacheSize int `yaml:"resolver_cache_size" mapstructure:"resolver_cache_size"` // 0 disables the cache
	Workers           int `yaml:"workers" mapstructure:"workers"`                         // front-end parse concurrency
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// MetricsConfig configures the metrics export.
type MetricsConfig struct {
	File string `yaml:"file" mapstructure:"file"` // Prometheus textfile written after a run
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:              "typefind.db",
			SingleTransaction: true,
			Lock:              true,
		},
		Filter: FilterConfig{
			AcceptPrefixes: []string{},
			AcceptGlobs:    []string{},
			Ignore:         []string{},
		},
		Index: IndexConfig{
			MaxTemplateDepth:  32,
			ResolverCacheSize: 100000,
			Workers:           4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
