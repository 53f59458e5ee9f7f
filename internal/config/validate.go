package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
)

var (
	// ErrInvalidStorage indicates a missing or unusable storage setting
	ErrInvalidStorage = errors.New("invalid storage settings")

	// ErrInvalidFilter indicates a pattern that does not compile or a missing script
	ErrInvalidFilter = errors.New("invalid filter settings")

	// ErrInvalidIndex indicates a negative depth, cache size or worker count
	ErrInvalidIndex = errors.New("invalid index settings")

	// ErrInvalidLog indicates an unknown log level or format
	ErrInvalidLog = errors.New("invalid log settings")
)

// Validate checks that the configuration is valid and complete. Every
// problem is reported, not just the first.
func Validate(cfg *Config) error {
	return errors.Join(
		validateStorage(&cfg.Storage),
		validateFilter(&cfg.Filter),
		validateIndex(&cfg.Index),
		validateLog(&cfg.Log),
	)
}

func validateStorage(cfg *StorageConfig) error {
	if strings.TrimSpace(cfg.Path) == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidStorage)
	}
	return nil
}

func validateFilter(cfg *FilterConfig) error {
	var errs []error

	for _, group := range [][]string{cfg.AcceptGlobs, cfg.Ignore} {
		for _, pattern := range group {
			if _, err := glob.Compile(pattern, '/'); err != nil {
				errs = append(errs, fmt.Errorf("%w: pattern %q: %v", ErrInvalidFilter, pattern, err))
			}
		}
	}

	if cfg.Script != "" {
		if info, err := os.Stat(cfg.Script); err != nil {
			errs = append(errs, fmt.Errorf("%w: script: %v", ErrInvalidFilter, err))
		} else if info.IsDir() {
			errs = append(errs, fmt.Errorf("%w: script %s is a directory", ErrInvalidFilter, cfg.Script))
		}
	}

	return errors.Join(errs...)
}

func validateIndex(cfg *IndexConfig) error {
	var errs []error

	if cfg.MaxTemplateDepth < 0 {
		errs = append(errs, fmt.Errorf("%w: max_template_depth cannot be negative, got %d", ErrInvalidIndex, cfg.MaxTemplateDepth))
	}
	if cfg.ResolverCacheSize < 0 {
		errs = append(errs, fmt.Errorf("%w: resolver_cache_size cannot be negative, got %d", ErrInvalidIndex, cfg.ResolverCacheSize))
	}
	if cfg.Workers < 0 {
		errs = append(errs, fmt.Errorf("%w: workers cannot be negative, got %d", ErrInvalidIndex, cfg.Workers))
	}

	return errors.Join(errs...)
}

func validateLog(cfg *LogConfig) error {
	var errs []error

	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: level must be debug, info, warn or error, got '%s'", ErrInvalidLog, cfg.Level))
	}

	switch strings.ToLower(cfg.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: format must be 'text' or 'json', got '%s'", ErrInvalidLog, cfg.Format))
	}

	return errors.Join(errs...)
}
