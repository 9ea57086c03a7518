package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/sidenote/internal/errors"
)

// ValidationContext specifies what configuration is required
type ValidationContext string

const (
	// ValidationContextStore - commands that open the comment store
	ValidationContextStore ValidationContext = "store"
	// ValidationContextWatch - watch mode also needs sane timings
	ValidationContextWatch ValidationContext = "watch"
	// ValidationContextAll - validate all configuration
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult holds validation results
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning adds a warning to the validation result
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any errors
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error returns a formatted error message
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}

	if len(vr.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  ! %s\n", warn))
		}
	}

	return sb.String()
}

// Validate validates configuration for the given context
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextStore:
		c.validateStorage(result)
		c.validateSource(result)
	case ValidationContextWatch:
		c.validateStorage(result)
		c.validateSource(result)
		c.validateWatch(result)
	case ValidationContextAll:
		c.validateStorage(result)
		c.validateSource(result)
		c.validateLog(result)
		c.validateWatch(result)
	}

	return result
}

// Require validates for ctx and returns a config error if anything is wrong.
// Warnings are logged.
func (c *Config) Require(ctx ValidationContext, logger logrus.FieldLogger) error {
	result := c.Validate(ctx)
	if logger != nil {
		for _, warn := range result.Warnings {
			logger.Warn(warn)
		}
	}
	if result.HasErrors() {
		return errors.ConfigErrorf("%s", result.Error())
	}
	return nil
}

func (c *Config) validateStorage(result *ValidationResult) {
	switch c.Storage.Type {
	case "sqlite", "bolt":
		if c.Storage.LocalPath == "" {
			result.AddError("LOCAL_DB_PATH is required for %s storage", c.Storage.Type)
		}
	case "postgres":
		c.validatePostgres(result)
	case "":
		result.AddError("STORAGE_TYPE is not set")
	default:
		result.AddError("STORAGE_TYPE must be sqlite, bolt or postgres, got %q", c.Storage.Type)
	}
}

// ValidatePostgresDSN checks a DSN on its own, before it is stored.
func ValidatePostgresDSN(dsn string) *ValidationResult {
	c := &Config{Storage: StorageConfig{Type: "postgres", PostgresDSN: dsn}}
	result := &ValidationResult{Valid: true}
	c.validatePostgres(result)
	return result
}

func (c *Config) validatePostgres(result *ValidationResult) {
	dsn := c.Storage.PostgresDSN
	if dsn == "" {
		result.AddError("POSTGRES_DSN is required for postgres storage")
		return
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		result.AddError("POSTGRES_DSN must start with postgres:// or postgresql://")
		return
	}
	if _, err := url.Parse(dsn); err != nil {
		result.AddError("POSTGRES_DSN is invalid: %v", err)
		return
	}
	if strings.Contains(dsn, "sslmode=disable") && !strings.Contains(dsn, "@localhost") {
		result.AddWarning("PostgreSQL DSN has sslmode=disable for a remote host")
	}
	if _, hasPassword := StripPassword(dsn); hasPassword && c.DSNSource() == DSNSourceConfig {
		result.AddWarning("PostgreSQL password is stored in plaintext in the config file (run 'sidenote config dsn')")
	}
}

func (c *Config) validateSource(result *ValidationResult) {
	if c.Source.Root == "" {
		result.AddError("source root is not set")
	} else if info, err := os.Stat(c.Source.Root); err != nil {
		result.AddError("source root %s: %v", c.Source.Root, err)
	} else if !info.IsDir() {
		result.AddError("source root %s is not a directory", c.Source.Root)
	}

	switch c.Source.DefaultSeparator {
	case "", "\n", "\r\n", "\r":
	default:
		result.AddError("default_separator must be \\n, \\r\\n or \\r, got %q", c.Source.DefaultSeparator)
	}
	if c.Source.DefaultSeparator == "" {
		result.AddWarning("default_separator is empty, files without line breaks cannot be annotated")
	}

	if c.Source.MaxFileBytes < 0 {
		result.AddError("max_file_bytes must not be negative")
	}
}

func (c *Config) validateLog(result *ValidationResult) {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		result.AddWarning("log level %q is invalid, will use info", c.Log.Level)
	}
}

func (c *Config) validateWatch(result *ValidationResult) {
	if c.Watch.Debounce <= 0 {
		result.AddError("watch.debounce must be positive")
	}
	if c.Watch.RetryInterval <= 0 {
		result.AddError("watch.retry_interval must be positive")
	}
}
