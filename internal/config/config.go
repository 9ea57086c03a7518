package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DirName is the per-project directory holding config and the local store.
const DirName = ".sidenote"

// Config holds all configuration settings
type Config struct {
	// Storage configuration
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Source (annotated files) configuration
	Source SourceConfig `mapstructure:"source" yaml:"source"`

	// Logging configuration
	Log LogConfig `mapstructure:"log" yaml:"log"`

	// Watch mode settings
	Watch WatchConfig `mapstructure:"watch" yaml:"watch"`

	dsnSource string
}

// DSNSource reports where Storage.PostgresDSN was read from.
func (c *Config) DSNSource() string {
	if c.dsnSource == "" {
		return DSNSourceNone
	}
	return c.dsnSource
}

type StorageConfig struct {
	Type        string `mapstructure:"type" yaml:"type"` // "sqlite", "postgres", "bolt"
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	LocalPath   string `mapstructure:"local_path" yaml:"local_path"`
}

type SourceConfig struct {
	Root             string `mapstructure:"root" yaml:"root"`
	DefaultSeparator string `mapstructure:"default_separator" yaml:"default_separator"` // used for files without line terminators
	MaxFileBytes     int64  `mapstructure:"max_file_bytes" yaml:"max_file_bytes"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // debug, info, warn, error
	File  string `mapstructure:"file" yaml:"file"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

type WatchConfig struct {
	Debounce      time.Duration `mapstructure:"debounce" yaml:"debounce"`
	RetryInterval time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(DirName, "comments.db"),
		},
		Source: SourceConfig{
			Root:             ".",
			DefaultSeparator: "\n",
			MaxFileBytes:     10 * 1024 * 1024, // 10MB
		},
		Log: LogConfig{
			Level: "info",
		},
		Watch: WatchConfig{
			Debounce:      300 * time.Millisecond,
			RetryInterval: 2 * time.Second,
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	// Load .env files first (in order of precedence)
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	// Set defaults
	cfg := Default()
	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.local_path", cfg.Storage.LocalPath)
	v.SetDefault("source.root", cfg.Source.Root)
	v.SetDefault("source.default_separator", cfg.Source.DefaultSeparator)
	v.SetDefault("source.max_file_bytes", cfg.Source.MaxFileBytes)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("watch.debounce", cfg.Watch.Debounce)
	v.SetDefault("watch.retry_interval", cfg.Watch.RetryInterval)

	// Load from environment variables
	v.SetEnvPrefix("SIDENOTE")
	v.AutomaticEnv()

	// Try to find config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath(DirName)
		v.AddConfigPath(".")
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, DirName))
		}
	}

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	// Unmarshal into struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Storage.PostgresDSN != "" {
		cfg.dsnSource = DSNSourceConfig
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)
	resolveDSN(cfg, NewKeyringManager(nil))

	cfg.Storage.LocalPath = expandPath(cfg.Storage.LocalPath)
	cfg.Source.Root = expandPath(cfg.Source.Root)
	cfg.Log.File = expandPath(cfg.Log.File)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	// godotenv.Load never overrides variables that are already set, so the
	// first file to define a key wins
	envFiles := []string{
		".env.local", // Local overrides (highest precedence)
		".env",       // Main environment file
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			_ = godotenv.Load(file)
		}
	}

	// Also try loading from home directory
	if homeDir, err := os.UserHomeDir(); err == nil {
		homeEnvFile := filepath.Join(homeDir, DirName, ".env")
		if _, err := os.Stat(homeEnvFile); err == nil {
			_ = godotenv.Load(homeEnvFile)
		}
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	// Storage configuration
	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
		cfg.dsnSource = DSNSourceEnv
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = path
	}

	// Source configuration
	if root := os.Getenv("SIDENOTE_ROOT"); root != "" {
		cfg.Source.Root = root
	}
	if size := os.Getenv("SIDENOTE_MAX_FILE_BYTES"); size != "" {
		if sizeInt, err := strconv.ParseInt(size, 10, 64); err == nil {
			cfg.Source.MaxFileBytes = sizeInt
		}
	}

	// Logging configuration
	cfg.Log.Level = GetString("SIDENOTE_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = GetString("SIDENOTE_LOG_FILE", cfg.Log.File)
	cfg.Log.JSON = GetBool("SIDENOTE_LOG_JSON", cfg.Log.JSON)

	// Watch configuration
	if ms := GetInt("SIDENOTE_WATCH_DEBOUNCE_MS", 0); ms > 0 {
		cfg.Watch.Debounce = time.Duration(ms) * time.Millisecond
	}
}

// resolveDSN prefers the keychain over the config file for postgres storage.
// The environment always wins.
func resolveDSN(cfg *Config, km *KeyringManager) {
	if cfg.Storage.Type != "postgres" || cfg.dsnSource == DSNSourceEnv {
		return
	}
	dsn, err := km.GetPostgresDSN()
	if err != nil {
		km.logger.WithError(err).Debug("Keychain lookup failed, using configured DSN")
		return
	}
	if dsn != "" {
		cfg.Storage.PostgresDSN = dsn
		cfg.dsnSource = DSNSourceKeychain
	}
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save saves configuration to file. The DSN password is never written; keep
// it in the keychain or in POSTGRES_DSN.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	dsn, _ := StripPassword(c.Storage.PostgresDSN)
	v.Set("storage", map[string]interface{}{
		"type":         c.Storage.Type,
		"postgres_dsn": dsn,
		"local_path":   c.Storage.LocalPath,
	})
	v.Set("source", map[string]interface{}{
		"root":              c.Source.Root,
		"default_separator": c.Source.DefaultSeparator,
		"max_file_bytes":    c.Source.MaxFileBytes,
	})
	v.Set("log", map[string]interface{}{
		"level": c.Log.Level,
		"file":  c.Log.File,
		"json":  c.Log.JSON,
	})
	v.Set("watch", map[string]interface{}{
		"debounce":       c.Watch.Debounce.String(),
		"retry_interval": c.Watch.RetryInterval.String(),
	})

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config file
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
