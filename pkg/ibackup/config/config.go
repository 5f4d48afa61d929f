package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. IBACKUP_BACKUP_DIR.
const EnvPrefix = "IBACKUP"

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size" yaml:"max_size"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	Daily      bool   `mapstructure:"daily" yaml:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level      string            `mapstructure:"level" yaml:"level"`
	Path       string            `mapstructure:"path" yaml:"path"`
	Rotation   RotationConfig    `mapstructure:"rotation" yaml:"rotation"`
	Components map[string]string `mapstructure:"components" yaml:"components"`
}

// DeviceConfig controls which backup root subdirectories count as devices.
type DeviceConfig struct {
	// UDIDLengths restricts device directory names to these lengths.
	// Empty accepts every subdirectory.
	UDIDLengths []int `mapstructure:"udid_lengths" yaml:"udid_lengths"`
}

// QueryConfig holds catalog query defaults.
type QueryConfig struct {
	Flag     int  `mapstructure:"flag" yaml:"flag"`
	RealPath bool `mapstructure:"real_path" yaml:"real_path"`
	Info     bool `mapstructure:"info" yaml:"info"`
}

// CacheConfig configures the catalog query cache.
type CacheConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// Config represents the application configuration.
type Config struct {
	BackupDir string        `mapstructure:"backup_dir" yaml:"backup_dir"`
	UDID      string        `mapstructure:"udid" yaml:"udid"`
	Output    string        `mapstructure:"output" yaml:"output"`
	Device    DeviceConfig  `mapstructure:"device" yaml:"device"`
	Query     QueryConfig   `mapstructure:"query" yaml:"query"`
	Cache     CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Logging   LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// Setup prepares v: config search paths (or the explicit file), IBACKUP_
// environment binding and defaults. It then reads the config file; a
// missing file is only an error when it was named explicitly.
func Setup(v *viper.Viper, file string) error {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "ibackup"))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "ibackup"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backup_dir", "") // Empty means the platform default
	v.SetDefault("udid", "")       // Empty means the most recent backup
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("device.udid_lengths", []int{})

	v.SetDefault("query.flag", DefaultFlag)
	v.SetDefault("query.real_path", true)
	v.SetDefault("query.info", false)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.path", DefaultCachePath())

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_age", DefaultLogMaxAge)
	v.SetDefault("logging.rotation.max_backups", DefaultLogMaxBackups)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", DefaultComponentLevels)
}

// Decode unmarshals v into a Config and expands ~ in path settings.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.BackupDir, &cfg.Cache.Path, &cfg.Logging.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}

	return &cfg, nil
}

// Load loads configuration from file and environment variables.
// Config file locations (in order of precedence):
//   - file, when non-empty
//   - $XDG_CONFIG_HOME/ibackup/config.yaml
//   - $HOME/.config/ibackup/config.yaml
//
// Environment variables are prefixed with IBACKUP_ (e.g., IBACKUP_BACKUP_DIR).
func Load(file string) (*Config, error) {
	v := viper.New()
	if err := Setup(v, file); err != nil {
		return nil, err
	}
	return Decode(v)
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "ibackup"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "ibackup"), nil
}

// ConfigPath returns the path of the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# ibackup configuration

# MobileSync backup root (empty means the platform default)
backup_dir: ""

# Device to open (empty means the most recent backup)
udid: ""

# Default output format: pretty, plain, json, jsonl, yaml, csv, markdown, paths
output: %s

device:
  # Only treat directories with these name lengths as devices.
  # Empty accepts every subdirectory, e.g. [25, 40] for UDIDs.
  udid_lengths: []

# Catalog query defaults
query:
  # 1 = files, 2 = directories, 4 = symlinks
  flag: %d
  # Resolve on-disk content paths
  real_path: true
  # Decode metadata blobs
  info: false

# Catalog query cache
cache:
  enabled: true
  path: %s

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: %s
  # Log file path (empty means use default: $XDG_STATE_HOME/ibackup/ibackup.log)
  path: ""
  rotation:
    max_size: %s
    max_age: %d       # days
    max_backups: %d
    daily: true
  # Per-component log levels
  components:
    locator: info
    device: info
    catalog: info
    cache: warn
    watcher: warn
`, DefaultOutput, DefaultFlag, DefaultCachePath(), DefaultLogLevel,
		DefaultLogMaxSize, DefaultLogMaxAge, DefaultLogMaxBackups)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// StateDir returns $XDG_STATE_HOME/ibackup/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "ibackup")
}

// CacheDir returns $XDG_CACHE_HOME/ibackup/.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, "ibackup")
}

// DefaultCachePath returns the default query cache directory.
func DefaultCachePath() string {
	return filepath.Join(CacheDir(), "catalog")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "ibackup.log")
}
