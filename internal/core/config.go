// Package core contains the CNL engine: header grammar, tokenizer, cursor
// context resolution, schema suggestions, node block extraction and the
// cross-graph merge planner, plus workspace configuration.
package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/cnl-graph/pkg/models"
)

// ConfigFileName is the workspace configuration file, without extension.
const ConfigFileName = ".cnlconfig"

// ConfigurationManager loads and validates workspace configuration.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
	ValidateConfig(cfg *models.GlobalConfig) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads
// .cnlconfig from basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with sensible defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		MaxScanLines:   DefaultMaxScanLines,
		StorageBackend: models.BackendFile,
		SQLitePath:     "cnl.db",
		RemoteURL:      "",
		RemoteTimeout:  10 * time.Second,
		ServerAddr:     ":8420",
		LogLevel:       "info",
		LogFormat:      "console",
		WatchSchema:    true,
	}
}

// LoadGlobalConfig reads .cnlconfig from the base path. If the file does not
// exist, defaults are returned.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)
	v.SetEnvPrefix("CNL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("resolver.max_scan_lines", cfg.MaxScanLines)
	v.SetDefault("storage.backend", string(cfg.StorageBackend))
	v.SetDefault("storage.sqlite_path", cfg.SQLitePath)
	v.SetDefault("remote.url", cfg.RemoteURL)
	v.SetDefault("remote.timeout", cfg.RemoteTimeout)
	v.SetDefault("server.addr", cfg.ServerAddr)
	v.SetDefault("log.level", cfg.LogLevel)
	v.SetDefault("log.format", cfg.LogFormat)
	v.SetDefault("schema.watch", cfg.WatchSchema)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s: %w", ConfigFileName, err)
		}
	}

	cfg.MaxScanLines = v.GetInt("resolver.max_scan_lines")
	cfg.StorageBackend = models.StorageBackend(v.GetString("storage.backend"))
	cfg.SQLitePath = v.GetString("storage.sqlite_path")
	cfg.RemoteURL = v.GetString("remote.url")
	cfg.RemoteTimeout = v.GetDuration("remote.timeout")
	cfg.ServerAddr = v.GetString("server.addr")
	cfg.LogLevel = v.GetString("log.level")
	cfg.LogFormat = v.GetString("log.format")
	cfg.WatchSchema = v.GetBool("schema.watch")

	return cfg, nil
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"console": true,
	"json":    true,
}

// ValidateConfig checks the configuration for invalid values and reports
// every problem at once.
func (cm *viperConfigManager) ValidateConfig(cfg *models.GlobalConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errs []string

	if cfg.MaxScanLines < 0 {
		errs = append(errs, fmt.Sprintf("resolver.max_scan_lines must be non-negative, got %d", cfg.MaxScanLines))
	}

	switch cfg.StorageBackend {
	case models.BackendFile:
	case models.BackendSQLite:
		if cfg.SQLitePath == "" {
			errs = append(errs, "storage.sqlite_path must not be empty when storage.backend is sqlite")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q is invalid, must be one of: file, sqlite", cfg.StorageBackend))
	}

	if cfg.RemoteURL != "" && !strings.HasPrefix(cfg.RemoteURL, "http://") && !strings.HasPrefix(cfg.RemoteURL, "https://") {
		errs = append(errs, fmt.Sprintf("remote.url %q must start with http:// or https://", cfg.RemoteURL))
	}

	if cfg.RemoteTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("remote.timeout must be positive, got %s", cfg.RemoteTimeout))
	}

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Sprintf("log.level %q is invalid, must be one of: debug, info, warn, error", cfg.LogLevel))
	}

	if !validLogFormats[cfg.LogFormat] {
		errs = append(errs, fmt.Sprintf("log.format %q is invalid, must be one of: console, json", cfg.LogFormat))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
