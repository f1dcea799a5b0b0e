package models

import "time"

// StorageBackend selects where graphs are persisted.
type StorageBackend string

const (
	BackendFile   StorageBackend = "file"
	BackendSQLite StorageBackend = "sqlite"
)

// GlobalConfig holds workspace settings read from .cnlconfig via Viper.
type GlobalConfig struct {
	// MaxScanLines caps the resolver's backward header scan. Zero disables the cap.
	MaxScanLines   int            `yaml:"max_scan_lines" mapstructure:"max_scan_lines"`
	StorageBackend StorageBackend `yaml:"storage_backend" mapstructure:"storage_backend"`
	SQLitePath     string         `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	// RemoteURL is the base URL of a remote fragment server. Empty means
	// other graphs are read from the local store.
	RemoteURL     string        `yaml:"remote_url,omitempty" mapstructure:"remote_url"`
	RemoteTimeout time.Duration `yaml:"remote_timeout" mapstructure:"remote_timeout"`
	ServerAddr    string        `yaml:"server_addr" mapstructure:"server_addr"`
	LogLevel      string        `yaml:"log_level" mapstructure:"log_level"`
	LogFormat     string        `yaml:"log_format" mapstructure:"log_format"`
	WatchSchema   bool          `yaml:"watch_schema" mapstructure:"watch_schema"`
}
