package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the repository configuration loaded from a TOML file.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Search    SearchConfig    `toml:"search"`
	URN       URNConfig       `toml:"urn"`
	Languages LanguagesConfig `toml:"languages"`
	Doctypes  DoctypesConfig  `toml:"doctypes"`
	Cache     CacheConfig     `toml:"cache"`
}

// DatabaseConfig contains database connection settings.
//
// Driver is one of "sqlite3", "mysql" or "postgres". For sqlite3 the Path is used,
// the other drivers connect with DSN.
type DatabaseConfig struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// SearchConfig selects the indexer used when documents are stored or deleted.
type SearchConfig struct {
	Engine string `toml:"engine"`
	Path   string `toml:"path"`
}

// URNConfig holds the namespace parts used to mint document URNs.
type URNConfig struct {
	SNID1 string `toml:"snid1"`
	SNID2 string `toml:"snid2"`
	NISS  string `toml:"niss"`
}

// LanguagesConfig lists the languages offered as document language defaults.
type LanguagesConfig struct {
	Available map[string]string `toml:"available"`
}

// DoctypesConfig points at a directory of document type XML files.
type DoctypesConfig struct {
	Path string `toml:"path"`
}

// CacheConfig contains expiry settings for cached lookups.
type CacheConfig struct {
	TTL             Duration `toml:"ttl"`
	CleanupInterval Duration `toml:"cleanup_interval"`
}

// Duration wraps [time.Duration] so it can be written as a string in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file fall back to [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the settings that the model layer depends on.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path is required for %s", ErrInvalidConfig, DriverSQLite)
		}
	case DriverMySQL, DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for %s", ErrInvalidConfig, c.Database.Driver)
		}
	default:
		return fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, c.Database.Driver)
	}

	switch c.Search.Engine {
	case SearchEngineNone, SearchEngineBolt:
	default:
		return fmt.Errorf("%w: unsupported search engine %q", ErrInvalidConfig, c.Search.Engine)
	}

	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
