package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Driver != DriverSQLite {
			t.Errorf("expected driver %s, got %s", DriverSQLite, config.Database.Driver)
		}

		if config.Database.Path != "./opus.db" {
			t.Errorf("expected database path ./opus.db, got %s", config.Database.Path)
		}

		if config.URN.SNID1 != "swb" || config.URN.SNID2 != "14" || config.URN.NISS != "opus" {
			t.Errorf("unexpected urn settings %+v", config.URN)
		}

		if config.Cache.TTL.Duration != 10*time.Minute {
			t.Errorf("expected cache ttl 10m, got %s", config.Cache.TTL)
		}

		if _, ok := config.Languages.Available["deu"]; !ok {
			t.Error("expected deu among available languages")
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
driver = "postgres"
dsn = "postgres://opus@localhost/opus?sslmode=disable"
max_open_conns = 20
max_idle_conns = 10

[search]
engine = "none"

[urn]
snid1 = "bsz"
snid2 = "93"
niss = "opus4"

[cache]
ttl = "90s"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Driver != DriverPostgres {
			t.Errorf("expected driver postgres, got %s", config.Database.Driver)
		}

		if config.Database.MaxOpenConns != 20 {
			t.Errorf("expected max_open_conns 20, got %d", config.Database.MaxOpenConns)
		}

		if config.URN.NISS != "opus4" {
			t.Errorf("expected niss opus4, got %s", config.URN.NISS)
		}

		if config.Cache.TTL.Duration != 90*time.Second {
			t.Errorf("expected ttl 90s, got %s", config.Cache.TTL)
		}

		if config.Cache.CleanupInterval.Duration != 15*time.Minute {
			t.Errorf("expected default cleanup interval, got %s", config.Cache.CleanupInterval)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tt := []struct {
			name   string
			mutate func(c *Config)
		}{
			{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }},
			{name: "sqlite without path", mutate: func(c *Config) { c.Database.Path = "" }},
			{name: "mysql without dsn", mutate: func(c *Config) { c.Database.Driver = DriverMySQL; c.Database.DSN = "" }},
			{name: "unknown search engine", mutate: func(c *Config) { c.Search.Engine = "lucene" }},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				c := DefaultConfig()
				tc.mutate(c)
				if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
			})
		}
	})

	t.Run("Invalid Duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[cache]\nttl = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error for invalid duration")
		}
	})
}
