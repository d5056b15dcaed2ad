package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no config path is given and the file exists.
const DefaultPath = "migrasafe.yaml"

type Config struct {
	DatabaseURL     string   `yaml:"database_url"`
	Driver          string   `yaml:"driver"`
	MigrationsDir   string   `yaml:"migrations_dir"`
	HistoryTable    string   `yaml:"history_table"`
	HotTables       []string `yaml:"hot_tables"`
	HotTableMinRows int64    `yaml:"hot_table_min_rows"`
	LogLevel        string   `yaml:"log_level"`
}

func defaults() *Config {
	return &Config{
		Driver:          "postgres",
		MigrationsDir:   "migrations",
		HistoryTable:    "schema_migrations",
		HotTableMinRows: 1_000_000,
		LogLevel:        "warn",
	}
}

// Load builds the configuration from defaults, then the YAML file at path,
// then environment variables. An empty path reads DefaultPath if present.
// DATABASE_URL falls back to a DATABASE_URL= line in ./.env.
func Load(path string) (*Config, error) {
	cfg := defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg.applyEnv()

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = dotEnvValue(".env", "DATABASE_URL")
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("MIGRASAFE_DRIVER"); v != "" {
		c.Driver = v
	}
	if v := os.Getenv("MIGRASAFE_DIR"); v != "" {
		c.MigrationsDir = v
	}
	if v := os.Getenv("MIGRASAFE_HISTORY_TABLE"); v != "" {
		c.HistoryTable = v
	}
	if v := os.Getenv("MIGRASAFE_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("MIGRASAFE_HOT_TABLES"); v != "" {
		c.HotTables = splitList(v)
	}
}

// Validate reports settings that make a database connection impossible.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database connection not found: set DATABASE_URL or database_url in the config file")
	}
	if c.Driver == "" {
		return errors.New("driver must be set")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func dotEnvValue(path, key string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, key+"=") {
			return strings.Trim(strings.TrimPrefix(line, key+"="), `"'`)
		}
	}
	return ""
}
