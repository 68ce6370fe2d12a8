package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/bankfeed/internal/apperrors"
)

// FileName is the default config file name.
const FileName = "bankfeed.yaml"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatBoth = "both"
	FormatNone = "none"

	sqliteFileName = "transactions.db"
)

// Config represents the top-level bankfeed.yaml configuration.
type Config struct {
	Watch  WatchConfig  `yaml:"watch"`
	Store  StoreConfig  `yaml:"store"`
	Output OutputConfig `yaml:"output"`
}

// WatchConfig controls the inbox watcher.
type WatchConfig struct {
	Dir          string        `yaml:"dir"`
	DataDir      string        `yaml:"data_dir"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Parser       string        `yaml:"parser,omitempty"` // force a parser instead of detecting
	Pattern      string        `yaml:"pattern"`
}

// StoreConfig selects and addresses the transaction store.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"` // sqlite; defaults to <data_dir>/transactions.db
	DSN    string `yaml:"dsn,omitempty"`  // postgres URL; composed from the fields below when empty

	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Name     string `yaml:"name,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// OutputConfig controls file-mode exports of the parse command.
type OutputConfig struct {
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

// Load reads a bankfeed.yaml file from disk. Missing fields keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new setup.
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			Dir:          "./incoming",
			DataDir:      "./data",
			PollInterval: 30 * time.Second,
			Pattern:      "*.csv",
		},
		Store: StoreConfig{
			Driver: DriverSQLite,
			Host:   "localhost",
			Port:   5432,
			Name:   "family_finance",
		},
		Output: OutputConfig{
			Format: FormatBoth,
			Dir:    "output/normalized",
		},
	}
}

// Resolve builds the effective configuration: defaults, then the YAML file
// at path if it exists, then .env, then environment variables.
func Resolve(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads variables from an .env file without overriding ones
// already set. An empty path tries ./.env and ignores its absence.
func LoadEnvFile(path string) error {
	if path == "" {
		_ = godotenv.Load()
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() error {
	setString(&c.Watch.Dir, "WATCH_DIR")
	setString(&c.Watch.DataDir, "DATA_DIR")
	setString(&c.Watch.Parser, "BANKFEED_PARSER")
	setString(&c.Store.Driver, "STORE_DRIVER")
	setString(&c.Store.Path, "SQLITE_PATH")
	setString(&c.Store.DSN, "DATABASE_URL")
	setString(&c.Store.Host, "DB_HOST")
	setString(&c.Store.Name, "DB_NAME")
	setString(&c.Store.User, "DB_USER")
	setString(&c.Store.Password, "DB_PASSWORD")

	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: invalid DB_PORT %q", apperrors.ErrConfiguration, v)
		}
		c.Store.Port = port
	}
	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := ParseInterval(v)
		if err != nil {
			return fmt.Errorf("%w: invalid POLL_INTERVAL: %v", apperrors.ErrConfiguration, err)
		}
		c.Watch.PollInterval = d
	}
	return nil
}

// ParseInterval accepts whole seconds ("30") or a Go duration ("1m30s").
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// SQLitePath returns the sqlite database file, defaulting to the data dir.
func (c *Config) SQLitePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return filepath.Join(c.Watch.DataDir, sqliteFileName)
}

// PostgresDSN returns the configured URL or one composed from the parts.
func (c *Config) PostgresDSN() string {
	if c.Store.DSN != "" {
		return c.Store.DSN
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Store.User, c.Store.Password),
		Host:   net.JoinHostPort(c.Store.Host, strconv.Itoa(c.Store.Port)),
		Path:   "/" + c.Store.Name,
	}
	return u.String()
}

// Validate reports every invalid setting. Each error wraps
// apperrors.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{apperrors.ErrConfiguration}, args...)...))
	}

	if c.Watch.Dir == "" {
		bad("watch.dir is required")
	}
	if c.Watch.DataDir == "" {
		bad("watch.data_dir is required")
	}
	if c.Watch.PollInterval <= 0 {
		bad("watch.poll_interval must be positive, got %s", c.Watch.PollInterval)
	}
	if c.Watch.Pattern != "" {
		if _, err := filepath.Match(c.Watch.Pattern, "x.csv"); err != nil {
			bad("watch.pattern %q: %v", c.Watch.Pattern, err)
		}
	}

	switch c.Store.Driver {
	case DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" && (c.Store.User == "" || c.Store.Password == "") {
			bad("postgres requires DATABASE_URL or DB_USER and DB_PASSWORD")
		}
	default:
		bad("unknown store driver %q", c.Store.Driver)
	}

	switch c.Output.Format {
	case FormatJSON, FormatCSV, FormatBoth, FormatNone:
	default:
		bad("unknown output format %q", c.Output.Format)
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
