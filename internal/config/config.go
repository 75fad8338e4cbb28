package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store kinds
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreCalDAV   = "caldav"
)

// Transport kinds
const (
	TransportEmail  = "email"
	TransportCalDAV = "caldav"
	// TransportLog only logs responses, for dry runs
	TransportLog = "log"
)

// PostgresConfig points at the database holding the itip_items table.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
	// Calendar is the calendar_id rows are stored under.
	Calendar string `yaml:"calendar"`
}

// CalDAVStoreConfig points at a remote calendar collection.
type CalDAVStoreConfig struct {
	Endpoint string `yaml:"endpoint"`
	Calendar string `yaml:"calendar"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// StoreConfig selects the target calendar backend.
type StoreConfig struct {
	Kind     string            `yaml:"kind"`
	// Owner is the calendar address of the calendar's owner, e.g.
	// "mailto:alice@example.com". Defaults to the identity.
	Owner    string            `yaml:"owner"`
	Postgres PostgresConfig    `yaml:"postgres"`
	CalDAV   CalDAVStoreConfig `yaml:"caldav"`
}

// EmailConfig configures iMIP delivery over SMTP.
type EmailConfig struct {
	// Addr is the SMTP relay as host:port.
	Addr     string `yaml:"addr"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// CalDAVTransportConfig configures delivery through a scheduling outbox.
type CalDAVTransportConfig struct {
	Outbox   string `yaml:"outbox"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// TransportConfig selects how responses leave the processor.
type TransportConfig struct {
	Kind   string                `yaml:"kind"`
	Email  EmailConfig           `yaml:"email"`
	CalDAV CalDAVTransportConfig `yaml:"caldav"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Config is the top-level configuration of the itip command.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Identity is the local user's address without scheme, e.g. "alice@example.com".
	Identity  string          `yaml:"identity"`
	Store     StoreConfig     `yaml:"store"`
	Transport TransportConfig `yaml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Default returns the configuration used when no file is given: an
// in-memory calendar and responses written to the log.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		Store:     StoreConfig{Kind: StoreMemory},
		Transport: TransportConfig{Kind: TransportLog},
		Metrics:   MetricsConfig{Listen: "127.0.0.1:9464"},
	}
}

// Load reads the YAML file at path on top of Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration on top of Default and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize lower-cases kinds and fills in values left empty.
func (c *Config) Normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.Identity = strings.TrimSpace(c.Identity)
	c.Identity = strings.TrimPrefix(c.Identity, "mailto:")
	c.Store.Kind = strings.ToLower(strings.TrimSpace(c.Store.Kind))
	if c.Store.Kind == "" {
		c.Store.Kind = StoreMemory
	}
	c.Store.Owner = strings.TrimSpace(c.Store.Owner)
	if c.Store.Owner == "" && c.Identity != "" {
		c.Store.Owner = "mailto:" + c.Identity
	}
	if c.Store.Postgres.Calendar == "" {
		c.Store.Postgres.Calendar = "default"
	}
	c.Transport.Kind = strings.ToLower(strings.TrimSpace(c.Transport.Kind))
	if c.Transport.Kind == "" {
		c.Transport.Kind = TransportLog
	}
	if c.Transport.Email.From == "" && c.Identity != "" {
		c.Transport.Email.From = c.Identity
	}
}

// Validate checks that the selected backends are fully configured.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	switch c.Store.Kind {
	case StoreMemory:
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			errs = append(errs, errors.New("store.postgres.dsn is required"))
		}
	case StoreCalDAV:
		if c.Store.CalDAV.Endpoint == "" {
			errs = append(errs, errors.New("store.caldav.endpoint is required"))
		}
		if c.Store.CalDAV.Calendar == "" {
			errs = append(errs, errors.New("store.caldav.calendar is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store kind %q", c.Store.Kind))
	}

	switch c.Transport.Kind {
	case TransportLog:
	case TransportEmail:
		if c.Transport.Email.Addr == "" {
			errs = append(errs, errors.New("transport.email.addr is required"))
		}
		if c.Transport.Email.From == "" {
			errs = append(errs, errors.New("transport.email.from is required"))
		}
	case TransportCalDAV:
		if c.Transport.CalDAV.Outbox == "" {
			errs = append(errs, errors.New("transport.caldav.outbox is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown transport kind %q", c.Transport.Kind))
	}
	return errors.Join(errs...)
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return level, nil
}
