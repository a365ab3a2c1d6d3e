// Package config provides Viper-based configuration loading for the hexrooms server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HEX_HTTP_PORT.
const EnvPrefix = "HEX"

// ServerConfig identifies this process to discovery.
type ServerConfig struct {
	// Name is the unique server name published in snapshots.
	Name string `mapstructure:"name"`
	// AdvertiseAddr is the client-facing address published in snapshots.
	AdvertiseAddr string `mapstructure:"advertise_addr"`
	// LayoutsDir holds the board layout YAML files.
	LayoutsDir string `mapstructure:"layouts_dir"`
}

// HTTPConfig holds the room API and websocket listener settings.
type HTTPConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// ReadHeaderTimeout bounds request header reads.
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	// WriteTimeout bounds a single websocket frame write.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ReadLimit caps an inbound websocket frame in bytes.
	ReadLimit int64 `mapstructure:"read_limit"`
	// OriginPatterns lists accepted websocket origins; empty means same origin only.
	OriginPatterns []string `mapstructure:"origin_patterns"`
}

// Addr returns the "host:port" listen address.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// DiscoveryConfig holds the discovery gRPC service and publisher settings.
type DiscoveryConfig struct {
	GRPCHost string `mapstructure:"grpc_host"`
	GRPCPort int    `mapstructure:"grpc_port"`
	// WatchInterval is the push period of the Watch stream.
	WatchInterval time.Duration `mapstructure:"watch_interval"`
	// PublishInterval is how often the snapshot is written to the database.
	PublishInterval time.Duration `mapstructure:"publish_interval"`
}

// Addr returns the "host:port" gRPC address.
func (d DiscoveryConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.GRPCHost, d.GRPCPort)
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// Enabled turns on match archiving and snapshot publishing.
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// RoomsConfig holds room defaults and limits.
type RoomsConfig struct {
	DefaultLayout      string        `mapstructure:"default_layout"`
	DefaultMaxUsers    int           `mapstructure:"default_max_users"`
	DefaultTurnTimeout int           `mapstructure:"default_turn_timeout"`
	DisconnectGrace    time.Duration `mapstructure:"disconnect_grace"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	MaxChatLength      int           `mapstructure:"max_chat_length"`
	OutboxSize         int           `mapstructure:"outbox_size"`
	InboxSize          int           `mapstructure:"inbox_size"`
	ArchiveTimeout     time.Duration `mapstructure:"archive_timeout"`
}

// InvitesConfig holds invite registry settings.
type InvitesConfig struct {
	// TTL is how long an invite stays redeemable; 0 never expires.
	TTL time.Duration `mapstructure:"ttl"`
	// SweepInterval is how often expired invites are dropped.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Shards        int           `mapstructure:"shards"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Rooms     RoomsConfig     `mapstructure:"rooms"`
	Invites   InvitesConfig   `mapstructure:"invites"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateServer(c.Server),
		validateHTTP(c.HTTP),
		validateDiscovery(c.Discovery),
		validateDatabase(c.Database),
		validateLogging(c.Logging),
		validateRooms(c.Rooms),
		validateInvites(c.Invites),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New(strings.Join(errs, "; "))
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }

func validateServer(s ServerConfig) error {
	var errs []string
	if s.Name == "" {
		errs = append(errs, "server.name must not be empty")
	}
	if s.LayoutsDir == "" {
		errs = append(errs, "server.layouts_dir must not be empty")
	}
	return joinErrs(errs)
}

func validateHTTP(h HTTPConfig) error {
	var errs []string
	if !validPort(h.Port) {
		errs = append(errs, fmt.Sprintf("http.port must be 1-65535, got %d", h.Port))
	}
	if h.ReadHeaderTimeout < 0 {
		errs = append(errs, "http.read_header_timeout must not be negative")
	}
	if h.WriteTimeout < 0 {
		errs = append(errs, "http.write_timeout must not be negative")
	}
	if h.ReadLimit < 0 {
		errs = append(errs, "http.read_limit must not be negative")
	}
	return joinErrs(errs)
}

func validateDiscovery(d DiscoveryConfig) error {
	var errs []string
	if d.GRPCHost == "" {
		errs = append(errs, "discovery.grpc_host must not be empty")
	}
	if !validPort(d.GRPCPort) {
		errs = append(errs, fmt.Sprintf("discovery.grpc_port must be 1-65535, got %d", d.GRPCPort))
	}
	if d.WatchInterval <= 0 {
		errs = append(errs, "discovery.watch_interval must be positive")
	}
	if d.PublishInterval <= 0 {
		errs = append(errs, "discovery.publish_interval must be positive")
	}
	return joinErrs(errs)
}

func validateDatabase(d DatabaseConfig) error {
	if !d.Enabled {
		return nil
	}
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if !validPort(d.Port) {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	return joinErrs(errs)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// maxTurnTimeout mirrors room.MaxTurnTimeout; config cannot import room.
const maxTurnTimeout = 24 * 60 * 60

func validateRooms(r RoomsConfig) error {
	var errs []string
	if r.DefaultLayout == "" {
		errs = append(errs, "rooms.default_layout must not be empty")
	}
	if r.DefaultMaxUsers < 2 || r.DefaultMaxUsers > 16 {
		errs = append(errs, fmt.Sprintf("rooms.default_max_users must be 2-16, got %d", r.DefaultMaxUsers))
	}
	if r.DefaultTurnTimeout < 0 || r.DefaultTurnTimeout > maxTurnTimeout {
		errs = append(errs, fmt.Sprintf("rooms.default_turn_timeout must be 0-%d seconds, got %d", maxTurnTimeout, r.DefaultTurnTimeout))
	}
	if r.DisconnectGrace < 0 {
		errs = append(errs, "rooms.disconnect_grace must not be negative")
	}
	if r.IdleTimeout < 0 {
		errs = append(errs, "rooms.idle_timeout must not be negative")
	}
	if r.MaxChatLength < 1 {
		errs = append(errs, fmt.Sprintf("rooms.max_chat_length must be >= 1, got %d", r.MaxChatLength))
	}
	if r.OutboxSize < 1 {
		errs = append(errs, fmt.Sprintf("rooms.outbox_size must be >= 1, got %d", r.OutboxSize))
	}
	if r.InboxSize < 1 {
		errs = append(errs, fmt.Sprintf("rooms.inbox_size must be >= 1, got %d", r.InboxSize))
	}
	if r.ArchiveTimeout <= 0 {
		errs = append(errs, "rooms.archive_timeout must be positive")
	}
	return joinErrs(errs)
}

func validateInvites(i InvitesConfig) error {
	var errs []string
	if i.TTL < 0 {
		errs = append(errs, "invites.ttl must not be negative")
	}
	if i.SweepInterval <= 0 {
		errs = append(errs, "invites.sweep_interval must be positive")
	}
	if i.Shards < 1 {
		errs = append(errs, fmt.Sprintf("invites.shards must be >= 1, got %d", i.Shards))
	}
	return joinErrs(errs)
}

// Load reads configuration from the given file path, applies .env and
// environment variable overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := NewViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadDotEnv exports the variables of each existing file into the process
// environment without overriding variables that are already set.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// NewViper returns a Viper instance with defaults and HEX_ environment
// overrides applied.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "hexrooms-dev")
	v.SetDefault("server.advertise_addr", "127.0.0.1:8080")
	v.SetDefault("server.layouts_dir", "content/layouts")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_header_timeout", "10s")
	v.SetDefault("http.write_timeout", "5s")
	v.SetDefault("http.read_limit", 4096)

	v.SetDefault("discovery.grpc_host", "0.0.0.0")
	v.SetDefault("discovery.grpc_port", 50051)
	v.SetDefault("discovery.watch_interval", "5s")
	v.SetDefault("discovery.publish_interval", "10s")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "hexrooms")
	v.SetDefault("database.password", "hexrooms")
	v.SetDefault("database.name", "hexrooms")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("rooms.default_layout", "classic")
	v.SetDefault("rooms.default_max_users", 8)
	v.SetDefault("rooms.default_turn_timeout", 0)
	v.SetDefault("rooms.disconnect_grace", "30s")
	v.SetDefault("rooms.idle_timeout", "10m")
	v.SetDefault("rooms.max_chat_length", 500)
	v.SetDefault("rooms.outbox_size", 64)
	v.SetDefault("rooms.inbox_size", 64)
	v.SetDefault("rooms.archive_timeout", "5s")

	v.SetDefault("invites.ttl", "15m")
	v.SetDefault("invites.sweep_interval", "1m")
	v.SetDefault("invites.shards", 16)
}
