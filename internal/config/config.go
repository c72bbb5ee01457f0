// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Server     ServerConfig
	TLS        TLSConfig
	Storage    StorageConfig
	Database   DatabaseConfig
	Plex       PlexConfig
	Radarr     ArrConfig
	Sonarr     ArrConfig
	Dispatch   DispatchConfig
	Admin      AdminConfig
	Redis      RedisConfig
	RabbitMQ   RabbitMQConfig
	UI         UIConfig
	Validation ValidationConfig
	Logging    LoggingConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

// TLSConfig enables HTTPS when Enabled is set. CAFile is optional.
type TLSConfig struct {
	Enabled  bool
	CertFile string
	KeyFile  string
	CAFile   string
}

// StorageConfig selects the document store backend ("file" or "postgres").
type StorageConfig struct {
	Driver  string
	DataDir string
}

// DatabaseConfig contains database connection configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	Host           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	Port           int
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
}

// URL renders the connection settings as a postgres:// URL.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// PlexConfig describes the plex.tv endpoints used by the PIN login flow.
type PlexConfig struct {
	Product          string
	ClientIdentifier string
	PinURL           string
	AuthURL          string
	ValidateURL      string
	TokenHeader      string
	Timeout          time.Duration
}

// ArrConfig is a Radarr or Sonarr target. An empty BaseURL or APIKey
// disables fulfillment for that category.
type ArrConfig struct {
	BaseURL          string
	APIKey           string
	RootFolderPath   string
	QualityProfileID int
}

// DispatchConfig bounds a single fulfillment call.
type DispatchConfig struct {
	Timeout time.Duration
}

// AdminConfig contains admin session settings.
type AdminConfig struct {
	JWTSecret       string
	SessionTTL      time.Duration
	DefaultPassword string
}

// RedisConfig enables the Redis admin session store when URL is set.
type RedisConfig struct {
	URL string
}

// RabbitMQConfig contains RabbitMQ connection settings for ledger events.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RabbitMQConfig struct {
	Enabled   bool
	Host      string
	User      string
	Password  string
	Exchange  string
	Port      int
	QueueSize int
}

// ValidationConfig controls request payload checks.
type ValidationConfig struct {
	Enabled        bool
	MaxFieldLength int
}

// UIConfig is exposed to the browser client through /api/config.
type UIConfig struct {
	DefaultBackground        string
	BackgroundOverlayOpacity float64
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file and environment variables.
// Environment variables use the FINEARR_ prefix with underscores for nesting,
// e.g. FINEARR_SERVER_PORT.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.SetEnvPrefix("FINEARR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "file", "postgres":
	default:
		return fmt.Errorf("unsupported storage driver %q (expected file or postgres)", c.Storage.Driver)
	}

	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("tls enabled but certfile or keyfile is empty")
	}

	if c.Admin.SessionTTL <= 0 {
		return fmt.Errorf("admin session ttl must be positive")
	}

	if c.Dispatch.Timeout <= 0 {
		return fmt.Errorf("dispatch timeout must be positive")
	}

	if c.Plex.Timeout <= 0 {
		return fmt.Errorf("plex timeout must be positive")
	}

	if c.RabbitMQ.Enabled && c.RabbitMQ.QueueSize <= 0 {
		return fmt.Errorf("rabbitmq queue size must be positive")
	}

	return nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)

	// TLS
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.certfile", "")
	viper.SetDefault("tls.keyfile", "")
	viper.SetDefault("tls.cafile", "")

	// Storage
	viper.SetDefault("storage.driver", "file")
	viper.SetDefault("storage.datadir", "./data")

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "finearr")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxconnections", 10)
	viper.SetDefault("database.minconnections", 2)
	viper.SetDefault("database.maxidletime", 10*time.Minute)
	viper.SetDefault("database.maxlifetime", 1*time.Hour)

	// Plex
	viper.SetDefault("plex.product", "Finearr")
	viper.SetDefault("plex.clientidentifier", "")
	viper.SetDefault("plex.pinurl", "https://plex.tv/api/v2/pins")
	viper.SetDefault("plex.authurl", "https://app.plex.tv/auth")
	viper.SetDefault("plex.validateurl", "https://plex.tv/api/v2/user")
	viper.SetDefault("plex.tokenheader", "X-Plex-Token")
	viper.SetDefault("plex.timeout", 15*time.Second)

	// Download managers
	viper.SetDefault("radarr.baseurl", "")
	viper.SetDefault("radarr.apikey", "")
	viper.SetDefault("radarr.rootfolderpath", "")
	viper.SetDefault("radarr.qualityprofileid", 0)
	viper.SetDefault("sonarr.baseurl", "")
	viper.SetDefault("sonarr.apikey", "")
	viper.SetDefault("sonarr.rootfolderpath", "")
	viper.SetDefault("sonarr.qualityprofileid", 0)
	viper.SetDefault("dispatch.timeout", 15*time.Second)

	// Admin
	viper.SetDefault("admin.jwtsecret", "")
	viper.SetDefault("admin.sessionttl", 12*time.Hour)
	viper.SetDefault("admin.defaultpassword", "admin")

	// Redis
	viper.SetDefault("redis.url", "")

	// RabbitMQ
	viper.SetDefault("rabbitmq.enabled", false)
	viper.SetDefault("rabbitmq.host", "localhost")
	viper.SetDefault("rabbitmq.port", 5672)
	viper.SetDefault("rabbitmq.user", "guest")
	viper.SetDefault("rabbitmq.password", "guest")
	viper.SetDefault("rabbitmq.exchange", "finearr.requests")
	viper.SetDefault("rabbitmq.queuesize", 256)

	// UI
	viper.SetDefault("ui.defaultbackground", "")
	viper.SetDefault("ui.backgroundoverlayopacity", 0.4)

	// Validation
	viper.SetDefault("validation.enabled", true)
	viper.SetDefault("validation.maxfieldlength", 512)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
