// Package config loads splitledger settings.
//
// Sources, lowest to highest precedence: DefaultConfig, an optional TOML file,
// an optional .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Auth     AuthConfig     `toml:"auth"`
	Log      LogConfig      `toml:"log"`
	AMQP     AMQPConfig     `toml:"amqp"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

type ServerConfig struct {
	Port            int           `toml:"port" env:"PORT"`
	AllowedOrigin   string        `toml:"allowed_origin" env:"CORS_ORIGIN"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type DatabaseConfig struct {
	Path string `toml:"path" env:"DB_PATH"`
}

type AuthConfig struct {
	// JWTSecret signs session tokens. Accounts are disabled when empty.
	JWTSecret     string        `toml:"jwt_secret" env:"JWT_SECRET"`
	TokenDuration time.Duration `toml:"token_duration" env:"TOKEN_DURATION"`

	// Required rejects anonymous calls to every procedure except login and register.
	Required   bool `toml:"required" env:"AUTH_REQUIRED"`
	BcryptCost int  `toml:"bcrypt_cost" env:"BCRYPT_COST"`
}

// Enabled reports whether accounts and tokens are available.
func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

type LogConfig struct {
	Level  string `toml:"level" env:"LOG_LEVEL"`
	Format string `toml:"format" env:"LOG_FORMAT"`
}

type AMQPConfig struct {
	// URL enables expense events when set.
	URL      string `toml:"url" env:"AMQP_URL"`
	Exchange string `toml:"exchange" env:"AMQP_EXCHANGE"`
	Queue    string `toml:"queue" env:"AMQP_QUEUE"`
}

// Enabled reports whether a broker is configured.
func (a AMQPConfig) Enabled() bool { return a.URL != "" }

type MetricsConfig struct {
	Enabled bool   `toml:"enabled" env:"METRICS_ENABLED"`
	Path    string `toml:"path" env:"METRICS_PATH"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			AllowedOrigin:   "*",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "./data/splitledger.db",
		},
		Auth: AuthConfig{
			TokenDuration: 24 * time.Hour,
			BcryptCost:    bcrypt.DefaultCost,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		AMQP: AMQPConfig{
			Exchange: "splitledger",
			Queue:    "settlement_recompute",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load builds a Config from the defaults, configFile and envFile, then the
// environment. Either file may be empty; a missing envFile is ignored.
func Load(configFile, envFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		md, err := toml.DecodeFile(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("unknown keys in %s: %s", configFile, strings.Join(keys, ", "))
		}
	}

	if envFile != "" {
		// Existing environment variables win over the file
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid shutdown timeout %v: must be positive", c.Server.ShutdownTimeout))
	}

	if strings.TrimSpace(c.Database.Path) == "" {
		problems = append(problems, "database path cannot be empty")
	}

	if c.Auth.Required && !c.Auth.Enabled() {
		problems = append(problems, "JWT_SECRET is required when authentication is required")
	}
	if c.Auth.Enabled() && len(c.Auth.JWTSecret) < 16 {
		problems = append(problems, "JWT secret must be at least 16 characters")
	}
	if c.Auth.TokenDuration <= 0 {
		problems = append(problems, fmt.Sprintf("invalid token duration %v: must be positive", c.Auth.TokenDuration))
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		problems = append(problems, fmt.Sprintf("invalid bcrypt cost %d: must be between %d and %d", c.Auth.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be text or json", c.Log.Format))
	}

	if c.AMQP.Enabled() {
		if parsedURL, err := url.Parse(c.AMQP.URL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQP.URL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQP.Exchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQP.Queue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		problems = append(problems, fmt.Sprintf("invalid metrics path '%s': must start with /", c.Metrics.Path))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
