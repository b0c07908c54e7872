// Package config loads the configuration of the monty server from YAML, an
// optional .env file and MONTY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Suhaibinator/monty/pkg/route"
	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Transports
const (
	TransportNetHTTP  = "nethttp"
	TransportFastHTTP = "fasthttp"
)

// Route compiler backends
const (
	BackendRegex = "regex"
	BackendTree  = "tree"
)

// Rate limit strategies
const (
	RateLimitByIP   = "ip"
	RateLimitByUser = "user"
)

// Config is the full server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Router    RouterConfig    `yaml:"router"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
}

// ServerConfig configures the listener and the exchange handler
type ServerConfig struct {
	Address         string    `yaml:"address"`
	Port            int       `yaml:"port"`
	Transport       string    `yaml:"transport"` // nethttp | fasthttp
	ReadTimeout     Duration  `yaml:"read_timeout"`
	WriteTimeout    Duration  `yaml:"write_timeout"`
	ShutdownTimeout Duration  `yaml:"shutdown_timeout"`
	SlowRequest     Duration  `yaml:"slow_request"`
	MaxBodySize     SizeBytes `yaml:"max_body_size"`
	TraceID         bool      `yaml:"trace_id"`
}

// RouterConfig selects the route compiler
type RouterConfig struct {
	Backend string `yaml:"backend"` // regex | tree
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | console
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// CORSConfig lists allowed origins; CORS is off when empty
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RateLimitConfig configures a global per-client limit
type RateLimitConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Limit    int      `yaml:"limit"`
	Window   Duration `yaml:"window"`
	Strategy string   `yaml:"strategy"` // RateLimitByIP or RateLimitByUser
}

// AuthConfig configures JWT authentication; it is off without a secret
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	Optional  bool   `yaml:"optional"`
}

// Default returns the configuration used for anything a file leaves unset
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         "0.0.0.0",
			Port:            8080,
			Transport:       TransportNetHTTP,
			ReadTimeout:     Duration(5 * time.Second),
			WriteTimeout:    Duration(10 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
			SlowRequest:     Duration(time.Second),
			MaxBodySize:     1 << 20,
			TraceID:         true,
		},
		Router: RouterConfig{Backend: BackendRegex},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "monty",
		},
		RateLimit: RateLimitConfig{
			Limit:    100,
			Window:   Duration(time.Minute),
			Strategy: RateLimitByIP,
		},
	}
}

// Load reads .env if present, then the YAML file at path (skipped when path
// is empty), then MONTY_* environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load(".env")

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from MONTY_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var err error

	if v, ok := lookup("MONTY_ADDRESS"); ok {
		c.Server.Address = v
	}
	if v, ok := lookup("MONTY_PORT"); ok {
		port, perr := strconv.Atoi(v)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("MONTY_PORT: %w", perr))
		} else {
			c.Server.Port = port
		}
	}
	if v, ok := lookup("MONTY_TRANSPORT"); ok {
		c.Server.Transport = strings.ToLower(v)
	}
	if v, ok := lookup("MONTY_MAX_BODY_SIZE"); ok {
		size, perr := ParseSize(v)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("MONTY_MAX_BODY_SIZE: %w", perr))
		} else {
			c.Server.MaxBodySize = size
		}
	}
	if v, ok := lookup("MONTY_ROUTER_BACKEND"); ok {
		c.Router.Backend = strings.ToLower(v)
	}
	if v, ok := lookup("MONTY_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := lookup("MONTY_LOG_FORMAT"); ok {
		c.Logging.Format = v
	}
	if v, ok := lookup("MONTY_JWT_SECRET"); ok {
		c.Auth.JWTSecret = v
	}

	return err
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var err error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	switch c.Server.Transport {
	case TransportNetHTTP, TransportFastHTTP:
	default:
		err = multierr.Append(err, fmt.Errorf("server.transport: unknown transport %q", c.Server.Transport))
	}
	if c.Server.MaxBodySize < 0 {
		err = multierr.Append(err, errors.New("server.max_body_size: must not be negative"))
	}
	switch c.Router.Backend {
	case BackendRegex, BackendTree:
	default:
		err = multierr.Append(err, fmt.Errorf("router.backend: unknown backend %q", c.Router.Backend))
	}
	if _, lerr := c.Logging.level(); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("logging.level: %w", lerr))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		err = multierr.Append(err, fmt.Errorf("logging.format: unknown format %q", c.Logging.Format))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		err = multierr.Append(err, fmt.Errorf("metrics.path: %q must start with /", c.Metrics.Path))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Limit <= 0 {
			err = multierr.Append(err, errors.New("rate_limit.limit: must be positive"))
		}
		if c.RateLimit.Window <= 0 {
			err = multierr.Append(err, errors.New("rate_limit.window: must be positive"))
		}
		switch c.RateLimit.Strategy {
		case RateLimitByIP, RateLimitByUser:
		default:
			err = multierr.Append(err, fmt.Errorf("rate_limit.strategy: unknown strategy %q (want %q or %q)", c.RateLimit.Strategy, RateLimitByIP, RateLimitByUser))
		}
	}

	return err
}

// Addr returns host:port for the listener.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// RouteHandler builds the route compiler selected by Router.Backend.
func (c *Config) RouteHandler() route.RouteHandler {
	if c.Router.Backend == BackendTree {
		return route.NewTreeCompiler()
	}
	return route.NewCompiler()
}
