// Package config loads server configuration from an optional YAML file and
// the process environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

var ErrConfiguration = errors.New("invalid configuration")

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

const (
	DefaultPort              = "8080"
	DefaultIssuer            = "quizauth"
	DefaultAccessTTL         = 15 * time.Minute
	DefaultRefreshTTL        = 7 * 24 * time.Hour
	DefaultStateTTL          = 5 * time.Minute
	DefaultFederationTimeout = 10 * time.Second
	DefaultMaintenance       = time.Minute
)

// Config is the complete server configuration. Every field may come from
// the YAML file; environment variables win over the file.
type Config struct {
	Environment string         `yaml:"environment" env:"APP_ENV"`
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Auth        AuthConfig     `yaml:"auth"`
	Google      GoogleConfig   `yaml:"google"`
	Logging     LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the listener and browser-facing settings.
type ServerConfig struct {
	Port         string `yaml:"port" env:"PORT"`
	FrontendURL  string `yaml:"frontend_url" env:"FRONTEND_URL"`
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"DATABASE_PATH"`
}

// AuthConfig holds token settings. Durations are written as Go duration
// strings in YAML ("15m", "168h").
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string `yaml:"issuer" env:"TOKEN_ISSUER"`

	AccessTTL   time.Duration `yaml:"-" env:"ACCESS_TTL"`
	RefreshTTL  time.Duration `yaml:"-" env:"REFRESH_TTL"`
	StateTTL    time.Duration `yaml:"-" env:"STATE_TTL"`
	Maintenance time.Duration `yaml:"-" env:"MAINTENANCE_INTERVAL"`

	AccessTTLRaw   string `yaml:"access_ttl"`
	RefreshTTLRaw  string `yaml:"refresh_ttl"`
	StateTTLRaw    string `yaml:"state_ttl"`
	MaintenanceRaw string `yaml:"maintenance_interval"`
}

type GoogleConfig struct {
	ClientID     string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	RedirectURI  string `yaml:"redirect_uri" env:"GOOGLE_REDIRECT_URI"`

	Timeout    time.Duration `yaml:"-" env:"GOOGLE_TIMEOUT"`
	TimeoutRaw string        `yaml:"timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// Load builds a Config from the YAML file at path, if path is not empty,
// then applies environment overrides and defaults, and validates the result.
// ${VAR} references in the file are expanded from the environment.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading config file: %v", ErrConfiguration, err)
		}
		if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing config file: %v", ErrConfiguration, err)
		}
		if err := parseDurations(&cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing environment: %v", ErrConfiguration, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the variable's value, or nothing when
// it is unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.access_ttl", cfg.Auth.AccessTTLRaw, &cfg.Auth.AccessTTL},
		{"auth.refresh_ttl", cfg.Auth.RefreshTTLRaw, &cfg.Auth.RefreshTTL},
		{"auth.state_ttl", cfg.Auth.StateTTLRaw, &cfg.Auth.StateTTL},
		{"auth.maintenance_interval", cfg.Auth.MaintenanceRaw, &cfg.Auth.Maintenance},
		{"google.timeout", cfg.Google.TimeoutRaw, &cfg.Google.Timeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %v", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = EnvDevelopment
	}
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = DefaultIssuer
	}
	if c.Auth.AccessTTL == 0 {
		c.Auth.AccessTTL = DefaultAccessTTL
	}
	if c.Auth.RefreshTTL == 0 {
		c.Auth.RefreshTTL = DefaultRefreshTTL
	}
	if c.Auth.StateTTL == 0 {
		c.Auth.StateTTL = DefaultStateTTL
	}
	if c.Auth.Maintenance == 0 {
		c.Auth.Maintenance = DefaultMaintenance
	}
	if c.Google.Timeout == 0 {
		c.Google.Timeout = DefaultFederationTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	c.Server.FrontendURL = strings.TrimRight(c.Server.FrontendURL, "/")
}

// Validate reports the first missing or malformed setting.
func (c *Config) Validate() error {
	switch {
	case c.Database.Path == "":
		return fmt.Errorf("%w: database path is required", ErrConfiguration)
	case len(c.Auth.JWTSecret) < tokens.MinSecretLength:
		return fmt.Errorf("%w: jwt secret must be at least %d bytes", ErrConfiguration, tokens.MinSecretLength)
	case c.Google.ClientID == "" || c.Google.ClientSecret == "":
		return fmt.Errorf("%w: google client id and secret are required", ErrConfiguration)
	case c.Google.RedirectURI == "":
		return fmt.Errorf("%w: google redirect uri is required", ErrConfiguration)
	case c.Server.FrontendURL == "":
		return fmt.Errorf("%w: frontend url is required", ErrConfiguration)
	}

	if u, err := url.Parse(c.Server.FrontendURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: frontend url %q is not absolute", ErrConfiguration, c.Server.FrontendURL)
	}

	switch c.Environment {
	case EnvProduction, EnvDevelopment, "test":
	default:
		return fmt.Errorf("%w: unknown environment %q", ErrConfiguration, c.Environment)
	}

	for _, d := range []time.Duration{
		c.Auth.AccessTTL,
		c.Auth.RefreshTTL,
		c.Auth.StateTTL,
		c.Auth.Maintenance,
		c.Google.Timeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: durations must be positive", ErrConfiguration)
		}
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		return fmt.Errorf("%w: access ttl must be shorter than refresh ttl", ErrConfiguration)
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrConfiguration, c.Logging.Format)
	}
	return nil
}

// Secure reports whether cookies must be marked Secure.
func (c *Config) Secure() bool {
	return c.Environment == EnvProduction
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}
