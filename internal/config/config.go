package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	"github.com/charleshuang3/authsession/internal/gormw"
	"github.com/charleshuang3/authsession/internal/handlers/firewall"
	"github.com/charleshuang3/authsession/internal/handlers/middleware"
)

var (
	logger = log.With().Str("component", "config").Logger()
)

const (
	// EnvJWTSecret overrides token.secret, so the secret can stay out of the file.
	EnvJWTSecret = "JWT_SECRET"

	minSecretLength       = 32
	defaultBodyLimitBytes = 400 * 1024
)

type TokenConfig struct {
	// Secret signs access tokens with HS256.
	Secret string `yaml:"secret"`
}

type Config struct {
	Port uint `yaml:"port"`
	// AdminPort serves /metrics and the firewall ban handlers. 0 disables it.
	AdminPort      uint                       `yaml:"admin_port"`
	GinMode        string                     `yaml:"gin_mode"`
	BodyLimitBytes int64                      `yaml:"body_limit_bytes"`
	Token          TokenConfig                `yaml:"token"`
	DB             gormw.Config               `yaml:"db"`
	RateLimit      middleware.RateLimitConfig `yaml:"rate_limit"`
	// Firewall is optional, nil leaves it out.
	Firewall *firewall.FirewallConfig `yaml:"firewall"`
}

// LoadConfig is Load that exits on error.
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", path).Msg("Failed to load config")
	}
	return cfg
}

// Load reads the YAML config at path. Variables from a .env file in the
// working directory are loaded first, without overriding the environment.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	if secret := os.Getenv(EnvJWTSecret); secret != "" {
		cfg.Token.Secret = secret
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == 0 {
		return errors.New("port is missing")
	}

	if c.GinMode == "" {
		return errors.New("gin_mode is missing")
	}

	if len(c.Token.Secret) < minSecretLength {
		return fmt.Errorf("token.secret must be at least %d bytes", minSecretLength)
	}

	if c.BodyLimitBytes <= 0 {
		c.BodyLimitBytes = defaultBodyLimitBytes
	}

	if c.Firewall != nil {
		if err := c.Firewall.Validate(); err != nil {
			return fmt.Errorf("firewall: %w", err)
		}
	}
	return nil
}
