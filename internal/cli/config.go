package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces environment overrides, e.g. GATEWAYTAIL_SESSION_ID or
// GATEWAYTAIL_FETCH_BASE_URL.
const envPrefix = "GATEWAYTAIL"

// Config describes the session gatewaytail opens and where it fetches
// missing guilds from.
type Config struct {
	URL     string        `yaml:"url"`
	Session SessionConfig `yaml:"session"`
	Fetch   FetchConfig   `yaml:"fetch"`
}

type SessionConfig struct {
	ID           string        `yaml:"id"`
	Capabilities []string      `yaml:"capabilities"`
	ErrorBuffer  int           `yaml:"error_buffer" split_words:"true"`
	Quiescence   time.Duration `yaml:"quiescence"`
	Shards       int           `yaml:"shards"`
	Presences    bool          `yaml:"presences"`
}

type FetchConfig struct {
	BaseURL string        `yaml:"base_url" split_words:"true"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

func defaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			ID:          "gatewaytail",
			ErrorBuffer: 64,
			Quiescence:  2 * time.Second,
			Shards:      1,
			Presences:   true,
		},
		Fetch: FetchConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads the config at path over the defaults, then applies
// GATEWAYTAIL_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.Session.ID == "" {
		errs = append(errs, errors.New("session.id is empty"))
	}
	if c.Session.ErrorBuffer < 1 {
		errs = append(errs, fmt.Errorf("session.error_buffer must be positive, got %d", c.Session.ErrorBuffer))
	}
	if c.Session.Shards < 1 {
		errs = append(errs, fmt.Errorf("session.shards must be positive, got %d", c.Session.Shards))
	}
	if c.Session.Quiescence <= 0 {
		errs = append(errs, fmt.Errorf("session.quiescence must be positive, got %s", c.Session.Quiescence))
	}
	return errors.Join(errs...)
}
