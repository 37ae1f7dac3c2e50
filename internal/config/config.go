package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultEndpoint is the crates.io sparse index.
const DefaultEndpoint = "https://index.crates.io"

// DefaultConcurrency bounds the number of registry fetches in flight.
const DefaultConcurrency = 4

// Duration decodes TOML strings like "10s" into a time.Duration.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the registry and resolver settings supplied once at
// process start.
type Config struct {
	// Endpoint is the registry index base URL.
	Endpoint string `toml:"endpoint"`
	// Token enables bearer authentication when non-empty.
	Token string `toml:"token"`
	// Concurrency bounds concurrent registry fetches.
	Concurrency int `toml:"concurrency"`
	// FetchTimeout bounds a single registry request. Zero disables the
	// timeout; a timed-out fetch is treated like any other fetch failure.
	FetchTimeout Duration `toml:"fetch-timeout"`
	// Verbose enables lifecycle tracing on stderr.
	Verbose bool `toml:"verbose"`
}

func Default() Config {
	return Config{
		Endpoint:     DefaultEndpoint,
		Concurrency:  DefaultConcurrency,
		FetchTimeout: Duration(10 * time.Second),
	}
}

// Load reads a crates-lsp.toml file over the defaults. A missing file
// is not an error; the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint must not be empty")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	return nil
}
