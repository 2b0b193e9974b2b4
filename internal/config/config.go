package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

const appConfigDir = "mailcode"

const (
	DefaultSecretsPath = "google_client_secret.json"
	DefaultTokenPath   = ".credentials/gmail-token.json"
	DefaultMaxResults  = 10
	DefaultCodePattern = "([0-9]{8})"
	DefaultAuthTimeout = 2 * time.Minute
)

const (
	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCode = "code"
)

// Environment variables read by ApplyEnv.
const (
	EnvQuery       = "QUERY"
	EnvMaxResults  = "MAX_RESULTS"
	EnvCodePattern = "CODE_PATTERN"
)

// AuthConfig controls the interactive consent flow.
type AuthConfig struct {
	Timeout Duration `toml:"timeout"`
}

// Config represents the mailcode configuration
type Config struct {
	SecretsPath  string     `toml:"secrets_path"`
	TokenPath    string     `toml:"token_path"`
	TokenStore   string     `toml:"token_store"`
	Query        string     `toml:"query"`
	MaxResults   int64      `toml:"max_results"`
	CodePattern  string     `toml:"code_pattern"`
	HTMLFallback bool       `toml:"html_fallback"`
	Format       string     `toml:"format"`
	Auth         AuthConfig `toml:"auth"`
}

// Duration is a time.Duration that reads and writes as a Go duration string.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Default returns a config with every field at its default.
func Default() Config {
	return Config{}.WithDefaults()
}

// WithDefaults fills in zero-valued fields.
func (c Config) WithDefaults() Config {
	if c.SecretsPath == "" {
		c.SecretsPath = DefaultSecretsPath
	}
	if c.TokenPath == "" {
		c.TokenPath = DefaultTokenPath
	}
	if c.TokenStore == "" {
		c.TokenStore = TokenStoreFile
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.CodePattern == "" {
		c.CodePattern = DefaultCodePattern
	}
	if c.Format == "" {
		c.Format = FormatText
	}
	if c.Auth.Timeout <= 0 {
		c.Auth.Timeout = Duration(DefaultAuthTimeout)
	}
	return c
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.MaxResults < 1 {
		return fmt.Errorf("max_results must be at least 1, got %d", c.MaxResults)
	}
	switch c.TokenStore {
	case TokenStoreFile, TokenStoreKeyring:
	default:
		return fmt.Errorf("unknown token_store %q", c.TokenStore)
	}
	switch c.Format {
	case FormatText, FormatJSON, FormatCode:
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	return nil
}

// ApplyEnv overlays QUERY, MAX_RESULTS and CODE_PATTERN from the environment.
// Empty values are ignored.
func (c Config) ApplyEnv(getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvQuery); v != "" {
		c.Query = v
	}
	if v := strings.TrimSpace(getenv(EnvMaxResults)); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c, fmt.Errorf("invalid %s %q: %w", EnvMaxResults, v, err)
		}
		if n < 1 {
			return c, fmt.Errorf("invalid %s %q: must be at least 1", EnvMaxResults, v)
		}
		c.MaxResults = n
	}
	if v := getenv(EnvCodePattern); v != "" {
		c.CodePattern = v
	}
	return c, nil
}

// ConfigPath returns the path to the config file
func ConfigPath() (string, error) {
	return xdg.ConfigFile(filepath.Join(appConfigDir, "config.toml"))
}

// Load reads the config file from its XDG location. A missing file yields
// the defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile reads the config file at path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			return &cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg = cfg.WithDefaults()
	return &cfg, nil
}

// Marshal renders cfg as TOML.
func Marshal(cfg Config) ([]byte, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
