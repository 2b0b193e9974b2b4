package oauth

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

var (
	// ErrConfigMissing means the OAuth client secrets file does not exist.
	ErrConfigMissing = errors.New("oauth client secrets file not found")
	// ErrAuthFailed means neither the cached nor a freshly authorized
	// credential carries a usable token.
	ErrAuthFailed = errors.New("failed to obtain oauth tokens")
)

// DefaultScopes is what mailcode asks for on consent.
var DefaultScopes = []string{gmail.GmailReadonlyScope}

// ClientConfig is the installed-app client loaded from the secrets file.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	oauth *oauth2.Config
}

// OAuth2 returns a copy of the oauth2 config for this client.
func (c *ClientConfig) OAuth2() *oauth2.Config {
	cfg := *c.oauth
	cfg.Scopes = append([]string(nil), c.oauth.Scopes...)
	return &cfg
}

// LoadClient reads a Google client secrets JSON file ("installed" or "web").
func LoadClient(path string, scopes ...string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf(
				"%w at %s: create a Desktop OAuth client in the Google Cloud console and save its JSON there",
				ErrConfigMissing,
				path,
			)
		}
		return nil, err
	}

	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	cfg, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secrets %s: %w", path, err)
	}

	return &ClientConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURL,
		oauth:        cfg,
	}, nil
}
