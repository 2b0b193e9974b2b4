package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"go.withmatt.com/mailcode/internal/config"
	"go.withmatt.com/mailcode/internal/log"
)

// ConsentProvider runs an interactive authorization and returns the issued token.
type ConsentProvider interface {
	Consent(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// RefreshFunc forces a token fetch for a token returned by consent.
type RefreshFunc func(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) (*oauth2.Token, error)

// Manager resolves a usable credential from the store or, when none is
// cached, from an interactive consent.
type Manager struct {
	SecretsPath string
	Scopes      []string
	Store       TokenStore
	Consent     ConsentProvider
	Refresh     RefreshFunc

	client *ClientConfig
}

// NewManager builds a Manager from cfg using the loopback consent provider.
func NewManager(cfg config.Config) (*Manager, error) {
	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	return &Manager{
		SecretsPath: cfg.SecretsPath,
		Scopes:      DefaultScopes,
		Store:       store,
		Consent:     NewLoopback(cfg.Auth.Timeout.Std()),
	}, nil
}

// Client loads the client secrets, once.
func (m *Manager) Client() (*ClientConfig, error) {
	if m.client != nil {
		return m.client, nil
	}
	client, err := LoadClient(m.SecretsPath, m.Scopes...)
	if err != nil {
		return nil, err
	}
	m.client = client
	return client, nil
}

// Obtain returns the cached credential when one exists, and otherwise runs
// the consent flow and caches its result.
func (m *Manager) Obtain(ctx context.Context) (Credential, error) {
	client, err := m.Client()
	if err != nil {
		return Credential{}, err
	}

	cred, err := m.Store.Load()
	switch {
	case err == nil:
		log.Printf("using cached oauth token")
		if !cred.Usable() {
			return Credential{}, fmt.Errorf("%w: cached token has no access or refresh token", ErrAuthFailed)
		}
		return cred, nil
	case errors.Is(err, ErrNoToken):
	default:
		return Credential{}, err
	}

	if m.Consent == nil {
		return Credential{}, fmt.Errorf("%w: no consent provider configured", ErrAuthFailed)
	}
	log.Printf("No cached token, starting authentication...")
	oauthCfg := client.OAuth2()
	tok, err := m.Consent.Consent(ctx, oauthCfg)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	cred = FromToken(tok)
	if !cred.Usable() {
		refresh := m.Refresh
		if refresh == nil {
			refresh = refreshToken
		}
		refreshed, err := refresh(ctx, oauthCfg, tok)
		if err != nil {
			log.Printf("forced token fetch failed: %v", err)
		} else {
			cred = FromToken(refreshed)
		}
	}
	if !cred.Usable() {
		return Credential{}, fmt.Errorf("%w after interactive auth", ErrAuthFailed)
	}

	if err := m.Store.Save(cred); err != nil {
		return Credential{}, fmt.Errorf("unable to cache oauth token: %w", err)
	}
	return cred, nil
}

// Logout removes the cached credential.
func (m *Manager) Logout() error {
	return m.Store.Delete()
}

// HTTPClient returns a client that authorizes each request with the current
// credential, refreshing and re-caching it when it expires.
func (m *Manager) HTTPClient(ctx context.Context, cred Credential) (*http.Client, error) {
	client, err := m.Client()
	if err != nil {
		return nil, err
	}
	source := oauth2.ReuseTokenSource(cred.Token(), client.OAuth2().TokenSource(ctx, cred.Token()))
	return &http.Client{
		Transport: &Transport{
			Source: newPersistingSource(source, m.Store, cred),
			Base:   baseTransport(ctx),
		},
	}, nil
}

func refreshToken(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok == nil {
		tok = &oauth2.Token{}
	}
	return cfg.TokenSource(ctx, tok).Token()
}
