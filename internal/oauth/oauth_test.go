package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// writeSecrets writes an installed-app client secrets file pointing at tokenURL.
func writeSecrets(t *testing.T, dir, tokenURL string) string {
	t.Helper()
	if tokenURL == "" {
		tokenURL = "https://oauth2.googleapis.com/token"
	}
	secrets := map[string]any{
		"installed": map[string]any{
			"client_id":     "cid.apps.googleusercontent.com",
			"client_secret": "shh",
			"redirect_uris": []string{"http://localhost"},
			"auth_uri":      "https://accounts.google.com/o/oauth2/auth",
			"token_uri":     tokenURL,
		},
	}
	data, err := json.Marshal(secrets)
	require.NoError(t, err)
	path := filepath.Join(dir, "google_client_secret.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// tokenServer serves an OAuth token endpoint that always issues accessToken.
func tokenServer(t *testing.T, accessToken, refreshToken string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		body := map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		}
		if refreshToken != "" {
			body["refresh_token"] = refreshToken
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

// memStore is an in-memory TokenStore that records calls.
type memStore struct {
	cred    Credential
	has     bool
	loadErr error
	loads   int
	saves   []Credential
	deleted bool
}

func (s *memStore) Load() (Credential, error) {
	s.loads++
	if s.loadErr != nil {
		return Credential{}, s.loadErr
	}
	if !s.has {
		return Credential{}, ErrNoToken
	}
	return s.cred, nil
}

func (s *memStore) Save(cred Credential) error {
	s.saves = append(s.saves, cred)
	s.cred = cred
	s.has = true
	return nil
}

func (s *memStore) Delete() error {
	s.deleted = true
	s.has = false
	return nil
}

// fakeConsent returns a fixed token and counts invocations.
type fakeConsent struct {
	tok   *oauth2.Token
	err   error
	calls int
}

func (f *fakeConsent) Consent(_ context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	f.calls++
	return f.tok, f.err
}

func failRefresh(context.Context, *oauth2.Config, *oauth2.Token) (*oauth2.Token, error) {
	return nil, fmt.Errorf("refresh unavailable")
}
