package cmd

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.withmatt.com/mailcode/internal/gmail"
	"go.withmatt.com/mailcode/internal/oauth"
)

type fixture struct {
	dir        string
	configPath string
	tokenPath  string

	mu      sync.Mutex
	queries []string
	maxes   []string
	auth    []string
}

func (f *fixture) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

// newFixture writes a secrets file, a cached token and a config file into a
// temp dir, and points the Gmail endpoint at a fake server holding messages.
func newFixture(t *testing.T, messages map[string]string, extraConfig string) *fixture {
	t.Helper()
	for _, name := range []string{"QUERY", "MAX_RESULTS", "CODE_PATTERN"} {
		t.Setenv(name, "")
	}

	f := &fixture{dir: t.TempDir()}
	secretsPath := filepath.Join(f.dir, "client_secret.json")
	require.NoError(t, os.WriteFile(secretsPath, []byte(`{"installed":{
		"client_id":"cid.apps.googleusercontent.com",
		"client_secret":"shh",
		"redirect_uris":["http://localhost"],
		"auth_uri":"https://accounts.google.com/o/oauth2/auth",
		"token_uri":"https://oauth2.googleapis.com/token"}}`), 0o600))

	f.tokenPath = filepath.Join(f.dir, ".credentials", "gmail-token.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(f.tokenPath), 0o700))
	require.NoError(t, os.WriteFile(f.tokenPath, []byte(`{"access_token":"cached-token","token_type":"Bearer"}`), 0o600))

	f.configPath = filepath.Join(f.dir, "config.toml")
	conf := fmt.Sprintf("secrets_path = %q\ntoken_path = %q\n%s", secretsPath, f.tokenPath, extraConfig)
	require.NoError(t, os.WriteFile(f.configPath, []byte(conf), 0o600))

	ids := make([]string, 0, len(messages))
	for id := range messages {
		ids = append(ids, id)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")

		const prefix = "/gmail/v1/users/me/messages"
		switch {
		case r.URL.Path == prefix:
			f.mu.Lock()
			f.queries = append(f.queries, r.URL.Query().Get("q"))
			f.maxes = append(f.maxes, r.URL.Query().Get("maxResults"))
			f.mu.Unlock()
			refs := make([]map[string]string, 0, len(ids))
			for _, id := range ids {
				refs = append(refs, map[string]string{"id": id, "threadId": id})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"messages": refs})
		case strings.HasPrefix(r.URL.Path, prefix+"/"):
			id := strings.TrimPrefix(r.URL.Path, prefix+"/")
			body, ok := messages[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":      id,
				"snippet": body,
				"payload": map[string]any{
					"mimeType": "text/plain",
					"headers":  []map[string]string{{"name": "Subject", "value": "Verify"}},
					"body":     map[string]string{"data": base64.URLEncoding.EncodeToString([]byte(body))},
				},
			})
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"backend error"}}`))
		}
	}))
	t.Cleanup(srv.Close)

	prev := gmailEndpoint
	gmailEndpoint = srv.URL + "/"
	t.Cleanup(func() { gmailEndpoint = prev })
	return f
}

func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestFetchEndToEnd(t *testing.T) {
	f := newFixture(t, map[string]string{"m1": "Code: 87654321"}, "")

	out, err := runCLI(t, "--config", f.configPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Verify")
	assert.Contains(t, out, "87654321")
	assert.Contains(t, out, "([0-9]{8})")
	assert.Equal(t, []string{"10"}, f.maxes)
	assert.NotEmpty(t, f.auth)
	for _, header := range f.auth {
		assert.Equal(t, "Bearer cached-token", header)
	}
}

func TestFetchCodeFormat(t *testing.T) {
	f := newFixture(t, map[string]string{"m1": "Code: 87654321"}, "")

	out, err := runCLI(t, "--config", f.configPath, "--format", "code")
	require.NoError(t, err)
	assert.Equal(t, "87654321\n", out)
}

func TestFetchJSONFormat(t *testing.T) {
	f := newFixture(t, map[string]string{"m1": "Your code is 1234"}, "format = \"json\"\n")

	out, err := runCLI(t, "--config", f.configPath, "-p", `code is ([0-9]{4})`)
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "m1", decoded[0]["id"])
	assert.Equal(t, "Verify", decoded[0]["subject"])
	assert.Equal(t, "1234", decoded[0]["code"])
}

func TestFetchNoMessages(t *testing.T) {
	f := newFixture(t, nil, "")

	out, err := runCLI(t, "--config", f.configPath)
	require.NoError(t, err)
	assert.Equal(t, "No messages found.\n", out)
}

func TestFetchPrecedence(t *testing.T) {
	f := newFixture(t, nil, "query = \"from:config\"\nmax_results = 3\n")

	_, err := runCLI(t, "--config", f.configPath)
	require.NoError(t, err)
	assert.Equal(t, "from:config", f.lastQuery())
	assert.Equal(t, "3", f.maxes[len(f.maxes)-1])

	t.Setenv("QUERY", "from:env")
	t.Setenv("MAX_RESULTS", "4")
	_, err = runCLI(t, "--config", f.configPath)
	require.NoError(t, err)
	assert.Equal(t, "from:env", f.lastQuery())
	assert.Equal(t, "4", f.maxes[len(f.maxes)-1])

	_, err = runCLI(t, "--config", f.configPath, "-q", "from:flag", "-n", "5")
	require.NoError(t, err)
	assert.Equal(t, "from:flag", f.lastQuery())
	assert.Equal(t, "5", f.maxes[len(f.maxes)-1])
}

func TestFetchInvalidMaxResults(t *testing.T) {
	f := newFixture(t, nil, "")

	t.Setenv("MAX_RESULTS", "zero")
	_, err := runCLI(t, "--config", f.configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_RESULTS")
	assert.Empty(t, f.queries)

	t.Setenv("MAX_RESULTS", "")
	_, err = runCLI(t, "--config", f.configPath, "-n", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_results")
}

func TestFetchInvalidPattern(t *testing.T) {
	f := newFixture(t, nil, "")

	_, err := runCLI(t, "--config", f.configPath, "-p", "([0-9]")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid code pattern")
	assert.Empty(t, f.queries)
}

func TestFetchMissingSecrets(t *testing.T) {
	f := newFixture(t, nil, "")

	_, err := runCLI(t, "--config", f.configPath, "--secrets", filepath.Join(f.dir, "nope.json"))
	require.ErrorIs(t, err, oauth.ErrConfigMissing)
	assert.Empty(t, f.queries)
}

func TestFetchReadsXDGConfigWithoutFlag(t *testing.T) {
	f := newFixture(t, nil, "query = \"from:xdg\"\n")

	home := t.TempDir()
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", home)
	xdg.Reload()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "mailcode"), 0o700))
	require.NoError(t, os.Rename(f.configPath, filepath.Join(home, "mailcode", "config.toml")))

	out, err := runCLI(t)
	require.NoError(t, err)
	assert.Equal(t, "No messages found.\n", out)
	assert.Equal(t, "from:xdg", f.lastQuery())

	out, err = runCLI(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "mailcode", "config.toml")+"\n", out)
}

func TestFetchMissingConfigFile(t *testing.T) {
	f := newFixture(t, nil, "")

	_, err := runCLI(t, "--config", filepath.Join(f.dir, "missing.toml"))
	require.Error(t, err)
	assert.Empty(t, f.queries)
}

func TestFetchMessageNotFoundAborts(t *testing.T) {
	f := newFixture(t, nil, "")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/gmail/v1/users/me/messages" {
			_, _ = w.Write([]byte(`{"messages":[{"id":"m1"},{"id":"gone"}]}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found."}}`))
	}))
	t.Cleanup(srv.Close)
	gmailEndpoint = srv.URL + "/"

	out, err := runCLI(t, "--config", f.configPath)
	require.Error(t, err)
	assert.Empty(t, out)

	var te *gmail.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusNotFound, te.Status)

	var diag bytes.Buffer
	printError(&diag, err)
	assert.Contains(t, diag.String(), "mailcode: unable to fetch messages:")
	assert.Contains(t, diag.String(), "status: 404")
	assert.Contains(t, diag.String(), "Requested entity was not found.")
	assert.Contains(t, diag.String(), "cause:")
}

func TestPrintErrorPlain(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, fmt.Errorf("unable to load config: %w", os.ErrNotExist))
	assert.Equal(t, "mailcode: unable to load config: file does not exist\n", buf.String())
}

func TestLogoutRemovesToken(t *testing.T) {
	f := newFixture(t, nil, "")

	out, err := runCLI(t, "--config", f.configPath, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed cached token")
	_, statErr := os.Stat(f.tokenPath)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))

	_, err = runCLI(t, "--config", f.configPath, "logout")
	require.NoError(t, err)
}

func TestAuthUsesCachedToken(t *testing.T) {
	f := newFixture(t, nil, "")

	out, err := runCLI(t, "--config", f.configPath, "auth")
	require.NoError(t, err)
	assert.Contains(t, out, "Authorized.")
	assert.Contains(t, out, f.tokenPath)
}

func TestConfigCommand(t *testing.T) {
	f := newFixture(t, nil, "max_results = 7\n")
	t.Setenv("CODE_PATTERN", `([A-Z]{6})`)

	out, err := runCLI(t, "--config", f.configPath, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "max_results = 7")
	assert.Contains(t, out, "[A-Z]{6}")
	assert.Contains(t, out, "token_store")

	out, err = runCLI(t, "--config", f.configPath, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, f.configPath+"\n", out)
}
