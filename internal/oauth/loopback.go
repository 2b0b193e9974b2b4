package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/oauth2"
	"golang.org/x/term"

	"go.withmatt.com/mailcode/internal/config"
	"go.withmatt.com/mailcode/internal/log"
	"go.withmatt.com/mailcode/internal/tui"
)

const callbackPath = "/oauth2callback"

// Loopback authorizes through the system browser and a one-shot HTTP
// listener on 127.0.0.1.
type Loopback struct {
	Timeout time.Duration
	// OpenURL opens the consent page. Defaults to browser.OpenURL.
	OpenURL func(url string) error
	// Wait is started once the consent page is open and stopped when the
	// callback arrives. Defaults to a spinner when stderr is a terminal.
	Wait func(ctx context.Context) (stop func())
}

func NewLoopback(timeout time.Duration) *Loopback {
	return &Loopback{Timeout: timeout}
}

type callbackResult struct {
	code string
	err  error
}

func (l *Loopback) Consent(ctx context.Context, oauthCfg *oauth2.Config) (*oauth2.Token, error) {
	if oauthCfg == nil {
		return nil, errors.New("missing oauth config")
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("unable to start oauth callback server: %w", err)
	}
	defer listener.Close()

	cfg := *oauthCfg
	cfg.RedirectURL = fmt.Sprintf("http://%s%s", listener.Addr().String(), callbackPath)

	state, err := randomState()
	if err != nil {
		return nil, err
	}

	pkceVerifier, pkceChallenge, err := generatePKCE()
	if err != nil {
		return nil, err
	}

	authURL := cfg.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("code_challenge", pkceChallenge),
	)

	results := make(chan callbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, callbackHandler(state, results))

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case results <- callbackResult{err: err}:
			default:
			}
		}
	}()
	defer func() { _ = server.Shutdown(context.Background()) }()

	log.Noticef("Authentication required for Gmail (read-only access)")
	if err := l.openURL(authURL); err != nil {
		log.Noticef("Open this URL to authorize: %v", authURL)
	} else {
		log.Noticef("If your browser does not open, visit: %v", authURL)
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = config.DefaultAuthTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stop := l.startWait(waitCtx)
	var res callbackResult
	select {
	case res = <-results:
	case <-waitCtx.Done():
		res.err = errors.New("timed out waiting for oauth callback")
		if ctx.Err() != nil {
			res.err = ctx.Err()
		}
	}
	stop()

	if res.err != nil {
		return nil, res.err
	}
	tok, err := cfg.Exchange(
		ctx,
		res.code,
		oauth2.SetAuthURLParam("code_verifier", pkceVerifier),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token: %w", err)
	}
	return tok, nil
}

func (l *Loopback) openURL(u string) error {
	if l.OpenURL != nil {
		return l.OpenURL(u)
	}
	return browser.OpenURL(u)
}

func (l *Loopback) startWait(ctx context.Context) func() {
	if l.Wait != nil {
		return l.Wait(ctx)
	}
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return func() {}
	}
	return tui.StartWait(ctx, os.Stderr, "Waiting for authorization in your browser")
}

func callbackHandler(state string, results chan<- callbackResult) http.HandlerFunc {
	send := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != state {
			http.Error(w, "Invalid state parameter.", http.StatusBadRequest)
			send(callbackResult{err: errors.New("oauth state mismatch")})
			return
		}
		if errText := query.Get("error"); errText != "" {
			http.Error(w, errText, http.StatusBadRequest)
			send(callbackResult{err: fmt.Errorf("oauth error: %s", errText)})
			return
		}
		code := query.Get("code")
		if code == "" {
			http.Error(w, "Missing code parameter.", http.StatusBadRequest)
			send(callbackResult{err: errors.New("oauth callback missing code")})
			return
		}
		_, _ = w.Write([]byte("mailcode authentication complete. You can close this window."))
		send(callbackResult{code: code})
	}
}

func generatePKCE() (string, string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("unable to generate PKCE verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])
	return verifier, challenge, nil
}

func randomState() (string, error) {
	const size = 16
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("unable to generate oauth state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
