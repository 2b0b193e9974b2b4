package oauth

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"go.withmatt.com/mailcode/internal/log"
)

// Transport authorizes outgoing requests with Attach, taking the current
// credential from Source on every request.
type Transport struct {
	Source oauth2.TokenSource
	Base   http.RoundTripper
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Source == nil {
		closeRequestBody(req)
		return nil, errors.New("oauth: transport has no token source")
	}
	tok, err := t.Source.Token()
	if err != nil {
		closeRequestBody(req)
		return nil, err
	}
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(Attach(FromToken(tok), req))
}

func closeRequestBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}

// baseTransport honors an *http.Client stored in ctx under oauth2.HTTPClient.
func baseTransport(ctx context.Context) http.RoundTripper {
	if c, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok && c != nil && c.Transport != nil {
		return c.Transport
	}
	return http.DefaultTransport
}

// persistingSource saves every token that differs from the last one seen.
type persistingSource struct {
	src   oauth2.TokenSource
	store TokenStore

	mu   sync.Mutex
	last Credential
}

func newPersistingSource(src oauth2.TokenSource, store TokenStore, initial Credential) *persistingSource {
	return &persistingSource{src: src, store: store, last: initial}
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	cred := FromToken(tok)
	if cred.AccessToken != p.last.AccessToken || cred.RefreshToken != p.last.RefreshToken {
		if err := p.store.Save(cred); err != nil {
			log.Printf("Unable to cache refreshed oauth token: %v", err)
		}
		p.last = cred
	}
	return tok, nil
}
