package oauth

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Credential is an immutable snapshot of an OAuth token. A refreshed token is
// a new Credential; nothing updates one in place.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

// credentialJSON also accepts the googleapis Node client shape, which stores
// the expiry as epoch milliseconds.
type credentialJSON struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	ExpiryDate   int64     `json:"expiry_date"`
}

func (c *Credential) UnmarshalJSON(data []byte) error {
	var raw credentialJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Credential{
		AccessToken:  raw.AccessToken,
		TokenType:    raw.TokenType,
		RefreshToken: raw.RefreshToken,
		Expiry:       raw.Expiry,
	}
	if c.Expiry.IsZero() && raw.ExpiryDate > 0 {
		c.Expiry = time.UnixMilli(raw.ExpiryDate).UTC()
	}
	return nil
}

// FromToken copies an oauth2 token into a Credential.
func FromToken(tok *oauth2.Token) Credential {
	if tok == nil {
		return Credential{}
	}
	return Credential{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}

// Token returns a fresh oauth2 token carrying the credential's fields.
func (c Credential) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// Usable reports whether the credential carries an access or refresh token.
func (c Credential) Usable() bool {
	return c.AccessToken != "" || c.RefreshToken != ""
}

// Attach returns a copy of req authorized with cred. req is not modified.
func Attach(cred Credential, req *http.Request) *http.Request {
	out := req.Clone(req.Context())
	cred.Token().SetAuthHeader(out)
	return out
}
