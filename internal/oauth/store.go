package oauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	"go.withmatt.com/mailcode/internal/config"
	"go.withmatt.com/mailcode/internal/log"
)

const (
	keyringService = "go.withmatt.com/mailcode"
	keyringAccount = "gmail-token"
)

// ErrNoToken is returned by a TokenStore that holds no credential.
var ErrNoToken = errors.New("no cached oauth token")

// TokenStore holds at most one credential record.
type TokenStore interface {
	Load() (Credential, error)
	Save(Credential) error
	Delete() error
}

// NewStore returns the store selected by cfg.TokenStore.
func NewStore(cfg config.Config) (TokenStore, error) {
	switch cfg.TokenStore {
	case "", config.TokenStoreFile:
		return &FileStore{Path: cfg.TokenPath}, nil
	case config.TokenStoreKeyring:
		return &KeyringStore{Service: keyringService, Account: keyringAccount}, nil
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}

// FileStore keeps the credential as a JSON file.
type FileStore struct {
	Path string
}

func (s *FileStore) Load() (Credential, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Credential{}, ErrNoToken
		}
		return Credential{}, err
	}
	return decodeCredential(data, s.Path)
}

func (s *FileStore) Save(cred Credential) error {
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	log.Printf("Saving credential file to: %s", s.Path)
	return os.WriteFile(s.Path, data, 0o600)
}

func (s *FileStore) Delete() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// KeyringStore keeps the credential in the OS keyring.
type KeyringStore struct {
	Service string
	Account string
}

func (s *KeyringStore) Load() (Credential, error) {
	value, err := keyring.Get(s.Service, s.Account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Credential{}, ErrNoToken
		}
		return Credential{}, fmt.Errorf("unable to load oauth token from keyring: %w", err)
	}
	return decodeCredential([]byte(value), "keyring")
}

func (s *KeyringStore) Save(cred Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	log.Printf("Saving credential to keyring for: %s", s.Account)
	return keyring.Set(s.Service, s.Account, string(data))
}

func (s *KeyringStore) Delete() error {
	if err := keyring.Delete(s.Service, s.Account); err != nil &&
		!errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("unable to delete token from keyring: %w", err)
	}
	return nil
}

// decodeCredential accepts any well-formed JSON. A document that is valid
// JSON but not a token object yields an empty Credential.
func decodeCredential(data []byte, source string) (Credential, error) {
	if !json.Valid(data) {
		return Credential{}, fmt.Errorf("cached oauth token in %s is not valid JSON", source)
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			log.Printf("cached oauth token in %s has unexpected shape: %v", source, err)
			return Credential{}, nil
		}
		return Credential{}, err
	}
	return cred, nil
}
