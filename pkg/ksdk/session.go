package ksdk

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/quatton/kino/pkg/kauth"
	"github.com/quatton/kino/pkg/ksdk/kerr"
	"github.com/zalando/go-keyring"
)

const keyringService = "kino"

// DefaultTokenSkew treats tokens this close to expiry as already expired.
const DefaultTokenSkew = 30 * time.Second

var ErrNoCredential = errors.New("no credential stored")

// Credential is a bearer access token.
type Credential string

func (c Credential) String() string {
	if c == "" {
		return ""
	}
	return "[redacted]"
}

// Check rejects empty or expired credentials before anything is sent. Tokens
// that are not JWTs are passed through and left for the server to judge.
func (c Credential) Check(skew time.Duration) error {
	if strings.TrimSpace(string(c)) == "" {
		return kerr.New(kerr.CodeAuthentication, ErrNoCredential)
	}
	expired, err := kauth.IsTokenExpired(string(c), skew)
	if err != nil {
		return nil
	}
	if expired {
		return kerr.Newf(kerr.CodeAuthentication, "credential expired, please log in again")
	}
	return nil
}

// SessionStore holds the credential for one render service.
type SessionStore interface {
	Load() (Credential, error)
	Save(Credential) error
	Clear() error
}

// normalizeKey converts a baseURL into a stable key name for keyring storage.
// It trims trailing slashes and lowercases so https://example.com/ and
// https://example.com share an entry.
func normalizeKey(baseURL string) string {
	s := strings.TrimSpace(baseURL)
	s = strings.TrimRight(s, "/")
	s = strings.ToLower(s)
	return s
}

// KeyringStore keeps the credential in the OS keyring under the normalized
// base URL.
type KeyringStore struct {
	key string
}

func NewKeyringStore(baseURL string) *KeyringStore {
	return &KeyringStore{key: normalizeKey(baseURL)}
}

func (s *KeyringStore) Load() (Credential, error) {
	tok, err := keyring.Get(keyringService, s.key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNoCredential
	}
	if err != nil {
		return "", fmt.Errorf("reading keyring: %w", err)
	}
	if tok == "" {
		return "", ErrNoCredential
	}
	return Credential(tok), nil
}

func (s *KeyringStore) Save(c Credential) error {
	return keyring.Set(keyringService, s.key, string(c))
}

func (s *KeyringStore) Clear() error {
	err := keyring.Delete(keyringService, s.key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// MemoryStore is a process-local SessionStore.
type MemoryStore struct {
	mu   sync.Mutex
	cred Credential
}

func NewMemoryStore(c Credential) *MemoryStore {
	return &MemoryStore{cred: c}
}

func (s *MemoryStore) Load() (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred == "" {
		return "", ErrNoCredential
	}
	return s.cred, nil
}

func (s *MemoryStore) Save(c Credential) error {
	s.mu.Lock()
	s.cred = c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear() error {
	return s.Save("")
}
