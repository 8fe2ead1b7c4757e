package ksdk

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/quatton/kino/pkg/ksdk/kerr"
	"github.com/zalando/go-keyring"
)

func signedToken(t *testing.T, exp time.Time) Credential {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1", "aud": "kino", "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return Credential(s)
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	a := NewKeyringStore("https://Render.Example.com/")
	b := NewKeyringStore("https://render.example.com")

	if _, err := a.Load(); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	if err := a.Save("tok"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := b.Load()
	if err != nil || got != "tok" {
		t.Fatalf("expected normalized key to share entry, got %q %v", got, err)
	}
	if err := b.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := b.Clear(); err != nil {
		t.Fatalf("second Clear should be a no-op, got %v", err)
	}
	if _, err := a.Load(); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential after clear, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("")
	if _, err := s.Load(); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
	_ = s.Save("abc")
	if c, _ := s.Load(); c != "abc" {
		t.Fatalf("unexpected credential %q", c)
	}
	_ = s.Clear()
	if _, err := s.Load(); !errors.Is(err, ErrNoCredential) {
		t.Fatalf("expected ErrNoCredential, got %v", err)
	}
}

func TestCredentialCheck(t *testing.T) {
	if err := Credential("").Check(0); !kerr.IsAuthentication(err) {
		t.Fatalf("empty credential: expected authentication error, got %v", err)
	}
	if err := signedToken(t, time.Now().Add(-time.Minute)).Check(0); !kerr.IsAuthentication(err) {
		t.Fatalf("expired credential: expected authentication error, got %v", err)
	}
	if err := signedToken(t, time.Now().Add(time.Hour)).Check(DefaultTokenSkew); err != nil {
		t.Fatalf("valid credential: unexpected error %v", err)
	}
	if err := Credential("opaque-api-key").Check(0); err != nil {
		t.Fatalf("opaque credential should be left to the server, got %v", err)
	}
	if s := signedToken(t, time.Now()).String(); s != "[redacted]" {
		t.Fatalf("credential leaked through String(): %q", s)
	}
}
