package ksdk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quatton/kino/pkg/ksdk/kerr"
)

func testConfig(baseURL string) *Config {
	return &Config{
		BaseURL:         baseURL,
		PollInterval:    testInterval,
		RequestTimeout:  time.Second,
		DownloadTimeout: time.Second,
		OutputFormat:    DefaultOutputFormat,
		Quality:         DefaultQuality,
	}
}

func TestSdkLoginStoresCredential(t *testing.T) {
	token := string(signedToken(t, time.Now().Add(time.Hour)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			json.NewEncoder(w).Encode(AuthResponse{AccessToken: token, TokenType: "bearer", User: User{ID: "u1", Email: "a@b.c"}})
		case "/auth/me":
			if r.Header.Get("Authorization") != "Bearer "+token {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(User{ID: "u1", Email: "a@b.c", Tier: "free"})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	store := NewMemoryStore("")
	s, err := NewSdk(testConfig(srv.URL), WithSession(store))
	if err != nil {
		t.Fatalf("NewSdk: %v", err)
	}
	defer s.Close()

	if _, err := s.Me(context.Background()); !kerr.IsAuthentication(err) {
		t.Fatalf("expected authentication error before login, got %v", err)
	}
	if _, err := s.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	u, err := s.Me(context.Background())
	if err != nil || u.Tier != "free" {
		t.Fatalf("Me: %+v %v", u, err)
	}
}

func TestSdkClearsCredentialOn401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"title":"Unauthorized","status":401,"detail":"token revoked"}`)
	}))
	defer srv.Close()

	store := NewMemoryStore(signedToken(t, time.Now().Add(time.Hour)))
	s, err := NewSdk(testConfig(srv.URL), WithSession(store))
	if err != nil {
		t.Fatalf("NewSdk: %v", err)
	}
	defer s.Close()

	_, err = s.Submit(context.Background(), testRequest())
	if !kerr.IsAuthentication(err) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if _, err := store.Load(); err == nil {
		t.Fatal("credential should be cleared after a 401")
	}
	if s.Jobs.Job() != nil {
		t.Fatal("no job should be tracked after a rejected submission")
	}
}
