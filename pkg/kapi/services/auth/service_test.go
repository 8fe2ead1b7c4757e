package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/quatton/kino/pkg/kauth"
	"golang.org/x/crypto/bcrypt"
)

func newTestService() *Service {
	issuer := kauth.NewIssuer(strings.Repeat("k", 32), 0)
	return NewService(NewMemoryUserRepo(), issuer, WithBcryptCost(bcrypt.MinCost))
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	sess, err := svc.Register(ctx, "ada@example.com", "ada", "correct horse")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if sess.User.Tier != "free" || sess.User.CreditsRemaining != 10 {
		t.Errorf("unexpected new user %+v", sess.User)
	}

	p, err := svc.Authenticate(sess.Token)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if p.ID != sess.User.ID || p.Username != "ada" {
		t.Errorf("unexpected principal %+v", p)
	}

	if _, err := svc.Register(ctx, "ADA@example.com", "ada2", "another pass"); !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists for duplicate email, got %v", err)
	}

	if _, err := svc.Login(ctx, "ada@example.com", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "whatever1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email should look like a bad password, got %v", err)
	}
	if _, err := svc.Login(ctx, "Ada@Example.com", "correct horse"); err != nil {
		t.Errorf("Login failed: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService()
	cases := []struct{ email, username, password string }{
		{"not-an-email", "ada", "password1"},
		{"ada@example.com", "", "password1"},
		{"ada@example.com", "ada", "short"},
		{"ada@example.com", "ada", strings.Repeat("p", 73)},
	}
	for _, c := range cases {
		if _, err := svc.Register(context.Background(), c.email, c.username, c.password); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Register(%q, %q, len %d): expected ErrInvalidInput, got %v", c.email, c.username, len(c.password), err)
		}
	}
}

func TestAuthenticateRejectsForeignToken(t *testing.T) {
	svc := newTestService()
	other := kauth.NewIssuer(strings.Repeat("x", 32), 0)
	token, _ := other.Issue(kauth.UserClaims{ID: "00000000-0000-0000-0000-000000000001"})
	if _, err := svc.Authenticate(token); !errors.Is(err, kauth.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestConsumeCredit(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	sess, _ := svc.Register(ctx, "bo@example.com", "bo", "password1")

	for i := 0; i < 10; i++ {
		if err := svc.ConsumeCredit(ctx, sess.User.ID.String()); err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}
	}
	if err := svc.ConsumeCredit(ctx, sess.User.ID.String()); !errors.Is(err, ErrNoCredits) {
		t.Fatalf("expected ErrNoCredits, got %v", err)
	}
	u, _ := svc.User(ctx, sess.User.ID)
	if u.CreditsRemaining != 0 || u.CreditsUsed != 10 || u.AnimationsCreated != 10 {
		t.Errorf("unexpected counters %+v", u)
	}
}
