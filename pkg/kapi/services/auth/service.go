// Package auth registers users, checks passwords and issues access tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/kino/pkg/db/models"
	"github.com/quatton/kino/pkg/kauth"
	"github.com/quatton/kino/pkg/klog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

type Service struct {
	users  UserRepo
	issuer *kauth.Issuer
	log    *klog.Logger
	cost   int
	now    func() time.Time
}

type Option func(*Service)

// WithBcryptCost lowers the hashing cost, mainly for tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.cost = cost
	}
}

func WithLogger(l *klog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

func NewService(users UserRepo, issuer *kauth.Issuer, opts ...Option) *Service {
	s := &Service{
		users:  users,
		issuer: issuer,
		log:    klog.Discard(),
		cost:   bcrypt.DefaultCost,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session is a freshly issued token and the user it belongs to.
type Session struct {
	Token string
	User  *models.User
}

func (s *Service) Register(ctx context.Context, email, username, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if len(password) < 8 || len(password) > 72 {
		return nil, fmt.Errorf("%w: password must be 8 to 72 bytes", ErrInvalidInput)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &models.User{
		Email:            email,
		Username:         username,
		PasswordHash:     string(hash),
		Tier:             models.TierFree,
		CreditsRemaining: models.DefaultCredits,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("user registered", "user_id", u.ID, "email", u.Email)
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.ByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := s.users.TouchLogin(ctx, u.ID, s.now()); err != nil {
		s.log.Warn("failed to record login", "user_id", u.ID, "error", err)
	}
	return s.session(u)
}

func (s *Service) session(u *models.User) (*Session, error) {
	token, err := s.issuer.Issue(kauth.UserClaims{
		ID:       u.ID.String(),
		Email:    u.Email,
		Username: u.Username,
		Tier:     u.Tier,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &Session{Token: token, User: u}, nil
}

// Authenticate verifies a bearer token.
func (s *Service) Authenticate(token string) (*Principal, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", kauth.ErrInvalidToken)
	}
	return &Principal{ID: id, Email: claims.Email, Username: claims.Username, Tier: claims.Tier}, nil
}

func (s *Service) User(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.users.ByID(ctx, id)
}

// ConsumeCredit charges one render to userID.
func (s *Service) ConsumeCredit(ctx context.Context, userID string) error {
	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrUserNotFound
	}
	_, err = s.users.ConsumeCredit(ctx, id)
	return err
}
