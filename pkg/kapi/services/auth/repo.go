package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quatton/kino/pkg/db/models"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrNoCredits    = errors.New("no credits remaining")
)

// UserRepo persists users. Email lookups are case-insensitive.
type UserRepo interface {
	Create(ctx context.Context, u *models.User) error
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	// ConsumeCredit takes one render credit and counts the animation.
	ConsumeCredit(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// BunUserRepo stores users in Postgres.
type BunUserRepo struct {
	db *bun.DB
}

func NewBunUserRepo(db *bun.DB) *BunUserRepo {
	return &BunUserRepo{db: db}
}

func (r *BunUserRepo) Create(ctx context.Context, u *models.User) error {
	_, err := r.db.NewInsert().Model(u).Returning("*").Exec(ctx)
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
		return ErrUserExists
	}
	return err
}

func (r *BunUserRepo) ByEmail(ctx context.Context, email string) (*models.User, error) {
	u := new(models.User)
	err := r.db.NewSelect().Model(u).Where("lower(email) = lower(?)", email).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (r *BunUserRepo) ByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u := new(models.User)
	err := r.db.NewSelect().Model(u).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return u, err
}

func (r *BunUserRepo) TouchLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("last_login_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (r *BunUserRepo) ConsumeCredit(ctx context.Context, id uuid.UUID) (*models.User, error) {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("credits_remaining = credits_remaining - 1").
		Set("credits_used = credits_used + 1").
		Set("animations_created = animations_created + 1").
		Set("updated_at = current_timestamp").
		Where("id = ?", id).
		Where("credits_remaining > 0").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.ByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrNoCredits
	}
	return r.ByID(ctx, id)
}

// MemoryUserRepo keeps users in process memory for development and tests.
type MemoryUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
	now   func() time.Time
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: make(map[uuid.UUID]*models.User), now: time.Now}
}

func (r *MemoryUserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrUserExists
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := r.now()
	u.CreatedAt, u.UpdatedAt = now, now
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *MemoryUserRepo) ByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryUserRepo) ByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepo) TouchLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.LastLoginAt = at
	}
	return nil
}

func (r *MemoryUserRepo) ConsumeCredit(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	if u.CreditsRemaining <= 0 {
		return nil, ErrNoCredits
	}
	u.CreditsRemaining--
	u.CreditsUsed++
	u.AnimationsCreated++
	u.UpdatedAt = r.now()
	cp := *u
	return &cp, nil
}

var (
	_ UserRepo = (*BunUserRepo)(nil)
	_ UserRepo = (*MemoryUserRepo)(nil)
)
