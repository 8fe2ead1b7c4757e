package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	TierFree = "free"
	TierPro  = "pro"

	DefaultCredits = 10
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"type:uuid,default:gen_random_uuid(),pk"`
	Email        string    `bun:",unique,notnull"`
	Username     string    `bun:",notnull"`
	PasswordHash string    `bun:",notnull"`
	Tier         string    `bun:",notnull,default:'free'"`

	CreditsRemaining  int `bun:",notnull,default:10"`
	CreditsUsed       int `bun:",notnull,default:0"`
	AnimationsCreated int `bun:",notnull,default:0"`

	LastLoginAt time.Time `bun:",nullzero"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}
