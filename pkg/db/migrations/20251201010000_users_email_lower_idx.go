package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Print(" [up migration] ")

		stmts := []string{
			"ALTER TABLE users ADD CONSTRAINT users_credits_nonnegative CHECK (credits_remaining >= 0)",
			"CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (lower(email))",
		}

		for _, stmt := range stmts {
			if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Print(" [down migration] ")

		stmts := []string{
			"DROP INDEX IF EXISTS users_email_lower_idx",
			"ALTER TABLE users DROP CONSTRAINT IF EXISTS users_credits_nonnegative",
		}

		for _, stmt := range stmts {
			if _, err := db.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}

		return nil
	})
}
