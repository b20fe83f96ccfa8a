package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// withTx runs fn inside a transaction, rolling back on any error. Multi
// table writes (cascade deletes, bulk enrollment) go through here so a
// partial write never becomes visible.
func withTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tx begin: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx rollback: %v (original err: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx commit: %w", err)
	}
	return nil
}
