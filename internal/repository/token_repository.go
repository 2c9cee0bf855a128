package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/cms-backend/internal/model"
)

// TokenRepo persists refresh tokens (hash only) in the refresh_tokens table.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Insert stores a freshly issued refresh token row.
func (r *TokenRepo) Insert(ctx context.Context, t *model.RefreshToken) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (id, user_id, token_hash, issued_at, expires_at) VALUES (?,?,?,?,?)",
		t.ID, t.UserID, t.TokenHash, t.IssuedAt, t.ExpiresAt)
	return err
}

// GetByID loads a token row by jti.
func (r *TokenRepo) GetByID(ctx context.Context, id string) (*model.RefreshToken, error) {
	var (
		t          model.RefreshToken
		revokedAt  sql.NullTime
		replacedBy sql.NullString
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, user_id, token_hash, issued_at, expires_at, revoked_at, replaced_by FROM refresh_tokens WHERE id=? LIMIT 1",
		id).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt, &revokedAt, &replacedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		at := revokedAt.Time
		t.RevokedAt = &at
	}
	if replacedBy.Valid {
		next := replacedBy.String
		t.ReplacedBy = &next
	}
	return &t, nil
}

// Rotate revokes oldID and inserts next as its successor in one
// transaction.  The revoke only applies while revoked_at IS NULL, so of
// two concurrent rotations of the same row exactly one commits; the
// other gets ErrAlreadyRevoked and writes nothing.
func (r *TokenRepo) Rotate(ctx context.Context, oldID string, at time.Time, next *model.RefreshToken) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE id=? AND revoked_at IS NULL",
		at, oldID)
	if err != nil {
		return fmt.Errorf("revoke old token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrAlreadyRevoked
	}

	if _, err = tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (id, user_id, token_hash, issued_at, expires_at) VALUES (?,?,?,?,?)",
		next.ID, next.UserID, next.TokenHash, next.IssuedAt, next.ExpiresAt); err != nil {
		return fmt.Errorf("insert successor: %w", err)
	}

	res, err = tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET replaced_by=? WHERE id=? AND replaced_by IS NULL",
		next.ID, oldID)
	if err != nil {
		return fmt.Errorf("link successor: %w", err)
	}
	if n, err = res.RowsAffected(); err != nil {
		return err
	}
	if n != 1 {
		return ErrConflict
	}
	return tx.Commit()
}

// Revoke marks a token as revoked.  Missing or already revoked rows are
// left untouched and no error is returned.
func (r *TokenRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE id=? AND revoked_at IS NULL",
		at, id)
	return err
}
