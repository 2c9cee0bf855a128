package repository

import (
	"context"
	"database/sql"
)

// ProfileRepo manages the profile stub that every account owns.
type ProfileRepo struct{ DB *sql.DB }

func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{DB: db} }

// EnsureProfile creates the profile row for userID if it does not exist.
// An existing profile keeps its display name.
func (r *ProfileRepo) EnsureProfile(ctx context.Context, userID, displayName string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO profiles (user_id, display_name) VALUES (?,?)",
		userID, displayName)
	return err
}
