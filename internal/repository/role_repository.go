package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/cms-backend/internal/model"
)

// RoleRepo reads and writes the user_roles assignment table.  A user may
// hold several roles; the primary one is the most privileged.
type RoleRepo struct{ DB *sql.DB }

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{DB: db} }

// GetPrimaryRole returns the highest ranked role assigned to userID, or
// RoleUser when the user has no assignment.
func (r *RoleRepo) GetPrimaryRole(ctx context.Context, userID string) (model.Role, error) {
	var role string
	err := r.DB.QueryRowContext(ctx,
		"SELECT role FROM user_roles WHERE user_id=? ORDER BY FIELD(role,'admin','moderator','user') LIMIT 1",
		userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RoleUser, nil
	}
	if err != nil {
		return "", err
	}
	if !model.Role(role).Valid() {
		return model.RoleUser, nil
	}
	return model.Role(role), nil
}

// AssignRole grants role to userID.  Assigning an existing role is a no-op.
func (r *RoleRepo) AssignRole(ctx context.Context, userID string, role model.Role) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO user_roles (user_id, role) VALUES (?,?)",
		userID, string(role))
	return err
}
