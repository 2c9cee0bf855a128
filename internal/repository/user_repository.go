package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/iliyamo/cms-backend/internal/model"
)

// UserRepo is the MySQL-backed user directory.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,email,password_hash,is_active,email_verified,created_at,updated_at,last_sign_in_at"

// CreateUser inserts a user with a fresh UUID and returns the stored row.
func (r *UserRepo) CreateUser(ctx context.Context, nu model.NewUser) (*model.User, error) {
	id := uuid.NewString()
	email := normalizeEmail(nu.Email)
	var hash any
	if nu.PasswordHash != "" {
		hash = nu.PasswordHash
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, email_verified) VALUES (?,?,?,?)",
		id, email, hash, nu.EmailVerified)
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	return r.FindUserByID(ctx, id)
}

// FindUserByEmail fetches a user by normalized email.
func (r *UserRepo) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.scanOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email))
}

// FindUserByID fetches a user by id.
func (r *UserRepo) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.scanOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// UpdateUser applies the non-nil fields of patch.  An empty patch is a no-op.
func (r *UserRepo) UpdateUser(ctx context.Context, id string, patch model.UserPatch) error {
	if patch.Empty() {
		return nil
	}
	var (
		sets []string
		args []any
	)
	if patch.EmailVerified != nil {
		sets = append(sets, "email_verified=?")
		args = append(args, *patch.EmailVerified)
	}
	if patch.LastSignInAt != nil {
		sets = append(sets, "last_sign_in_at=?")
		args = append(args, *patch.LastSignInAt)
	}
	args = append(args, id)
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	return err
}

func (r *UserRepo) scanOne(ctx context.Context, query string, arg any) (*model.User, error) {
	var (
		u          model.User
		hash       sql.NullString
		lastSignIn sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &hash, &u.IsActive, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt, &lastSignIn)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if hash.Valid {
		h := hash.String
		u.PasswordHash = &h
	}
	if lastSignIn.Valid {
		t := lastSignIn.Time
		u.LastSignInAt = &t
	}
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// isDuplicate reports a MySQL duplicate-key violation (error 1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
