// Package authtest provides an in-memory implementation of the session
// service collaborators for tests.  Its refresh-token rotation follows the
// same conditional-update rule as the MySQL store.
package authtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cms-backend/internal/model"
	"github.com/iliyamo/cms-backend/internal/repository"
)

// Store implements auth.UserDirectory, auth.RoleStore, auth.ProfileStore
// and auth.TokenStore.
type Store struct {
	mu       sync.Mutex
	users    map[string]*model.User
	roles    map[string][]model.Role
	profiles map[string]string
	tokens   map[string]*model.RefreshToken

	// InsertErr, when set, is returned by Insert without storing anything.
	InsertErr error
}

func NewStore() *Store {
	return &Store{
		users:    map[string]*model.User{},
		roles:    map[string][]model.Role{},
		profiles: map[string]string{},
		tokens:   map[string]*model.RefreshToken{},
	}
}

// AddUser seeds an active user with the given password hash and roles.
func (s *Store) AddUser(email, passwordHash string, roles ...model.Role) *model.User {
	u, _ := s.CreateUser(context.Background(), model.NewUser{Email: email, PasswordHash: passwordHash})
	for _, r := range roles {
		_ = s.AssignRole(context.Background(), u.ID, r)
	}
	return u
}

// SetActive flips the is_active flag of a user.
func (s *Store) SetActive(id string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsActive = active
	}
}

// DeleteUser removes a user, leaving its tokens behind.
func (s *Store) DeleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

// UserCount returns how many users exist.
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// Profile returns the display name of a user's profile stub.
func (s *Store) Profile(userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	name, ok := s.profiles[userID]
	return name, ok
}

// Token returns a copy of the stored refresh token row.
func (s *Store) Token(id string) (model.RefreshToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return model.RefreshToken{}, false
	}
	return *copyToken(t), true
}

// SetExpiry overwrites the expires_at of a stored token.
func (s *Store) SetExpiry(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[id]; ok {
		t.ExpiresAt = at
	}
}

func (s *Store) CreateUser(_ context.Context, nu model.NewUser) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	for _, u := range s.users {
		if u.Email == email {
			return nil, repository.ErrEmailExists
		}
	}
	now := time.Now().UTC()
	u := &model.User{
		ID:            uuid.NewString(),
		Email:         email,
		IsActive:      true,
		EmailVerified: nu.EmailVerified,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if nu.PasswordHash != "" {
		h := nu.PasswordHash
		u.PasswordHash = &h
	}
	s.users[u.ID] = u
	return copyUser(u), nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) FindUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) UpdateUser(_ context.Context, id string, patch model.UserPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	if patch.EmailVerified != nil {
		u.EmailVerified = *patch.EmailVerified
	}
	if patch.LastSignInAt != nil {
		at := *patch.LastSignInAt
		u.LastSignInAt = &at
	}
	return nil
}

var roleRank = map[model.Role]int{model.RoleAdmin: 0, model.RoleModerator: 1, model.RoleUser: 2}

func (s *Store) GetPrimaryRole(_ context.Context, userID string) (model.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	best := model.RoleUser
	for _, r := range s.roles[userID] {
		if roleRank[r] < roleRank[best] {
			best = r
		}
	}
	return best, nil
}

func (s *Store) AssignRole(_ context.Context, userID string, role model.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles[userID] {
		if r == role {
			return nil
		}
	}
	s.roles[userID] = append(s.roles[userID], role)
	return nil
}

// RemoveRole drops a role assignment.
func (s *Store) RemoveRole(userID string, role model.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.roles[userID][:0]
	for _, r := range s.roles[userID] {
		if r != role {
			kept = append(kept, r)
		}
	}
	s.roles[userID] = kept
}

func (s *Store) EnsureProfile(_ context.Context, userID, displayName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[userID]; !ok {
		s.profiles[userID] = displayName
	}
	return nil
}

func (s *Store) Insert(_ context.Context, t *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertErr != nil {
		return s.InsertErr
	}
	s.tokens[t.ID] = copyToken(t)
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyToken(t), nil
}

func (s *Store) Rotate(_ context.Context, oldID string, at time.Time, next *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.tokens[oldID]
	if !ok || old.RevokedAt != nil {
		return repository.ErrAlreadyRevoked
	}
	revokedAt := at
	nextID := next.ID
	old.RevokedAt = &revokedAt
	old.ReplacedBy = &nextID
	s.tokens[next.ID] = copyToken(next)
	return nil
}

func (s *Store) Revoke(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tokens[id]; ok && t.RevokedAt == nil {
		revokedAt := at
		t.RevokedAt = &revokedAt
	}
	return nil
}

func copyUser(u *model.User) *model.User {
	c := *u
	return &c
}

func copyToken(t *model.RefreshToken) *model.RefreshToken {
	c := *t
	return &c
}
