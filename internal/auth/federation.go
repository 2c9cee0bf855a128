package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/cms-backend/internal/model"
	"github.com/iliyamo/cms-backend/internal/repository"
)

// Assertion is a verified identity claim from the identity provider.
type Assertion struct {
	Email         string
	EmailVerified bool
	DisplayName   string
}

// LoginGoogle verifies a Google ID token, links it to a local account and
// starts a session exactly like a password login would.
func (s *Service) LoginGoogle(ctx context.Context, idToken string) (Session, error) {
	if s.identity == nil || idToken == "" {
		return Session{}, ErrInvalidGoogleToken
	}
	a, err := s.identity.Verify(ctx, idToken)
	if err != nil {
		s.log.Info("google token rejected", "err", err)
		return Session{}, ErrInvalidGoogleToken
	}
	user, err := s.LinkOrCreate(ctx, a)
	if err != nil {
		return Session{}, err
	}
	if !user.IsActive {
		return Session{}, ErrInvalidUser
	}
	return s.startSession(ctx, user, "google")
}

// LinkOrCreate finds the local account for a verified assertion, creating
// it on first sight.  Calling it twice for the same email never creates
// two accounts.
func (s *Service) LinkOrCreate(ctx context.Context, a Assertion) (*model.User, error) {
	email := normalizeEmail(a.Email)
	if email == "" {
		return nil, ErrGoogleEmailRequired
	}
	displayName := a.DisplayName
	if displayName == "" {
		displayName = displayNameFromEmail(email)
	}

	user, err := s.users.FindUserByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		created, err := s.createFederated(ctx, email, a.EmailVerified, displayName)
		if !errors.Is(err, repository.ErrEmailExists) {
			return created, err
		}
		// Lost a race with a concurrent first sign in; link to the winner.
		if user, err = s.users.FindUserByEmail(ctx, email); err != nil {
			return nil, fmt.Errorf("find user: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("find user: %w", err)
	}
	return s.linkExisting(ctx, user, a.EmailVerified, displayName)
}

func (s *Service) createFederated(ctx context.Context, email string, verified bool, displayName string) (*model.User, error) {
	hash, err := UnownedPasswordHash()
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, model.NewUser{
		Email:         email,
		PasswordHash:  hash,
		EmailVerified: verified,
	})
	if errors.Is(err, repository.ErrEmailExists) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if err := s.provision(ctx, user, displayName); err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.users.UpdateUser(ctx, user.ID, model.UserPatch{LastSignInAt: &now}); err != nil {
		return nil, fmt.Errorf("stamp sign in: %w", err)
	}
	user.LastSignInAt = &now
	return user, nil
}

// linkExisting upgrades email_verified (never downgrades), stamps the
// sign in and makes sure the profile stub exists.
func (s *Service) linkExisting(ctx context.Context, user *model.User, verified bool, displayName string) (*model.User, error) {
	now := s.now()
	patch := model.UserPatch{LastSignInAt: &now}
	if verified && !user.EmailVerified {
		patch.EmailVerified = &verified
	}
	if err := s.users.UpdateUser(ctx, user.ID, patch); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if patch.EmailVerified != nil {
		user.EmailVerified = true
	}
	user.LastSignInAt = &now
	if err := s.profiles.EnsureProfile(ctx, user.ID, displayName); err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return user, nil
}
