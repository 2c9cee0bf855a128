// Package auth implements credential verification and the session token
// lifecycle: access/refresh issuance, refresh rotation, revocation and
// linking federated identities to local accounts.
//
// All cross-request coordination goes through the TokenStore.  The
// service holds no per-session state and takes no locks; single use of a
// refresh token is enforced by TokenStore.Rotate.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cms-backend/internal/metrics"
	"github.com/iliyamo/cms-backend/internal/model"
	"github.com/iliyamo/cms-backend/internal/queue"
	"github.com/iliyamo/cms-backend/internal/repository"
	"github.com/iliyamo/cms-backend/internal/utils"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour

	// maxChainWalk bounds the replaced_by walk on reuse.
	maxChainWalk = 1000
)

// UserDirectory looks up and maintains user accounts.
type UserDirectory interface {
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	CreateUser(ctx context.Context, nu model.NewUser) (*model.User, error)
	UpdateUser(ctx context.Context, id string, patch model.UserPatch) error
}

// RoleStore resolves the primary role of a user and records assignments.
type RoleStore interface {
	GetPrimaryRole(ctx context.Context, userID string) (model.Role, error)
	AssignRole(ctx context.Context, userID string, role model.Role) error
}

// ProfileStore creates profile stubs.
type ProfileStore interface {
	EnsureProfile(ctx context.Context, userID, displayName string) error
}

// TokenStore persists refresh tokens.  Rotate must return
// repository.ErrAlreadyRevoked, writing nothing, when oldID was revoked
// concurrently.  Revoke must be a no-op for missing or revoked rows.
type TokenStore interface {
	Insert(ctx context.Context, t *model.RefreshToken) error
	GetByID(ctx context.Context, id string) (*model.RefreshToken, error)
	Rotate(ctx context.Context, oldID string, at time.Time, next *model.RefreshToken) error
	Revoke(ctx context.Context, id string, at time.Time) error
}

// IdentityVerifier checks an identity-provider token and returns the
// assertion it carries.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (Assertion, error)
}

// EventPublisher ships audit events.  Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// Config is built once at process start.
type Config struct {
	Secret             string
	Production         bool
	Bypass             BypassConfig
	AdminEmails        []string
	RevokeChainOnReuse bool
}

// Deps are the collaborators of the service.  Identity, Events, Logger
// and Now are optional.
type Deps struct {
	Users    UserDirectory
	Roles    RoleStore
	Profiles ProfileStore
	Tokens   TokenStore
	Identity IdentityVerifier
	Events   EventPublisher
	Metrics  *metrics.Auth
	Logger   *slog.Logger
	Now      func() time.Time
}

// TokenPair is what a successful sign in or refresh hands to the client.
type TokenPair struct {
	AccessToken    string
	AccessExpires  time.Time
	RefreshToken   string
	RefreshExpires time.Time
}

// Session is the result of a sign in.
type Session struct {
	User   *model.User
	Role   model.Role
	Tokens TokenPair
}

// Service is the session service.  It is safe for concurrent use.
type Service struct {
	cfg      Config
	admins   map[string]bool
	verifier *Verifier
	users    UserDirectory
	roles    RoleStore
	profiles ProfileStore
	tokens   TokenStore
	identity IdentityVerifier
	events   EventPublisher
	metrics  *metrics.Auth
	log      *slog.Logger
	clock    func() time.Time
}

func NewService(cfg Config, deps Deps) *Service {
	admins := make(map[string]bool, len(cfg.AdminEmails))
	for _, e := range cfg.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = true
		}
	}
	s := &Service{
		cfg:      cfg,
		admins:   admins,
		verifier: NewVerifier(cfg.Bypass, cfg.Production),
		users:    deps.Users,
		roles:    deps.Roles,
		profiles: deps.Profiles,
		tokens:   deps.Tokens,
		identity: deps.Identity,
		events:   deps.Events,
		metrics:  deps.Metrics,
		log:      deps.Logger,
		clock:    deps.Now,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// now is truncated to the microsecond precision of DATETIME(6) columns.
func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

// Login verifies an email/password pair and starts a session.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive || user.PasswordHash == nil || !s.verifier.Verify(*user.PasswordHash, password) {
		return Session{}, ErrInvalidCredentials
	}
	now := s.now()
	if err := s.users.UpdateUser(ctx, user.ID, model.UserPatch{LastSignInAt: &now}); err != nil {
		return Session{}, fmt.Errorf("stamp sign in: %w", err)
	}
	return s.startSession(ctx, user, "password")
}

// Signup creates a password account and starts a session.
func (s *Service) Signup(ctx context.Context, email, password string) (Session, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") || password == "" {
		return Session{}, ErrInvalidInput
	}
	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, model.NewUser{Email: email, PasswordHash: hash})
	if errors.Is(err, repository.ErrEmailExists) {
		return Session{}, ErrEmailTaken
	}
	if err != nil {
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	if err := s.provision(ctx, user, displayNameFromEmail(email)); err != nil {
		return Session{}, err
	}
	return s.startSession(ctx, user, "signup")
}

// provision assigns the initial role and creates the profile stub of a
// new account.
func (s *Service) provision(ctx context.Context, user *model.User, displayName string) error {
	if err := s.roles.AssignRole(ctx, user.ID, s.initialRole(user.Email)); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	if err := s.profiles.EnsureProfile(ctx, user.ID, displayName); err != nil {
		return fmt.Errorf("ensure profile: %w", err)
	}
	return nil
}

func (s *Service) initialRole(email string) model.Role {
	if s.admins[normalizeEmail(email)] {
		return model.RoleAdmin
	}
	return model.RoleUser
}

func (s *Service) startSession(ctx context.Context, user *model.User, method string) (Session, error) {
	role, err := s.roles.GetPrimaryRole(ctx, user.ID)
	if err != nil {
		return Session{}, fmt.Errorf("resolve role: %w", err)
	}
	tokens, err := s.Issue(ctx, user, role)
	if err != nil {
		return Session{}, err
	}
	s.emit(queue.AuthEvent{Type: queue.EventSignIn, UserID: user.ID, Method: method})
	return Session{User: user, Role: role, Tokens: tokens}, nil
}

// Issue mints an access token and a refresh token for user.  The
// refresh row is stored before anything is returned, so a client never
// holds a refresh token the server does not know.
func (s *Service) Issue(ctx context.Context, user *model.User, role model.Role) (TokenPair, error) {
	now := s.now()
	access, err := utils.NewAccessToken(s.cfg.Secret, user.ID, user.Email, string(role), now, AccessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	row, refresh, err := newRefreshRow(user.ID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.Insert(ctx, row); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:    access.Token,
		AccessExpires:  access.Exp,
		RefreshToken:   refresh.Raw,
		RefreshExpires: refresh.Exp,
	}, nil
}

func newRefreshRow(userID string, now time.Time) (*model.RefreshToken, utils.RefreshToken, error) {
	refresh, err := utils.NewRefreshToken(uuid.NewString(), now, RefreshTTL)
	if err != nil {
		return nil, utils.RefreshToken{}, fmt.Errorf("generate refresh token: %w", err)
	}
	return &model.RefreshToken{
		ID:        refresh.ID,
		UserID:    userID,
		TokenHash: utils.HashRefreshRaw(refresh.Raw),
		IssuedAt:  now,
		ExpiresAt: refresh.Exp,
	}, refresh, nil
}

// Refresh exchanges a raw refresh token for a new pair and retires the
// presented one.  At most one call per token succeeds.
func (s *Service) Refresh(ctx context.Context, raw string) (TokenPair, error) {
	raw = strings.TrimSpace(raw)
	jti, err := utils.SplitRefresh(raw)
	if err != nil {
		return TokenPair{}, ErrNoRefresh
	}
	row, err := s.tokens.GetByID(ctx, jti)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, ErrInvalidRefresh
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("load refresh token: %w", err)
	}

	now := s.now()
	if row.RevokedAt != nil {
		s.onRevokedPresented(ctx, raw, row, now)
		return TokenPair{}, ErrRefreshRevoked
	}
	if !now.Before(row.ExpiresAt) {
		return TokenPair{}, ErrRefreshExpired
	}
	if !utils.RefreshHashMatches(raw, row.TokenHash) {
		return TokenPair{}, ErrInvalidRefresh
	}

	user, err := s.users.FindUserByID(ctx, row.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return TokenPair{}, ErrInvalidUser
	}
	if err != nil {
		return TokenPair{}, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return TokenPair{}, ErrInvalidUser
	}
	role, err := s.roles.GetPrimaryRole(ctx, user.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("resolve role: %w", err)
	}

	access, err := utils.NewAccessToken(s.cfg.Secret, user.ID, user.Email, string(role), now, AccessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	next, refresh, err := newRefreshRow(user.ID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.tokens.Rotate(ctx, row.ID, now, next); err != nil {
		if errors.Is(err, repository.ErrAlreadyRevoked) {
			return TokenPair{}, ErrRefreshRevoked
		}
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	s.emit(queue.AuthEvent{Type: queue.EventRefresh, UserID: user.ID, TokenID: next.ID})
	return TokenPair{
		AccessToken:    access.Token,
		AccessExpires:  access.Exp,
		RefreshToken:   refresh.Raw,
		RefreshExpires: refresh.Exp,
	}, nil
}

// onRevokedPresented handles an authentic token that was already
// rotated: a replay.  The event is always emitted; descendants are
// revoked only when configured.
func (s *Service) onRevokedPresented(ctx context.Context, raw string, row *model.RefreshToken, now time.Time) {
	if row.ReplacedBy == nil || !utils.RefreshHashMatches(raw, row.TokenHash) {
		return
	}
	s.log.Warn("refresh token reuse", "jti", row.ID, "user_id", row.UserID)
	s.metrics.Reuse()
	s.emit(queue.AuthEvent{Type: queue.EventRefreshReuse, UserID: row.UserID, TokenID: row.ID})
	if !s.cfg.RevokeChainOnReuse {
		return
	}
	if err := s.revokeDescendants(ctx, row, now); err != nil {
		s.log.Error("revoke refresh chain", "jti", row.ID, "err", err)
	}
}

func (s *Service) revokeDescendants(ctx context.Context, row *model.RefreshToken, at time.Time) error {
	next := row.ReplacedBy
	for i := 0; next != nil && i < maxChainWalk; i++ {
		child, err := s.tokens.GetByID(ctx, *next)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.tokens.Revoke(ctx, child.ID, at); err != nil {
			return err
		}
		next = child.ReplacedBy
	}
	return nil
}

// Revoke marks the refresh token jti as revoked.  Unknown or already
// revoked tokens are left alone.
func (s *Service) Revoke(ctx context.Context, jti string) error {
	if jti == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, jti, s.now()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Logout revokes the token referenced by a raw refresh cookie.  It never
// fails: malformed cookies are ignored and storage faults are logged.
func (s *Service) Logout(ctx context.Context, raw string) {
	jti, err := utils.SplitRefresh(strings.TrimSpace(raw))
	if err != nil || jti == "" {
		return
	}
	if err := s.Revoke(ctx, jti); err != nil {
		s.log.Error("logout revoke failed", "jti", jti, "err", err)
		return
	}
	s.emit(queue.AuthEvent{Type: queue.EventLogout, TokenID: jti})
}

// ParseAccess verifies an access token issued by this service.
func (s *Service) ParseAccess(raw string) (utils.AccessClaims, error) {
	return utils.ParseAccessToken(s.cfg.Secret, raw)
}

// Users exposes the user directory for read-only handlers.
func (s *Service) Users() UserDirectory { return s.users }

func (s *Service) emit(ev queue.AuthEvent) {
	if s.events == nil {
		return
	}
	ev.OccurredAt = s.now().Format(time.RFC3339Nano)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.events.Publish(ctx, ev); err != nil {
			s.log.Warn("publish auth event", "type", ev.Type, "err", err)
		}
	}()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
