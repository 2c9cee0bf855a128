package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cms-backend/internal/auth"
	"github.com/iliyamo/cms-backend/internal/auth/authtest"
	"github.com/iliyamo/cms-backend/internal/model"
)

func withIdentity(id authtest.Identity) func(*auth.Config, *auth.Deps) {
	return func(_ *auth.Config, d *auth.Deps) { d.Identity = id }
}

func TestLoginGoogleCreatesAccountOnce(t *testing.T) {
	f := newFixture(t, withIdentity(authtest.Identity{
		"tok-1": {Email: "G@Example.com", EmailVerified: true, DisplayName: "Gee"},
	}))
	ctx := context.Background()

	first, err := f.svc.LoginGoogle(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "g@example.com", first.User.Email)
	assert.True(t, first.User.EmailVerified)
	assert.Equal(t, model.RoleUser, first.Role)
	assert.NotEmpty(t, first.Tokens.RefreshToken)

	name, ok := f.store.Profile(first.User.ID)
	require.True(t, ok)
	assert.Equal(t, "Gee", name)

	f.clock.Advance(time.Minute)
	second, err := f.svc.LoginGoogle(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, 1, f.store.UserCount())

	stored, err := f.store.FindUserByID(ctx, first.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastSignInAt)
	assert.Equal(t, f.clock.Now(), *stored.LastSignInAt)
}

func TestLoginGoogleFederatedAccountHasNoUsablePassword(t *testing.T) {
	f := newFixture(t, withIdentity(authtest.Identity{
		"tok": {Email: "fed@example.com", EmailVerified: true},
	}))
	ctx := context.Background()

	sess, err := f.svc.LoginGoogle(ctx, "tok")
	require.NoError(t, err)
	name, _ := f.store.Profile(sess.User.ID)
	assert.Equal(t, "fed", name)

	_, err = f.svc.Login(ctx, "fed@example.com", "")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "fed@example.com", "password")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

func TestLoginGoogleLinksExistingPasswordAccount(t *testing.T) {
	f := newFixture(t, withIdentity(authtest.Identity{
		"unverified": {Email: "a@b.com", EmailVerified: false},
		"verified":   {Email: "a@b.com", EmailVerified: true},
	}))
	ctx := context.Background()
	u := f.seedUser(t, "a@b.com", "p", model.RoleModerator)

	sess, err := f.svc.LoginGoogle(ctx, "unverified")
	require.NoError(t, err)
	assert.Equal(t, u.ID, sess.User.ID)
	assert.False(t, sess.User.EmailVerified)
	assert.Equal(t, model.RoleModerator, sess.Role)

	sess, err = f.svc.LoginGoogle(ctx, "verified")
	require.NoError(t, err)
	assert.True(t, sess.User.EmailVerified)

	// a later unverified assertion never downgrades the flag
	sess, err = f.svc.LoginGoogle(ctx, "unverified")
	require.NoError(t, err)
	stored, err := f.store.FindUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)

	// the password still works
	_, err = f.svc.Login(ctx, "a@b.com", "p")
	assert.NoError(t, err)
	assert.Equal(t, 1, f.store.UserCount())
}

func TestLoginGoogleAdminAllowList(t *testing.T) {
	f := newFixture(t, withIdentity(authtest.Identity{
		"boss": {Email: "Boss@Example.com", EmailVerified: true},
	}))

	sess, err := f.svc.LoginGoogle(context.Background(), "boss")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, sess.Role)
}

func TestLoginGoogleRejections(t *testing.T) {
	f := newFixture(t, withIdentity(authtest.Identity{
		"no-email": {EmailVerified: true},
		"inactive": {Email: "off@example.com", EmailVerified: true},
	}))
	ctx := context.Background()

	_, err := f.svc.LoginGoogle(ctx, "")
	assert.ErrorIs(t, err, auth.ErrInvalidGoogleToken)

	_, err = f.svc.LoginGoogle(ctx, "forged")
	assert.ErrorIs(t, err, auth.ErrInvalidGoogleToken)

	_, err = f.svc.LoginGoogle(ctx, "no-email")
	assert.ErrorIs(t, err, auth.ErrGoogleEmailRequired)
	assert.Equal(t, 0, f.store.UserCount())

	u := f.seedUser(t, "off@example.com", "p")
	f.store.SetActive(u.ID, false)
	_, err = f.svc.LoginGoogle(ctx, "inactive")
	assert.ErrorIs(t, err, auth.ErrInvalidUser)
}

func TestLoginGoogleWithoutVerifier(t *testing.T) {
	f := newFixture(t, func(_ *auth.Config, d *auth.Deps) { d.Identity = nil })

	_, err := f.svc.LoginGoogle(context.Background(), "anything")
	assert.ErrorIs(t, err, auth.ErrInvalidGoogleToken)
}

func TestLinkOrCreateRequiresEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.LinkOrCreate(context.Background(), auth.Assertion{Email: "  ", EmailVerified: true})
	assert.ErrorIs(t, err, auth.ErrGoogleEmailRequired)
	assert.Equal(t, 0, f.store.UserCount())
}
