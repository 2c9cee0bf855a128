package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/cms-backend/internal/auth"
	"github.com/iliyamo/cms-backend/internal/utils"
)

func TestVerifyAcceptsBothFamilies(t *testing.T) {
	v := auth.NewVerifier(auth.BypassConfig{}, true)

	legacy, err := utils.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	current, err := auth.HashPassword("s3cret")
	require.NoError(t, err)

	for name, stored := range map[string]string{"bcrypt": legacy, "argon2id": current} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, v.Verify(stored, "s3cret"))
			assert.False(t, v.Verify(stored, "s3cret "))
			assert.False(t, v.Verify(stored, ""))
		})
	}
}

func TestVerifyAcceptsBcryptVariants(t *testing.T) {
	v := auth.NewVerifier(auth.BypassConfig{}, true)
	h, err := utils.HashPassword("pw", bcrypt.MinCost)
	require.NoError(t, err)
	require.Contains(t, h, "$2a$")

	// $2b$ and $2y$ share the encoding of $2a$
	assert.True(t, v.Verify("$2b$"+h[4:], "pw"))
	assert.True(t, v.Verify("$2y$"+h[4:], "pw"))
}

func TestParsePasswordHash(t *testing.T) {
	current, err := auth.HashPassword("pw")
	require.NoError(t, err)

	parsed, err := auth.ParsePasswordHash(current)
	require.NoError(t, err)
	ch, ok := parsed.(auth.CurrentHash)
	require.True(t, ok)
	assert.Equal(t, uint32(65536), ch.Memory)
	assert.Equal(t, uint32(3), ch.Time)
	assert.Equal(t, uint8(2), ch.Parallelism)
	assert.Len(t, ch.Salt, 16)
	assert.Len(t, ch.Key, 32)
	assert.Equal(t, current, ch.String())

	parsed, err = auth.ParsePasswordHash("$2b$10$abcdefghijklmnopqrstuv")
	require.NoError(t, err)
	assert.IsType(t, auth.LegacyHash{}, parsed)

	_, err = auth.ParsePasswordHash("plaintext")
	assert.ErrorIs(t, err, auth.ErrUnsupportedHash)
	_, err = auth.ParsePasswordHash("$argon2i$v=19$m=1,t=1,p=1$c2FsdA$a2V5")
	assert.ErrorIs(t, err, auth.ErrUnsupportedHash)
}

func TestMalformedHashesNeverVerify(t *testing.T) {
	v := auth.NewVerifier(auth.BypassConfig{}, false)
	cases := []string{
		"",
		"$argon2id$",
		"$argon2id$v=19$m=65536,t=3,p=2$c2FsdA",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdHNhbHQ$a2V5a2V5",
		"$argon2id$v=19$m=0,t=3,p=2$c2FsdHNhbHQ$a2V5a2V5",
		"$argon2id$v=19$m=65536,t=3,p=2,x=1$c2FsdHNhbHQ$a2V5a2V5",
		"$argon2id$v=19$m=65536,t=3,p=2$!!!$a2V5a2V5",
		"$2a$truncated",
		"md5:5f4dcc3b5aa765d61d8327deb882cf99",
	}
	for _, stored := range cases {
		assert.False(t, v.Verify(stored, "password"), stored)
	}
	for _, stored := range cases[1:7] {
		_, err := auth.ParsePasswordHash(stored)
		assert.ErrorIs(t, err, auth.ErrMalformedHash, stored)
	}
}

func TestBypass(t *testing.T) {
	bypass := auth.BypassConfig{Enabled: true, Sentinel: "$fixture$", Password: "letmein"}

	dev := auth.NewVerifier(bypass, false)
	assert.True(t, dev.Verify("$fixture$", "letmein"))
	assert.False(t, dev.Verify("$fixture$", "nope"))

	prod := auth.NewVerifier(bypass, true)
	assert.False(t, prod.Verify("$fixture$", "letmein"))

	disabled := auth.NewVerifier(auth.BypassConfig{Sentinel: "$fixture$", Password: "letmein"}, false)
	assert.False(t, disabled.Verify("$fixture$", "letmein"))

	// real hashes are checked normally while the bypass is on
	stored, err := utils.HashPassword("pw", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, dev.Verify(stored, "pw"))
	assert.False(t, dev.Verify(stored, "letmein"))
}

func TestUnownedPasswordHash(t *testing.T) {
	a, err := auth.UnownedPasswordHash()
	require.NoError(t, err)
	b, err := auth.UnownedPasswordHash()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	v := auth.NewVerifier(auth.BypassConfig{}, true)
	assert.False(t, v.Verify(a, ""))
	_, err = auth.ParsePasswordHash(a)
	assert.NoError(t, err)
}

func TestCodeOnlyForAuthErrors(t *testing.T) {
	assert.Equal(t, "refresh_revoked", auth.Code(auth.ErrRefreshRevoked))
	assert.Equal(t, "", auth.Code(assert.AnError))
	assert.Equal(t, "", auth.Code(nil))
}
