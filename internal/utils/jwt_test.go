package utils

import (
    "strings"
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
    now := time.Now().UTC().Truncate(time.Second)
    tok, err := NewAccessToken("k", "user-1", "a@b.com", "admin", now, 15*time.Minute)
    require.NoError(t, err)
    assert.Equal(t, now.Add(15*time.Minute), tok.Exp)

    claims, err := ParseAccessToken("k", tok.Token)
    require.NoError(t, err)
    assert.Equal(t, "user-1", claims.Subject)
    assert.Equal(t, "a@b.com", claims.Email)
    assert.Equal(t, "admin", claims.Role)
    assert.Equal(t, now, claims.IssuedAt.Time.UTC())
    assert.Equal(t, tok.Exp, claims.ExpiresAt.Time.UTC())
}

func TestParseAccessTokenRejects(t *testing.T) {
    now := time.Now().UTC()

    expired, err := NewAccessToken("k", "u", "e", "user", now.Add(-time.Hour), 15*time.Minute)
    require.NoError(t, err)
    _, err = ParseAccessToken("k", expired.Token)
    assert.ErrorIs(t, err, jwt.ErrTokenExpired)

    valid, err := NewAccessToken("k", "u", "e", "user", now, time.Minute)
    require.NoError(t, err)
    _, err = ParseAccessToken("other", valid.Token)
    assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

    noSub, err := NewAccessToken("k", "", "e", "user", now, time.Minute)
    require.NoError(t, err)
    _, err = ParseAccessToken("k", noSub.Token)
    assert.Error(t, err)

    none := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{
        RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute))},
    })
    raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
    require.NoError(t, err)
    _, err = ParseAccessToken("k", raw)
    assert.Error(t, err)

    noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
        RegisteredClaims: jwt.RegisteredClaims{Subject: "u"},
    })
    raw, err = noExp.SignedString([]byte("k"))
    require.NoError(t, err)
    _, err = ParseAccessToken("k", raw)
    assert.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)
}

func TestRefreshTokenShape(t *testing.T) {
    now := time.Now().UTC()
    rt, err := NewRefreshToken("3f2c", now, 7*24*time.Hour)
    require.NoError(t, err)
    assert.Equal(t, now.Add(7*24*time.Hour), rt.Exp)

    jti, secret, ok := strings.Cut(rt.Raw, ".")
    require.True(t, ok)
    assert.Equal(t, "3f2c", jti)
    assert.Len(t, secret, 64)

    other, err := NewRefreshToken("3f2c", now, time.Hour)
    require.NoError(t, err)
    assert.NotEqual(t, rt.Raw, other.Raw)
}

func TestSplitRefresh(t *testing.T) {
    jti, err := SplitRefresh("abc.def.ghi")
    require.NoError(t, err)
    assert.Equal(t, "abc", jti)

    jti, err = SplitRefresh(".secret")
    require.NoError(t, err)
    assert.Equal(t, "", jti)

    _, err = SplitRefresh("no-dot")
    assert.ErrorIs(t, err, ErrMalformedRefresh)
    _, err = SplitRefresh("")
    assert.ErrorIs(t, err, ErrMalformedRefresh)
}

func TestRefreshHashMatches(t *testing.T) {
    h := HashRefreshRaw("a.b")
    assert.Len(t, h, 64)
    assert.True(t, RefreshHashMatches("a.b", h))
    assert.False(t, RefreshHashMatches("a.c", h))
    assert.False(t, RefreshHashMatches("a.b", ""))
}
