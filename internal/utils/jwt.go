package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"   // secure random number generation
    "crypto/sha256" // SHA‑256 hashing for refresh tokens
    "crypto/subtle" // constant-time comparison of token hashes
    "encoding/hex"  // hex encoding and decoding functions
    "errors"
    "strings"
    "time" // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// ErrMalformedRefresh is returned by SplitRefresh when the raw value has
// no "{jti}.{secret}" shape.
var ErrMalformedRefresh = errors.New("malformed refresh token")

// AccessClaims is the claim set carried by access tokens.  The subject
// (sub) is the user ID; email and role are snapshots taken at issuance.
type AccessClaims struct {
    Email string `json:"email"`
    Role  string `json:"role"`
    jwt.RegisteredClaims
}

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long‑lived token used to obtain new access tokens.
// Raw is "{ID}.{secret}"; only HashRefreshRaw(Raw) is ever stored.
type RefreshToken struct {
    ID  string    // token identifier (jti)
    Raw string    // raw token string returned to the client
    Exp time.Time // UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The token
// carries sub, email, role, iat and exp; exp is now+ttl.
func NewAccessToken(secret, userID, email, role string, now time.Time, ttl time.Duration) (AccessToken, error) {
    now = now.UTC()
    exp := now.Add(ttl)
    claims := AccessClaims{
        Email: email,
        Role:  role,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   userID,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies the signature and expiry of raw and returns
// its claims.  Only HS256 is accepted.
func ParseAccessToken(secret, raw string) (AccessClaims, error) {
    var claims AccessClaims
    tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil {
        return AccessClaims{}, err
    }
    if !tok.Valid || claims.Subject == "" {
        return AccessClaims{}, jwt.ErrTokenInvalidClaims
    }
    return claims, nil
}

// NewRefreshToken returns a refresh token for the given jti whose raw
// form is "{jti}.{secret}", with a 32-byte random secret.
func NewRefreshToken(jti string, now time.Time, ttl time.Duration) (RefreshToken, error) {
    secret, err := randomHex(32)
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{
        ID:  jti,
        Raw: jti + "." + secret,
        Exp: now.UTC().Add(ttl),
    }, nil
}

// SplitRefresh returns the jti portion of a raw refresh token, the text
// before the first '.'.
func SplitRefresh(raw string) (string, error) {
    jti, _, ok := strings.Cut(raw, ".")
    if !ok {
        return "", ErrMalformedRefresh
    }
    return jti, nil
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh token as a hex
// string.  Storing only the hash in the database prevents attackers from
// using stolen database entries to refresh sessions.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// RefreshHashMatches compares HashRefreshRaw(raw) with a stored hash in
// constant time.
func RefreshHashMatches(raw, stored string) bool {
    return subtle.ConstantTimeCompare([]byte(HashRefreshRaw(raw)), []byte(stored)) == 1
}

// RandomBytes returns n bytes of cryptographically secure random data.
func RandomBytes(n int) ([]byte, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return nil, err
    }
    return buf, nil
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf, err := RandomBytes(n)
    if err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
