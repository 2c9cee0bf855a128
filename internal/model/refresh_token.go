package model

import "time"

// RefreshToken models an entry in the `refresh_tokens` table.  The raw
// token handed to the client is "{ID}.{secret}"; only the SHA-256 hash
// of the raw value is stored.  A row is written once at issuance and
// mutated once more when it is revoked or rotated.
//
// Fields:
//  ID         – token identifier (jti), primary key.
//  UserID     – owner of the token.
//  TokenHash  – SHA-256 hex digest of the raw token.
//  IssuedAt   – creation timestamp.
//  ExpiresAt  – expiration timestamp, strictly after IssuedAt.
//  RevokedAt  – set once when revoked or rotated, never cleared.
//  ReplacedBy – jti of the successor created by rotation.
type RefreshToken struct {
    ID         string     // refresh_tokens.id
    UserID     string     // refresh_tokens.user_id
    TokenHash  string     // refresh_tokens.token_hash
    IssuedAt   time.Time  // refresh_tokens.issued_at
    ExpiresAt  time.Time  // refresh_tokens.expires_at
    RevokedAt  *time.Time // refresh_tokens.revoked_at (nullable)
    ReplacedBy *string    // refresh_tokens.replaced_by (nullable)
}

// TokenState describes the current usability of a refresh token.
type TokenState string

const (
    TokenActive  TokenState = "active"
    TokenRotated TokenState = "rotated"
    TokenRevoked TokenState = "revoked"
    TokenExpired TokenState = "expired"
)

// StateAt derives the token state at the given instant.  Expiry is
// inclusive: a token whose ExpiresAt equals now is expired.
func (t *RefreshToken) StateAt(now time.Time) TokenState {
    switch {
    case t.RevokedAt != nil && t.ReplacedBy != nil:
        return TokenRotated
    case t.RevokedAt != nil:
        return TokenRevoked
    case !now.Before(t.ExpiresAt):
        return TokenExpired
    }
    return TokenActive
}
