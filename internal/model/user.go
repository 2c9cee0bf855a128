package model

import "time"

// User represents an account record as stored in the `users` table.
// The session core only reads users and patches LastSignInAt and
// EmailVerified; it never deletes them.
//
// Fields:
//  ID            – opaque stable identifier (UUID string).
//  Email         – unique, lower-cased email address.
//  PasswordHash  – stored password envelope; nil for accounts without one.
//  IsActive      – disabled accounts cannot sign in or refresh.
//  EmailVerified – whether the address was confirmed (e.g. by Google).
//  LastSignInAt  – last successful sign in (null until the first one).
type User struct {
    ID            string     // users.id
    Email         string     // users.email
    PasswordHash  *string    // users.password_hash (nullable)
    IsActive      bool       // users.is_active
    EmailVerified bool       // users.email_verified
    CreatedAt     time.Time  // users.created_at
    UpdatedAt     time.Time  // users.updated_at
    LastSignInAt  *time.Time // users.last_sign_in_at (nullable)
}

// NewUser carries the fields needed to insert a user row.
type NewUser struct {
    Email         string
    PasswordHash  string
    EmailVerified bool
}

// UserPatch lists the columns the session core may change.  Nil fields
// are left untouched.
type UserPatch struct {
    EmailVerified *bool
    LastSignInAt  *time.Time
}

// Empty reports whether the patch would not change anything.
func (p UserPatch) Empty() bool {
    return p.EmailVerified == nil && p.LastSignInAt == nil
}

// Role is the primary role embedded in access tokens.
type Role string

const (
    RoleAdmin     Role = "admin"
    RoleModerator Role = "moderator"
    RoleUser      Role = "user"
)

// Valid reports whether r belongs to the closed set of role names.
func (r Role) Valid() bool {
    switch r {
    case RoleAdmin, RoleModerator, RoleUser:
        return true
    }
    return false
}
