package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/iliyamo/cms-backend/internal/utils"
)

var (
	ErrUnsupportedHash = errors.New("unsupported password hash family")
	ErrMalformedHash   = errors.New("malformed password hash")
)

// PasswordHash is a parsed stored password envelope: either LegacyHash
// or CurrentHash.
type PasswordHash interface {
	family() string
}

// LegacyHash is a bcrypt hash ($2a$, $2b$ or $2y$).
type LegacyHash struct {
	Encoded string
}

// CurrentHash is an argon2id PHC string.
type CurrentHash struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	Salt        []byte
	Key         []byte
}

func (LegacyHash) family() string  { return "bcrypt" }
func (CurrentHash) family() string { return "argon2id" }

// argon2id parameters for newly hashed passwords.
const (
	argonMemory      uint32 = 64 * 1024
	argonTime        uint32 = 3
	argonParallelism uint8  = 2
	argonSaltLen            = 16
	argonKeyLen      uint32 = 32
)

// ParsePasswordHash inspects the family prefix of stored and decodes it.
func ParsePasswordHash(stored string) (PasswordHash, error) {
	switch {
	case strings.HasPrefix(stored, "$2a$"), strings.HasPrefix(stored, "$2b$"), strings.HasPrefix(stored, "$2y$"):
		return LegacyHash{Encoded: stored}, nil
	case strings.HasPrefix(stored, "$argon2id$"):
		return parseArgon2id(stored)
	}
	return nil, ErrUnsupportedHash
}

// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
func parseArgon2id(stored string) (CurrentHash, error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[0] != "" {
		return CurrentHash{}, ErrMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return CurrentHash{}, ErrMalformedHash
	}
	var h CurrentHash
	for _, kv := range strings.Split(parts[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return CurrentHash{}, ErrMalformedHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return CurrentHash{}, ErrMalformedHash
		}
		switch k {
		case "m":
			h.Memory = uint32(n)
		case "t":
			h.Time = uint32(n)
		case "p":
			if n > 255 {
				return CurrentHash{}, ErrMalformedHash
			}
			h.Parallelism = uint8(n)
		default:
			return CurrentHash{}, ErrMalformedHash
		}
	}
	if h.Memory == 0 || h.Time == 0 || h.Parallelism == 0 {
		return CurrentHash{}, ErrMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return CurrentHash{}, ErrMalformedHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return CurrentHash{}, ErrMalformedHash
	}
	h.Salt, h.Key = salt, key
	return h, nil
}

func (h CurrentHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Memory, h.Time, h.Parallelism,
		base64.RawStdEncoding.EncodeToString(h.Salt),
		base64.RawStdEncoding.EncodeToString(h.Key))
}

// BypassConfig describes the fixture password shortcut used by seed
// data in development and test environments.
type BypassConfig struct {
	Enabled  bool
	Sentinel string // stored hash value that marks a fixture account
	Password string // plaintext accepted for fixture accounts
}

// Verifier checks plaintext passwords against stored hashes.
type Verifier struct {
	bypass BypassConfig
}

// NewVerifier returns a Verifier.  The bypass is dropped entirely when
// production is true.
func NewVerifier(bypass BypassConfig, production bool) *Verifier {
	if production || bypass.Sentinel == "" {
		bypass = BypassConfig{}
	}
	return &Verifier{bypass: bypass}
}

// Verify reports whether plaintext matches stored.  Malformed or
// unsupported hashes never match.
func (v *Verifier) Verify(stored, plaintext string) bool {
	if v.bypass.Enabled && stored == v.bypass.Sentinel {
		return subtle.ConstantTimeCompare([]byte(plaintext), []byte(v.bypass.Password)) == 1
	}
	parsed, err := ParsePasswordHash(stored)
	if err != nil {
		return false
	}
	switch h := parsed.(type) {
	case LegacyHash:
		return utils.VerifyPassword(h.Encoded, plaintext)
	case CurrentHash:
		key := argon2.IDKey([]byte(plaintext), h.Salt, h.Time, h.Memory, h.Parallelism, uint32(len(h.Key)))
		return subtle.ConstantTimeCompare(key, h.Key) == 1
	}
	return false
}

// HashPassword hashes plaintext with the current family (argon2id).
func HashPassword(plaintext string) (string, error) {
	salt, err := utils.RandomBytes(argonSaltLen)
	if err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plaintext), salt, argonTime, argonMemory, argonParallelism, argonKeyLen)
	return CurrentHash{
		Memory:      argonMemory,
		Time:        argonTime,
		Parallelism: argonParallelism,
		Salt:        salt,
		Key:         key,
	}.String(), nil
}

// UnownedPasswordHash returns a hash of 32 random bytes that nobody
// knows, for accounts created through federation.
func UnownedPasswordHash() (string, error) {
	secret, err := utils.RandomBytes(32)
	if err != nil {
		return "", err
	}
	return HashPassword(base64.RawURLEncoding.EncodeToString(secret))
}
