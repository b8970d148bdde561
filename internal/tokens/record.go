package tokens

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"time"
)

// Record is one issued refresh token. Only the hash of the raw token is ever
// stored; records are never deleted, so a revoked record stays visible for
// replay detection and audit.
type Record struct {
	ID           string     `bson:"_id"`
	TokenHash    string     `bson:"token_hash"`
	UserID       string     `bson:"user_id"`
	TokenVersion int        `bson:"token_version"`
	CreatedAt    time.Time  `bson:"created_at"`
	ExpiresAt    time.Time  `bson:"expires_at"`
	Revoked      bool       `bson:"revoked"`
	RevokedAt    *time.Time `bson:"revoked_at,omitempty"`
	ReplacedBy   string     `bson:"replaced_by,omitempty"`
}

const rawTokenBytes = 32 // 256 bits of entropy

// HashToken maps a raw bearer token to its stored lookup key.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func newRawToken() (string, error) {
	b := make([]byte, rawTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
