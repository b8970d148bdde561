// Package tokens is the refresh-token ledger: rotating single-use
// continuation credentials stored by one-way hash.
package tokens

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const DefaultTTL = 30 * 24 * time.Hour

// Ledger issues, rotates, and revokes refresh tokens over a Store. Raw tokens
// leave the process exactly once, at issuance; only hashes are persisted.
type Ledger struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewLedger(store Store, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{store: store, ttl: ttl, now: time.Now}
}

// Issue creates a fresh ACTIVE record for the user at the given token version
// and returns the raw bearer token alongside the stored record.
func (l *Ledger) Issue(ctx context.Context, userID string, tokenVersion int) (string, Record, error) {
	raw, err := newRawToken()
	if err != nil {
		return "", Record{}, err
	}
	now := l.now().UTC()
	rec := Record{
		ID:           uuid.NewString(),
		TokenHash:    HashToken(raw),
		UserID:       userID,
		TokenVersion: tokenVersion,
		CreatedAt:    now,
		ExpiresAt:    now.Add(l.ttl),
	}
	if err := l.store.Insert(ctx, rec); err != nil {
		return "", Record{}, err
	}
	return raw, rec, nil
}

// Rotate exchanges a valid raw token for a successor and revokes the token
// that was just used. The returned old record reflects the post-rotation
// state: revoked, with ReplacedBy pointing at the successor's hash. On the
// revoked and expired failure paths, old still carries the matched record so
// the caller can apply its replay policy (e.g. revoke the user's chain).
//
// Failure modes:
//   - ErrTokenInvalid: no record matches the raw token.
//   - ErrTokenRevoked: record already revoked (rotated away or killed by a
//     revoke-all); also returned to the loser of a rotation race.
//   - ErrTokenExpired: record past its expiry; the record is revoked on this
//     path too, so an expired token cannot linger as ACTIVE.
func (l *Ledger) Rotate(ctx context.Context, raw string) (old Record, newRaw string, newRec Record, err error) {
	hash := HashToken(raw)
	rec, err := l.store.FindByHash(ctx, hash)
	if err != nil {
		return Record{}, "", Record{}, err
	}
	if rec.Revoked {
		return rec, "", Record{}, ErrTokenRevoked
	}
	now := l.now().UTC()
	if now.After(rec.ExpiresAt) {
		if _, err := l.store.MarkRevoked(ctx, hash, now); err != nil {
			return Record{}, "", Record{}, err
		}
		rec.Revoked = true
		rec.RevokedAt = &now
		return rec, "", Record{}, ErrTokenExpired
	}

	newRaw, newRec, err = l.Issue(ctx, rec.UserID, rec.TokenVersion)
	if err != nil {
		return Record{}, "", Record{}, err
	}

	won, err := l.store.MarkRotated(ctx, hash, now, newRec.TokenHash)
	if err != nil {
		return Record{}, "", Record{}, err
	}
	if !won {
		// A concurrent rotation (or revoke-all) got there first. The successor
		// we just minted must not survive as a second chain off the same
		// predecessor.
		_, _ = l.store.MarkRevoked(ctx, newRec.TokenHash, now)
		return rec, "", Record{}, ErrTokenRevoked
	}

	rec.Revoked = true
	rec.RevokedAt = &now
	rec.ReplacedBy = newRec.TokenHash
	return rec, newRaw, newRec, nil
}

// RevokeAll revokes every active token for the user. Re-invoking on an
// already-revoked user is a no-op. Tokens issued strictly after RevokeAll
// returns stay active; per-request token_version checks remain the revocation
// mechanism of record for access tokens.
func (l *Ledger) RevokeAll(ctx context.Context, userID string) error {
	_, err := l.store.RevokeAllForUser(ctx, userID, l.now().UTC())
	return err
}
