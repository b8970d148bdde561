package tokens

import (
	"context"
	"sync"
	"time"
)

// Store persists refresh-token records. The conditional Mark* operations are
// the concurrency primitive of the ledger: they must flip revoked=false to
// true atomically and report whether this call did the flip, so that two
// racing rotations of the same token can never both win.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	// FindByHash returns ErrTokenInvalid when no record matches.
	FindByHash(ctx context.Context, hash string) (Record, error)
	// MarkRotated revokes an active record and links its successor. Returns
	// false if the record was already revoked (or absent).
	MarkRotated(ctx context.Context, hash string, now time.Time, replacedBy string) (bool, error)
	// MarkRevoked revokes an active record. Returns false if already revoked.
	MarkRevoked(ctx context.Context, hash string, now time.Time) (bool, error)
	// RevokeAllForUser revokes every active record for the user and returns
	// how many records this call revoked. Idempotent.
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)
}

// MemoryStore is a mutex-guarded in-process Store with the same conditional
// semantics as the Mongo implementation. Used by tests and local tooling.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Insert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := rec
	s.records[rec.TokenHash] = &clone
	return nil
}

func (s *MemoryStore) FindByHash(_ context.Context, hash string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[hash]
	if !ok {
		return Record{}, ErrTokenInvalid
	}
	return *rec, nil
}

func (s *MemoryStore) MarkRotated(_ context.Context, hash string, now time.Time, replacedBy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[hash]
	if !ok || rec.Revoked {
		return false, nil
	}
	rec.Revoked = true
	rec.RevokedAt = &now
	rec.ReplacedBy = replacedBy
	return true, nil
}

func (s *MemoryStore) MarkRevoked(_ context.Context, hash string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[hash]
	if !ok || rec.Revoked {
		return false, nil
	}
	rec.Revoked = true
	rec.RevokedAt = &now
	return true, nil
}

func (s *MemoryStore) RevokeAllForUser(_ context.Context, userID string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, rec := range s.records {
		if rec.UserID == userID && !rec.Revoked {
			rec.Revoked = true
			rec.RevokedAt = &now
			n++
		}
	}
	return n, nil
}
