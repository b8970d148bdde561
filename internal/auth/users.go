package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID       string
	Email    string
	PassHash string // argon2id encoded string
	Roles    []Role
	// TokenVersion is incremented on logout-everywhere and credential change.
	// Access tokens embed the version at issuance and stale ones are rejected.
	TokenVersion int
}

type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	Add(ctx context.Context, u *User) error
	UpdatePassword(ctx context.Context, id, newHash string) error
	// BumpTokenVersion increments the user's token version and returns the
	// new value.
	BumpTokenVersion(ctx context.Context, id string) (int, error)
}

// MemoryUserStore backs tests and local tooling.
type MemoryUserStore struct {
	mu      sync.Mutex
	byID    map[string]*User
	byEmail map[string]*User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    map[string]*User{},
		byEmail: map[string]*User{},
	}
}

func (s *MemoryUserStore) Add(_ context.Context, u *User) error {
	if u == nil {
		return errors.New("user is nil")
	}
	if u.ID == "" {
		return errors.New("user id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[u.ID]; exists {
		return errors.New("user already exists")
	}
	email := normalizeEmail(u.Email)
	if email != "" {
		if _, exists := s.byEmail[email]; exists {
			return errors.New("email already exists")
		}
	}
	clone := *u
	clone.Email = email
	s.byID[u.ID] = &clone
	if email != "" {
		s.byEmail[email] = &clone
	}
	return nil
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byID[id]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, ErrUserNotFound
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.byEmail[normalizeEmail(email)]; ok {
		clone := *u
		return &clone, nil
	}
	return nil, ErrUserNotFound
}

func (s *MemoryUserStore) UpdatePassword(_ context.Context, id, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PassHash = newHash
	return nil
}

func (s *MemoryUserStore) BumpTokenVersion(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return 0, ErrUserNotFound
	}
	u.TokenVersion++
	return u.TokenVersion, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
