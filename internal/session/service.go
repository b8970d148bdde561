// Package session composes the access-token signer, the refresh-token ledger,
// and the user store into the credential lifecycle: login, refresh, and
// logout-everywhere.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"health-backend/internal/audit"
	"health-backend/internal/auth"
	"health-backend/internal/tokens"
)

var (
	ErrBadCredentials = errors.New("session: bad credentials")
	// ErrReuseDetected wraps tokens.ErrTokenRevoked: a rotated-away refresh
	// token was presented again, and the whole chain has been revoked.
	ErrReuseDetected = fmt.Errorf("session: refresh token reuse detected: %w", tokens.ErrTokenRevoked)
	ErrThrottled     = errors.New("session: too many refresh attempts")
)

// Credentials is an access/refresh token pair handed to the client.
type Credentials struct {
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

type Config struct {
	// RefreshPerMinute caps rotation attempts per presented token.
	RefreshPerMinute float64
	RefreshBurst     int
}

func (c *Config) setDefaults() {
	if c.RefreshPerMinute <= 0 {
		c.RefreshPerMinute = 6
	}
	if c.RefreshBurst <= 0 {
		c.RefreshBurst = 3
	}
}

type Service struct {
	signer  *auth.JWTSigner
	ledger  *tokens.Ledger
	users   auth.UserStore
	audit   *audit.Log
	limiter *keyedLimiter
	log     *slog.Logger
}

func New(cfg Config, signer *auth.JWTSigner, ledger *tokens.Ledger, users auth.UserStore, auditLog *audit.Log, logger *slog.Logger) *Service {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		signer:  signer,
		ledger:  ledger,
		users:   users,
		audit:   auditLog,
		limiter: newKeyedLimiter(rate.Limit(cfg.RefreshPerMinute/60.0), cfg.RefreshBurst, time.Hour),
		log:     logger,
	}
}

// Login verifies the password and issues a fresh credential pair at the
// user's current token version.
func (s *Service) Login(ctx context.Context, email, password string) (Credentials, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return Credentials{}, ErrBadCredentials
	}
	ok, err := auth.VerifyPassword(password, u.PassHash)
	if err != nil || !ok {
		return Credentials{}, ErrBadCredentials
	}
	creds, err := s.issuePair(ctx, u)
	if err != nil {
		return Credentials{}, err
	}
	s.audit.Append(u.ID, "login")
	return creds, nil
}

// Refresh rotates the presented refresh token and issues a new pair. A
// revoked token is treated as replay: the user's whole refresh chain is
// revoked and the token version bumped, so outstanding access tokens die too.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (Credentials, error) {
	if !s.limiter.allow(tokens.HashToken(rawRefresh)) {
		return Credentials{}, ErrThrottled
	}

	old, newRaw, newRec, err := s.ledger.Rotate(ctx, rawRefresh)
	if errors.Is(err, tokens.ErrTokenRevoked) {
		if old.UserID != "" {
			s.punishReuse(ctx, old.UserID)
		}
		return Credentials{}, ErrReuseDetected
	}
	if err != nil {
		return Credentials{}, err
	}

	u, err := s.users.FindByID(ctx, old.UserID)
	if err != nil {
		return Credentials{}, err
	}
	accessToken, accessExp, err := s.signer.IssueToken(u.ID, u.TokenVersion, u.Roles)
	if err != nil {
		return Credentials{}, err
	}

	return Credentials{
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: newRaw,
		RefreshExp:   newRec.ExpiresAt,
	}, nil
}

// LogoutEverywhere revokes all refresh tokens and bumps the token version,
// invalidating every outstanding access token in O(1) per request check.
func (s *Service) LogoutEverywhere(ctx context.Context, userID string) error {
	if err := s.ledger.RevokeAll(ctx, userID); err != nil {
		return err
	}
	if _, err := s.users.BumpTokenVersion(ctx, userID); err != nil {
		return err
	}
	s.audit.Append(userID, "logout everywhere")
	s.log.InfoContext(ctx, "all sessions revoked", "user_id", userID)
	return nil
}

// ChangePassword verifies the old password, stores the new hash, and kills
// every outstanding session.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return ErrBadCredentials
	}
	ok, err := auth.VerifyPassword(oldPassword, u.PassHash)
	if err != nil || !ok {
		return ErrBadCredentials
	}
	hash, err := auth.HashPassword(auth.DefaultArgon, newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	s.audit.Append(userID, "password changed")
	return s.LogoutEverywhere(ctx, userID)
}

func (s *Service) issuePair(ctx context.Context, u *auth.User) (Credentials, error) {
	accessToken, accessExp, err := s.signer.IssueToken(u.ID, u.TokenVersion, u.Roles)
	if err != nil {
		return Credentials{}, err
	}
	rawRefresh, rec, err := s.ledger.Issue(ctx, u.ID, u.TokenVersion)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{
		AccessToken:  accessToken,
		AccessExp:    accessExp,
		RefreshToken: rawRefresh,
		RefreshExp:   rec.ExpiresAt,
	}, nil
}

func (s *Service) punishReuse(ctx context.Context, userID string) {
	if err := s.ledger.RevokeAll(ctx, userID); err != nil {
		s.log.ErrorContext(ctx, "revoking chain after reuse failed", "user_id", userID, "err", err)
	}
	if _, err := s.users.BumpTokenVersion(ctx, userID); err != nil {
		s.log.ErrorContext(ctx, "bumping token version after reuse failed", "user_id", userID, "err", err)
	}
	s.audit.Append(userID, "refresh token reuse detected; all sessions revoked")
	s.log.WarnContext(ctx, "refresh token reuse detected", "user_id", userID)
}
