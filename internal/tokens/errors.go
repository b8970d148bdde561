package tokens

import "errors"

var (
	// ErrTokenInvalid means the presented token matches no stored record.
	ErrTokenInvalid = errors.New("tokens: invalid refresh token")
	// ErrTokenRevoked means the record exists but was revoked, including the
	// rotated-away case. A caller seeing this on a refresh attempt is looking
	// at replay of an already-used token.
	ErrTokenRevoked = errors.New("tokens: refresh token revoked")
	// ErrTokenExpired means the record exists, was never revoked, but is past
	// its expiry. The failing rotation also revokes the record.
	ErrTokenExpired = errors.New("tokens: refresh token expired")
)
