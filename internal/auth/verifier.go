package auth

import (
	"context"
	"errors"
)

// ErrStaleToken means the token's signature and expiry are fine but its
// embedded version no longer matches the user record: the session was killed
// by a logout-everywhere or credential change.
var ErrStaleToken = errors.New("auth: access token version is stale")

type TokenParser interface {
	ParseAndValidate(tokenStr string) (*Claims, error)
}

// Verifier admits requests: signature/expiry via the parser, then the O(1)
// revocation check of the embedded version against the user record.
type Verifier struct {
	parser TokenParser
	users  UserStore
}

func NewVerifier(parser TokenParser, users UserStore) *Verifier {
	return &Verifier{parser: parser, users: users}
}

func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := v.parser.ParseAndValidate(tokenStr)
	if err != nil {
		return nil, err
	}
	u, err := v.users.FindByID(ctx, claims.Sub)
	if err != nil {
		return nil, ErrInvalidAccessToken
	}
	if claims.Ver != u.TokenVersion {
		return nil, ErrStaleToken
	}
	return claims, nil
}
