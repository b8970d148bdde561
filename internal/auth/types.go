package auth

type Role string

const (
	RoleUser  Role = "user"
	RoleCoach Role = "coach"
	RoleAdmin Role = "admin"
)

// Claims is the decoded body of an access token. Ver is the user's token
// version at issuance; a request presenting a stale Ver is rejected even if
// the token itself has not expired.
type Claims struct {
	Sub       string `json:"sub"`
	Roles     []Role `json:"roles"`
	Ver       int    `json:"ver"`
	TokenID   string `json:"jti"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
