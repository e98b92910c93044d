package utils // package utils provides helpers for session tokens and password hashing

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTTL is the fixed lifetime of every session token.
const SessionTTL = time.Hour

// Roles carried in the role claim.
const (
	RoleUser     = "user"
	RoleFirebase = "firebase"
)

// SessionToken is a signed HS256 JWT along with its expiry.
type SessionToken struct {
	Token string    `json:"token"`
	Exp   time.Time `json:"expires"`
}

// SessionClaims are the claims embedded in a session token.  Email is only
// set for tokens exchanged from an identity provider token.
type SessionClaims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid session token")

// NewSessionToken signs a token for subject valid for SessionTTL from now.
func NewSessionToken(secret, subject, role, email string) (SessionToken, error) {
	now := time.Now().UTC()
	exp := now.Add(SessionTTL)
	claims := SessionClaims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies raw against secret and returns its claims.
// Tokens signed with anything but HMAC are rejected, as are tokens without
// a subject.
func ParseSessionToken(secret, raw string) (*SessionClaims, error) {
	var claims SessionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
