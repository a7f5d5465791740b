package auth

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token fails parsing or signature checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidRole is returned when a token carries an unknown role.
	ErrInvalidRole = errors.New("invalid role in token")
)

// Manager issues and validates HMAC-signed bearer tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager creates a Manager with the given signing secret and token TTL.
func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue signs a new token for the given subject and role.
func (m *Manager) Issue(subject string, role Role) (string, error) {
	if !role.Valid() {
		return "", ErrInvalidRole
	}

	claims := NewClaims(subject, role, m.ttl)
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a raw token string and returns its claims.
func (m *Manager) Parse(raw string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if !claims.Role.Valid() {
		return nil, ErrInvalidRole
	}
	return claims, nil
}
