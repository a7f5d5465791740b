package auth

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Role identifies the kind of account a token belongs to.
type Role string

const (
	// RoleDriver is a delivery driver using the mobile app.
	RoleDriver Role = "driver"
	// RoleOffice is an office-staff account (dispatch dashboard).
	RoleOffice Role = "office"
)

// Valid reports whether the role is one of the known constants.
func (r Role) Valid() bool {
	return r == RoleDriver || r == RoleOffice
}

// Claims is the canonical JWT claims payload for Lucky Gas tokens.
type Claims struct {
	// Role drives endpoint-level access control.
	Role Role `json:"role"`
	jwtlib.RegisteredClaims
}

var _ jwtlib.Claims = (*Claims)(nil)

// NewClaims constructs claims for the given subject and role.
func NewClaims(subject string, role Role, ttl time.Duration) *Claims {
	now := time.Now().UTC()
	return &Claims{
		Role: role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
}
