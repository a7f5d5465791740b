package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestManager_IssueAndParse verifies a round trip through Issue and Parse.
func TestManager_IssueAndParse(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)

	token, err := mgr.Issue("driver-42", RoleDriver)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := mgr.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "driver-42", claims.Subject)
	assert.Equal(t, RoleDriver, claims.Role)
}

// TestManager_Issue_InvalidRole verifies that unknown roles are rejected.
func TestManager_Issue_InvalidRole(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)

	_, err := mgr.Issue("driver-42", Role("superuser"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}

// TestManager_Parse_WrongSecret verifies signature validation.
func TestManager_Parse_WrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", time.Hour)
	verifier := NewManager("secret-b", time.Hour)

	token, err := issuer.Issue("driver-42", RoleDriver)
	require.NoError(t, err)

	_, err = verifier.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// TestManager_Parse_Expired verifies that expired tokens are rejected.
func TestManager_Parse_Expired(t *testing.T) {
	mgr := NewManager("test-secret", -time.Minute)

	token, err := mgr.Issue("driver-42", RoleDriver)
	require.NoError(t, err)

	_, err = mgr.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// TestManager_Parse_Garbage verifies that malformed tokens are rejected.
func TestManager_Parse_Garbage(t *testing.T) {
	mgr := NewManager("test-secret", time.Hour)

	_, err := mgr.Parse("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
