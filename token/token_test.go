package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	userID := uuid.New()
	signed, expiresAt, err := issuer.Issue(userID, "ana@example.com")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	got, err := issuer.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestIssuer_RejectsExpired(t *testing.T) {
	issuer, err := NewIssuer("test-secret", time.Minute)
	require.NoError(t, err)

	issued := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return issued }
	signed, _, err := issuer.Issue(uuid.New(), "")
	require.NoError(t, err)

	issuer.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = issuer.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RejectsOtherSecret(t *testing.T) {
	a, err := NewIssuer("secret-a", time.Hour)
	require.NoError(t, err)
	b, err := NewIssuer("secret-b", time.Hour)
	require.NoError(t, err)

	signed, _, err := a.Issue(uuid.New(), "")
	require.NoError(t, err)

	_, err = b.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RejectsUnsignedToken(t *testing.T) {
	issuer, err := NewIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "acasinha",
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuer_RequiresSecret(t *testing.T) {
	_, err := NewIssuer("", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
}
