package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildToken(t *testing.T, issuer string, notBefore, expiry time.Time) jwt.Token {
	t.Helper()
	token, err := jwt.NewBuilder().
		Issuer(issuer).
		Subject("user-1").
		IssuedAt(notBefore).
		NotBefore(notBefore).
		Expiration(expiry).
		Build()
	require.NoError(t, err)
	return token
}

func TestTokenValidatorAcceptsValidToken(t *testing.T) {
	now := time.Now()
	token := buildToken(t, "lapak-id", now, now.Add(time.Minute))

	validator := TokenValidator{Issuer: "lapak-id", ClockSkew: time.Second, Algorithm: jwa.HS256}
	require.NoError(t, validator.Validate(token, jwa.HS256, now))
}

func TestTokenValidatorIssuerMismatch(t *testing.T) {
	now := time.Now()
	token := buildToken(t, "somewhere-else", now, now.Add(time.Minute))

	validator := TokenValidator{Issuer: "lapak-id", Algorithm: jwa.HS256}
	require.Error(t, validator.Validate(token, jwa.HS256, now))
}

func TestTokenValidatorExpiredToken(t *testing.T) {
	now := time.Now()
	token := buildToken(t, "lapak-id", now.Add(-2*time.Hour), now.Add(-time.Minute))

	validator := TokenValidator{Issuer: "lapak-id", Algorithm: jwa.HS256}
	require.Error(t, validator.Validate(token, jwa.HS256, now))
}

func TestTokenValidatorNotYetValid(t *testing.T) {
	now := time.Now()
	token := buildToken(t, "lapak-id", now.Add(5*time.Minute), now.Add(10*time.Minute))

	validator := TokenValidator{Issuer: "lapak-id", ClockSkew: time.Second, Algorithm: jwa.HS256}
	require.Error(t, validator.Validate(token, jwa.HS256, now))
}

func TestTokenValidatorAlgorithmMismatch(t *testing.T) {
	now := time.Now()
	token := buildToken(t, "lapak-id", now, now.Add(time.Minute))

	validator := TokenValidator{Issuer: "lapak-id", Algorithm: jwa.HS256}
	require.Error(t, validator.Validate(token, jwa.RS256, now))
}
