package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenIssuer(t *testing.T) {
	_, err := NewTokenIssuer("", 0)
	assert.Error(t, err)

	_, err = NewTokenIssuer("secret", -time.Second)
	assert.Error(t, err)

	_, err = NewTokenIssuer("secret", 0)
	assert.NoError(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	ti, _ := NewTokenIssuer("secret", 0)

	tests := []Claims{
		{Username: "ab1", Email: "a@b.com"},
		{Username: "john.doe", Email: "john@doe.org"},
		{},
	}

	for _, c := range tests {
		token, err := ti.Issue(c)
		require.NoError(t, err)

		got, err := ti.Verify(token)
		assert.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestTokenPayloadWithoutExpiry(t *testing.T) {
	ti, _ := NewTokenIssuer("secret", 0)
	token, err := ti.Issue(Claims{Username: "ab1", Email: "a@b.com"})
	require.NoError(t, err)

	payload := decodeSegment(t, strings.Split(token, ".")[1])

	assert.Equal(t, "ab1", payload["username"])
	assert.Equal(t, "a@b.com", payload["email"])
	assert.Contains(t, payload, "iat")
	assert.NotContains(t, payload, "exp")
}

func TestTokenTampering(t *testing.T) {
	ti, _ := NewTokenIssuer("secret", 0)
	token, err := ti.Issue(Claims{Username: "ab1", Email: "a@b.com"})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	for i := range parts {
		tampered := make([]string, len(parts))
		copy(tampered, parts)
		tampered[i] = flipFirstChar(parts[i])

		_, err := ti.Verify(strings.Join(tampered, "."))
		assert.ErrorIs(t, err, ErrInvalidToken, "segment %d", i)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	ti, _ := NewTokenIssuer("secret", 0)
	other, _ := NewTokenIssuer("other", 0)
	token, _ := other.Issue(Claims{Username: "ab1", Email: "a@b.com"})

	_, err := ti.Verify(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsNoneAlgorithm(t *testing.T) {
	ti, _ := NewTokenIssuer("secret", 0)
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"username": "ab1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ti.Verify(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpiry(t *testing.T) {
	ti, _ := NewTokenIssuer("secret", time.Hour)

	fresh, err := ti.Issue(Claims{Username: "ab1"})
	require.NoError(t, err)
	payload := decodeSegment(t, strings.Split(fresh, ".")[1])
	assert.Contains(t, payload, "exp")
	_, err = ti.Verify(fresh)
	assert.NoError(t, err)

	ti.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := ti.Issue(Claims{Username: "ab1"})
	require.NoError(t, err)
	_, err = ti.Verify(stale)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuedByClockAhead(t *testing.T) {
	ahead, _ := NewTokenIssuer("secret", 0)
	ahead.now = func() time.Time { return time.Now().Add(30 * time.Second) }
	local, _ := NewTokenIssuer("secret", time.Hour)

	token, err := ahead.Issue(Claims{Username: "ab1", Email: "a@b.com"})
	require.NoError(t, err)

	claims, err := local.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "ab1", claims.Username)
}

func TestTokenMalformed(t *testing.T) {
	ti, _ := NewTokenIssuer("secret", 0)

	for _, token := range []string{"", "not.a.jwt", "abc"} {
		_, err := ti.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func flipFirstChar(s string) string {
	if s[0] == 'A' {
		return "B" + s[1:]
	}
	return "A" + s[1:]
}

func decodeSegment(t *testing.T, seg string) map[string]interface{} {
	t.Helper()
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}
