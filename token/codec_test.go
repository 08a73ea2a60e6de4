package token_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/sessionworks/go-oauth-sessions/token"
	"github.com/stretchr/testify/require"
)

func encodeSegment(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return base64.RawURLEncoding.EncodeToString(data)
}

// buildToken assembles a compact token from a header and payload with a dummy
// signature segment. Signatures are never verified by this package.
func buildToken(t *testing.T, header, payload map[string]any) string {
	t.Helper()
	return encodeSegment(t, header) + "." + encodeSegment(t, payload) + ".sig"
}

func plainHeader() map[string]any {
	return map[string]any{"alg": "RS256", "typ": "JWT"}
}

func TestDecode(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		raw := buildToken(t, plainHeader(), map[string]any{
			"sub":   "auth0|abc123",
			"email": "john.doe@example.com",
			"exp":   int64(1700000000),
			"org":   "acme",
		})

		claims := token.Decode(raw)
		require.NotNil(t, claims)
		require.Equal(t, "auth0|abc123", claims.Sub)
		require.Equal(t, "john.doe@example.com", claims.Email)
		require.Equal(t, int64(1700000000), claims.Exp)
		require.Equal(t, "acme", claims.Extra["org"])
	})

	t.Run("fractional numeric dates truncate", func(t *testing.T) {
		raw := buildToken(t, plainHeader(), map[string]any{
			"sub": "auth0|abc123",
			"iat": 1700000000.25,
			"exp": 1700000000.5,
		})

		claims := token.Decode(raw)
		require.NotNil(t, claims)
		require.Equal(t, int64(1700000000), claims.Iat)
		require.Equal(t, int64(1700000000), claims.Exp)
	})

	t.Run("not a jwt", func(t *testing.T) {
		require.Nil(t, token.Decode("not-a-jwt"))
	})

	t.Run("empty string", func(t *testing.T) {
		require.Nil(t, token.Decode(""))
	})

	t.Run("invalid base64 payload", func(t *testing.T) {
		raw := encodeSegment(t, plainHeader()) + ".!!!not-base64!!!.sig"
		require.Nil(t, token.Decode(raw))
	})

	t.Run("payload is not json", func(t *testing.T) {
		raw := encodeSegment(t, plainHeader()) + "." + base64.RawURLEncoding.EncodeToString([]byte("plain text")) + ".sig"
		require.Nil(t, token.Decode(raw))
	})

	t.Run("encrypted payload yields nil", func(t *testing.T) {
		raw := buildToken(t, map[string]any{"alg": "dir", "enc": "A256GCM"}, map[string]any{"sub": "x"})
		require.Nil(t, token.Decode(raw))
	})
}

func TestGetUser(t *testing.T) {
	t.Run("projects identity claims", func(t *testing.T) {
		raw := buildToken(t, plainHeader(), map[string]any{
			"sub":            "auth0|abc123",
			"name":           "John Doe",
			"nickname":       "johnd",
			"email":          "john.doe@example.com",
			"email_verified": true,
		})

		user := token.GetUser(raw)
		require.NotNil(t, user)
		require.Equal(t, "auth0|abc123", user.Sub)
		require.Equal(t, "John Doe", user.Name)
		require.True(t, user.EmailVerified)
	})

	t.Run("missing sub yields nil", func(t *testing.T) {
		raw := buildToken(t, plainHeader(), map[string]any{"email": "anon@example.com"})
		require.Nil(t, token.GetUser(raw))
	})

	t.Run("undecodable yields nil", func(t *testing.T) {
		require.Nil(t, token.GetUser("garbage"))
	})
}

func TestIsValid(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	token.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { token.NowTimeFunc = time.Now })

	t.Run("unexpired token", func(t *testing.T) {
		raw := buildToken(t, plainHeader(), map[string]any{"sub": "x", "exp": now.Add(time.Hour).Unix()})
		require.True(t, token.IsValid(raw))
	})

	t.Run("expired token", func(t *testing.T) {
		raw := buildToken(t, plainHeader(), map[string]any{"sub": "x", "exp": now.Add(-time.Hour).Unix()})
		require.False(t, token.IsValid(raw))
	})

	t.Run("missing exp", func(t *testing.T) {
		raw := buildToken(t, plainHeader(), map[string]any{"sub": "x"})
		require.False(t, token.IsValid(raw))
	})

	t.Run("encrypted payload taken at face value", func(t *testing.T) {
		raw := encodeSegment(t, map[string]any{"alg": "dir", "enc": "A256GCM"}) + ".opaque.sig"
		require.True(t, token.IsValid(raw))
	})

	t.Run("wrong segment count", func(t *testing.T) {
		raw := encodeSegment(t, plainHeader()) + "." + encodeSegment(t, map[string]any{"exp": now.Add(time.Hour).Unix()})
		require.False(t, token.IsValid(raw))
	})
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	token.NowTimeFunc = func() time.Time { return now }
	t.Cleanup(func() { token.NowTimeFunc = time.Now })

	t.Run("well before the window", func(t *testing.T) {
		raw := buildToken(t, plainHeader(), map[string]any{"exp": now.Add(time.Hour).Unix()})
		require.False(t, token.NeedsRefresh(raw))
	})

	t.Run("inside the window", func(t *testing.T) {
		raw := buildToken(t, plainHeader(), map[string]any{"exp": now.Add(2 * time.Minute).Unix()})
		require.True(t, token.NeedsRefresh(raw))
	})

	t.Run("already expired", func(t *testing.T) {
		raw := buildToken(t, plainHeader(), map[string]any{"exp": now.Add(-time.Minute).Unix()})
		require.True(t, token.NeedsRefresh(raw))
	})

	t.Run("undecodable defers to session expiry", func(t *testing.T) {
		require.False(t, token.NeedsRefresh("garbage"))
	})

	t.Run("missing exp defers to session expiry", func(t *testing.T) {
		raw := buildToken(t, plainHeader(), map[string]any{"sub": "x"})
		require.False(t, token.NeedsRefresh(raw))
	})
}

func TestExpirationTime(t *testing.T) {
	t.Run("returns milliseconds", func(t *testing.T) {
		raw := buildToken(t, plainHeader(), map[string]any{"exp": int64(1700000000)})
		ms, ok := token.ExpirationTime(raw)
		require.True(t, ok)
		require.Equal(t, int64(1700000000000), ms)
	})

	t.Run("no exp claim", func(t *testing.T) {
		raw := buildToken(t, plainHeader(), map[string]any{"sub": "x"})
		_, ok := token.ExpirationTime(raw)
		require.False(t, ok)
	})
}
