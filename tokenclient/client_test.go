package tokenclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sessionworks/go-oauth-sessions/tokenclient"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("missing domain", func(t *testing.T) {
		_, err := tokenclient.New("", "client", "secret")
		require.ErrorIs(t, err, tokenclient.MissingDomainErr)
	})

	t.Run("missing client id", func(t *testing.T) {
		_, err := tokenclient.New("https://issuer.example.com", "", "secret")
		require.ErrorIs(t, err, tokenclient.MissingClientIDErr)
	})

	t.Run("missing client secret", func(t *testing.T) {
		_, err := tokenclient.New("https://issuer.example.com", "client", "")
		require.ErrorIs(t, err, tokenclient.MissingClientSecretErr)
	})
}

func TestExchangeCode(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "new-access",
			"id_token":      "new-id",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer srv.Close()

	c, err := tokenclient.New(srv.URL, "client-1", "secret-1")
	require.NoError(t, err)

	tr, err := c.ExchangeCode(context.Background(), "auth-code", "https://app.example.com/auth/callback")
	require.NoError(t, err)

	require.Equal(t, tokenclient.TokenEndpointPath, gotPath)
	require.Equal(t, "authorization_code", gotBody["grant_type"])
	require.Equal(t, "client-1", gotBody["client_id"])
	require.Equal(t, "secret-1", gotBody["client_secret"])
	require.Equal(t, "auth-code", gotBody["code"])
	require.Equal(t, "https://app.example.com/auth/callback", gotBody["redirect_uri"])

	require.Equal(t, "new-access", tr.AccessToken)
	require.Equal(t, "new-id", tr.IDToken)
	require.Equal(t, "new-refresh", tr.RefreshToken)
	require.Equal(t, 3600, tr.ExpiresIn)
}

func TestRefresh(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "refreshed-access",
			"id_token":     "refreshed-id",
			"expires_in":   900,
		})
	}))
	defer srv.Close()

	c, err := tokenclient.New(srv.URL, "client-1", "secret-1")
	require.NoError(t, err)

	tr, err := c.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)

	require.Equal(t, "refresh_token", gotBody["grant_type"])
	require.Equal(t, "old-refresh", gotBody["refresh_token"])
	require.Equal(t, "refreshed-access", tr.AccessToken)
	require.Empty(t, tr.RefreshToken, "server omitted refresh_token")
}

func TestPost_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant","error_description":"secret detail"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := tokenclient.New(srv.URL, "client-1", "secret-1")
	require.NoError(t, err)

	_, err = c.Refresh(context.Background(), "revoked")
	require.ErrorIs(t, err, tokenclient.TokenEndpointErr)
	require.Contains(t, err.Error(), "403")
	require.NotContains(t, err.Error(), "secret detail", "upstream bodies must not leak")
}

func TestPost_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c, err := tokenclient.New(srv.URL, "client-1", "secret-1")
	require.NoError(t, err)

	_, err = c.Refresh(context.Background(), "r")
	require.Error(t, err)
}
