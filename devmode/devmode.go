// Package devmode produces a deterministic synthetic session for local
// development, bypassing the authorization handshake entirely. It never
// contacts the authorization server.
package devmode

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	"github.com/sessionworks/go-oauth-sessions/internal/config"
	"github.com/sessionworks/go-oauth-sessions/sessions"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Subject is the fixed identity of the synthetic dev user.
const Subject = "dev|123456789"

// SessionLifetime is deliberately short of effectively-infinite so the
// refresh and expiry code paths keep running in development too.
const SessionLifetime = 4 * time.Hour

const devRefreshToken = "dev-refresh-token"

// Enabled reports whether the bypass is active: forced on in any
// environment, forced off anywhere, or defaulting to on only in development.
func Enabled(cfg *config.Config) bool {
	switch cfg.DevBypass {
	case config.BypassForced:
		return true
	case config.BypassDisabled:
		return false
	}
	return cfg.IsDevelopment()
}

// Session mints the synthetic session. The placeholder token is a real
// compact JWT with its signature algorithm marked "none", so the codec and
// state machine treat it exactly like a production token.
func Session() (*sessions.Session, error) {
	now := NowTimeFunc()
	expiresAt := now.Add(SessionLifetime)

	claims := jwtlib.MapClaims{
		"sub":            Subject,
		"name":           "Dev User",
		"nickname":       "dev",
		"email":          "dev@example.com",
		"email_verified": true,
		"iat":            now.Unix(),
		"exp":            expiresAt.Unix(),
	}

	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, claims).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	if err != nil {
		return nil, errors.Wrap(err, "[devmode.Session] mint placeholder token")
	}

	return sessions.New(raw, raw, devRefreshToken, expiresAt.UnixMilli())
}
