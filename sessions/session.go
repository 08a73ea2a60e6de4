// Package sessions holds the authenticated session value object and the
// decision logic that classifies it as absent, valid, refreshable or dead.
package sessions

import "errors"

var (
	MissingAccessTokenErr  = errors.New("session requires an access token")
	MissingIDTokenErr      = errors.New("session requires an id token")
	MissingRefreshTokenErr = errors.New("session requires a refresh token")
	MissingExpiryErr       = errors.New("session requires an expiry")
)

// Session is the authenticated state for one user agent. All four fields are
// always present together; construction fails otherwise. Sessions are never
// mutated in place, every transition produces a new Session or nil.
type Session struct {
	AccessToken  string `json:"accessToken"`  // Credential sent to resource servers
	IDToken      string `json:"idToken"`      // Compact JWT carrying identity claims
	RefreshToken string `json:"refreshToken"` // Long-lived credential used to mint new tokens
	ExpiresAt    int64  `json:"expiresAt"`    // When AccessToken goes stale, ms since epoch
}

// New builds a Session, enforcing that every field is populated. A session
// without a refresh token cannot be refreshed later, so it cannot be
// constructed at all.
func New(accessToken, idToken, refreshToken string, expiresAt int64) (*Session, error) {
	if accessToken == "" {
		return nil, MissingAccessTokenErr
	}
	if idToken == "" {
		return nil, MissingIDTokenErr
	}
	if refreshToken == "" {
		return nil, MissingRefreshTokenErr
	}
	if expiresAt <= 0 {
		return nil, MissingExpiryErr
	}
	return &Session{
		AccessToken:  accessToken,
		IDToken:      idToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

// Complete reports whether the session carries all four required fields.
// Store adapters use it to reject partially populated cookies.
func (s *Session) Complete() bool {
	return s != nil && s.AccessToken != "" && s.IDToken != "" && s.RefreshToken != "" && s.ExpiresAt > 0
}
