// Package refresh orchestrates the refresh_token grant when a session's
// access token is due to expire.
package refresh

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sessionworks/go-oauth-sessions/sessions"
	"github.com/sessionworks/go-oauth-sessions/tokenclient"
)

// Refresher performs the refresh_token grant against the authorization
// server.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*tokenclient.TokenResponse, error)
}

// CookieWriter serializes a session (or a deletion) into a Set-Cookie header
// value.
type CookieWriter interface {
	Write(session *sessions.Session) (string, error)
}

// Result is what a refresh pass produces. SetCookie is empty when the cookie
// was not touched; needless rewrites of an unchanged session cause avoidable
// Set-Cookie chatter.
type Result struct {
	Session   *sessions.Session
	SetCookie string
}

// Coordinator decides whether to run a refresh and handles the
// success/failure transitions. It never retries: a failed refresh fully
// invalidates the session and the caller prompts re-authentication.
type Coordinator struct {
	refresher  Refresher
	cookies    CookieWriter
	classifier *sessions.Classifier
	nowTime    func() time.Time
}

// Option defines a function type to modify a Coordinator instance.
type Option func(*Coordinator)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Coordinator) {
		c.nowTime = nowFunc
	}
}

// NewCoordinator initializes a Coordinator with required dependencies.
func NewCoordinator(refresher Refresher, cookies CookieWriter, classifier *sessions.Classifier, options ...Option) (*Coordinator, error) {
	if refresher == nil {
		return nil, errors.New("[NewCoordinator] refresher is required")
	}
	if cookies == nil {
		return nil, errors.New("[NewCoordinator] cookie writer is required")
	}
	if classifier == nil {
		return nil, errors.New("[NewCoordinator] classifier is required")
	}

	c := &Coordinator{
		refresher:  refresher,
		cookies:    cookies,
		classifier: classifier,
		nowTime:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// RefreshIfNeeded passes a session through unchanged when no refresh is due,
// otherwise runs the refresh grant. A successful refresh yields a new session
// and its cookie header; any failure yields a nil session and a
// cookie-deletion header.
func (c *Coordinator) RefreshIfNeeded(ctx context.Context, session *sessions.Session) Result {
	if session == nil || !c.classifier.NeedsRefresh(session) {
		return Result{Session: session}
	}

	tr, err := c.refresher.Refresh(ctx, session.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("token refresh failed, clearing session")
		return c.clear()
	}

	// A response without a lifetime would mint a session born expired,
	// re-running the grant on every request.
	if tr.ExpiresIn <= 0 {
		log.Warn().Msg("refresh response carried no token lifetime, clearing session")
		return c.clear()
	}

	// Authorization servers commonly reuse refresh tokens; fall back to the
	// previous one when the response omits it.
	refreshToken := tr.RefreshToken
	if refreshToken == "" {
		refreshToken = session.RefreshToken
	}

	expiresAt := c.nowTime().Add(time.Duration(tr.ExpiresIn) * time.Second).UnixMilli()
	refreshed, err := sessions.New(tr.AccessToken, tr.IDToken, refreshToken, expiresAt)
	if err != nil {
		log.Warn().Err(err).Msg("refresh response did not yield a complete session, clearing")
		return c.clear()
	}

	header, err := c.cookies.Write(refreshed)
	if err != nil {
		log.Err(err).Msg("failed to serialize refreshed session, clearing")
		return c.clear()
	}

	log.Debug().Int64("expires_at", refreshed.ExpiresAt).Msg("session refreshed")
	return Result{Session: refreshed, SetCookie: header}
}

func (c *Coordinator) clear() Result {
	header, err := c.cookies.Write(nil)
	if err != nil {
		// Deletion headers carry no payload; this cannot realistically fail.
		log.Err(err).Msg("failed to build session deletion header")
	}
	return Result{Session: nil, SetCookie: header}
}
