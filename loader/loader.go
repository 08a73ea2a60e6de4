// Package loader is the single per-request entry point that combines the
// dev-mode short circuit, cookie session retrieval and refresh-if-needed.
package loader

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sessionworks/go-oauth-sessions/devmode"
	"github.com/sessionworks/go-oauth-sessions/internal/config"
	"github.com/sessionworks/go-oauth-sessions/refresh"
	"github.com/sessionworks/go-oauth-sessions/sessions"
)

// SessionStore reads sessions off requests and serializes them back.
type SessionStore interface {
	Read(r *http.Request) *sessions.Session
	Write(session *sessions.Session) (string, error)
}

// Coordinator runs the refresh decision for a retrieved session.
type Coordinator interface {
	RefreshIfNeeded(ctx context.Context, session *sessions.Session) refresh.Result
}

// Result is what one request gets back: the session (nil when the caller
// should require login) and an optional Set-Cookie header to forward.
type Result struct {
	Session   *sessions.Session
	SetCookie string
}

// Loader is the only type route handlers are expected to talk to, once per
// inbound request.
type Loader struct {
	cfg         *config.Config
	store       SessionStore
	coordinator Coordinator
}

// New initializes a Loader with required dependencies.
func New(cfg *config.Config, store SessionStore, coordinator Coordinator) (*Loader, error) {
	if cfg == nil {
		return nil, errors.New("[loader.New] config is required")
	}
	if store == nil {
		return nil, errors.New("[loader.New] session store is required")
	}
	if coordinator == nil {
		return nil, errors.New("[loader.New] refresh coordinator is required")
	}
	return &Loader{cfg: cfg, store: store, coordinator: coordinator}, nil
}

// Load resolves the session for one request. With the dev bypass active it
// returns the synthetic session plus a freshly written cookie so local
// testing still exercises the cookie round trip; otherwise it reads the
// cookie and passes the result through the refresh coordinator.
func (l *Loader) Load(ctx context.Context, r *http.Request) (Result, error) {
	if devmode.Enabled(l.cfg) {
		session, err := devmode.Session()
		if err != nil {
			return Result{}, errors.Wrap(err, "[Loader.Load] dev session")
		}
		header, err := l.store.Write(session)
		if err != nil {
			return Result{}, errors.Wrap(err, "[Loader.Load] write dev session cookie")
		}
		return Result{Session: session, SetCookie: header}, nil
	}

	session := l.store.Read(r)
	refreshed := l.coordinator.RefreshIfNeeded(ctx, session)
	return Result{Session: refreshed.Session, SetCookie: refreshed.SetCookie}, nil
}
