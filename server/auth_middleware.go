package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sessionworks/go-oauth-sessions/sessions"
	"github.com/sessionworks/go-oauth-sessions/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySession stores the authenticated session for the request
const ContextKeySession ContextKey = "session"

// RequireSession is middleware that resolves the session through the loader
// once per request. A request without a usable session is redirected to
// login; otherwise the session rides the request context and any cookie
// update is forwarded to the user agent.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			result, err := s.loader.Load(r.Context(), r)
			if err != nil {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if result.SetCookie != "" {
				w.Header().Add("Set-Cookie", result.SetCookie)
			}
			if result.Session == nil {
				http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySession, result.Session)
			next(w, r.WithContext(ctx))
		}
	}
}

// SessionFromContext returns the session placed by RequireSession, or nil.
func SessionFromContext(ctx context.Context) *sessions.Session {
	session, _ := ctx.Value(ContextKeySession).(*sessions.Session)
	return session
}

// MeHandler returns the identity claims of the current session's ID token.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		if session == nil {
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}

		user := token.GetUser(session.IDToken)
		if user == nil {
			// An unparseable payload means "no user", not an error.
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Write([]byte("{}"))
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(map[string]any{
			"sub":            user.Sub,
			"name":           user.Name,
			"nickname":       user.Nickname,
			"picture":        user.Picture,
			"email":          user.Email,
			"email_verified": user.EmailVerified,
		})
	}
}
