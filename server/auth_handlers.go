package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sessionworks/go-oauth-sessions/authflow"
)

// Error markers appended to the login redirect after a failed handshake or
// refresh. Raw upstream error bodies never reach the user.
const (
	errMarkerInvalidState   = "invalid_state"
	errMarkerMissingParams  = "missing_params"
	errMarkerExchangeFailed = "exchange_failed"
	errMarkerAccessDenied   = "access_denied"
)

// LoginHandler redirects an already-authenticated user home, and everyone
// else off to the authorization server with a fresh state cookie.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := s.loader.Load(r.Context(), r)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if result.SetCookie != "" {
			w.Header().Add("Set-Cookie", result.SetCookie)
		}
		if result.Session != nil {
			http.Redirect(w, r, RouteHome, http.StatusSeeOther)
			return
		}

		if marker := r.URL.Query().Get("error"); marker != "" {
			log.Debug().Str("reason", marker).Msg("login restarted after a failed attempt")
		}

		redirect, err := s.authflow.BeginLogin(redirectURI(r))
		if err != nil {
			log.Err(err).Msg("failed to begin login")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		w.Header().Add("Set-Cookie", redirect.StateCookie)
		http.Redirect(w, r, redirect.URL, http.StatusFound)
	}
}

// CallbackHandler consumes the authorization server's redirect. The state
// cookie is cleared on every outcome so a login attempt cannot be replayed.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", s.store.ClearState())

		if errorParam := r.URL.Query().Get("error"); errorParam != "" {
			log.Warn().Str("upstream_error", errorParam).Msg("authorization server reported an error")
			redirectWithError(w, r, RouteLogin, errMarkerAccessDenied)
			return
		}

		code := r.URL.Query().Get("code")
		state := r.URL.Query().Get("state")

		session, err := s.authflow.CompleteLogin(r.Context(), r, code, state, redirectURI(r))
		if err != nil {
			marker := errMarkerExchangeFailed
			switch {
			case errors.Is(err, authflow.MissingCallbackParamsErr):
				marker = errMarkerMissingParams
			case errors.Is(err, authflow.StateMismatchErr):
				marker = errMarkerInvalidState
			}
			log.Warn().Err(err).Str("marker", marker).Msg("login handshake failed")
			redirectWithError(w, r, RouteLogin, marker)
			return
		}

		header, err := s.store.Write(session)
		if err != nil {
			log.Err(err).Msg("failed to serialize new session")
			redirectWithError(w, r, RouteLogin, errMarkerExchangeFailed)
			return
		}

		log.Info().Bool("has_refresh_token", session.RefreshToken != "").Msg("session established")
		w.Header().Add("Set-Cookie", header)
		http.Redirect(w, r, RouteHome, http.StatusSeeOther)
	}
}

// LogoutHandler clears the session cookie unconditionally and forwards the
// user agent to the authorization server's logout endpoint. Local logout
// succeeds even if that remote redirect later fails.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header, err := s.store.Write(nil)
		if err == nil {
			w.Header().Add("Set-Cookie", header)
		}

		returnTo := s.sanitizeReturnTo(r, r.URL.Query().Get("returnTo"))
		http.Redirect(w, r, s.authflow.LogoutURL(returnTo), http.StatusFound)
	}
}

// sanitizeReturnTo restricts the post-logout destination to this
// deployment: relative paths and the configured base URL pass, anything else
// collapses to the request origin. Absolute URLs are compared by parsed
// scheme and host, not by string prefix, so a foreign host sharing a prefix
// with the base URL cannot slip through.
func (s *Server) sanitizeReturnTo(r *http.Request, returnTo string) string {
	origin := s.config.BaseURL
	if origin == "" {
		origin = getScheme(r) + "://" + r.Host
	}

	switch {
	case returnTo == "":
		return origin + "/"
	case strings.HasPrefix(returnTo, "/") && !strings.HasPrefix(returnTo, "//"):
		return origin + returnTo
	}

	if s.config.BaseURL != "" {
		base, baseErr := url.Parse(s.config.BaseURL)
		target, targetErr := url.Parse(returnTo)
		if baseErr == nil && targetErr == nil && target.Scheme == base.Scheme && target.Host == base.Host {
			return returnTo
		}
	}
	return origin + "/"
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, marker string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(marker), http.StatusSeeOther)
}
