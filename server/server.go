// Package server exposes the inbound route contract around the session
// layer: login, callback, logout and a session-gated identity endpoint.
package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/sessionworks/go-oauth-sessions/authflow"
	"github.com/sessionworks/go-oauth-sessions/internal/config"
	"github.com/sessionworks/go-oauth-sessions/loader"
	"github.com/sessionworks/go-oauth-sessions/refresh"
	"github.com/sessionworks/go-oauth-sessions/sessions"
	"github.com/sessionworks/go-oauth-sessions/sessions/store"
	"github.com/sessionworks/go-oauth-sessions/tokenclient"
)

type Server struct {
	mux    *http.ServeMux
	routes []string
	config *config.Config

	store    *store.Store
	authflow *authflow.Controller
	loader   *loader.Loader
}

func New(cfg *config.Config) (*Server, error) {
	sessionStore, err := store.New(cfg.SessionSecret,
		store.WithMaxAge(cfg.SessionMaxAge),
		store.WithSecure(cfg.SecureCookies()),
	)
	if err != nil {
		return nil, fmt.Errorf("[server.New] session store: %w", err)
	}

	tokenClient, err := tokenclient.New(cfg.Domain, cfg.ClientID, cfg.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("[server.New] token client: %w", err)
	}

	classifier := sessions.NewClassifier(sessions.WithMaxAge(cfg.SessionMaxAge))
	coordinator, err := refresh.NewCoordinator(tokenClient, sessionStore, classifier)
	if err != nil {
		return nil, fmt.Errorf("[server.New] refresh coordinator: %w", err)
	}

	controllerOpts := []authflow.Option{}
	if cfg.Audience != "" {
		controllerOpts = append(controllerOpts, authflow.WithAudience(cfg.Audience))
	}
	if len(cfg.Scopes) > 0 {
		controllerOpts = append(controllerOpts, authflow.WithScopes(cfg.Scopes))
	}
	controller, err := authflow.NewController(cfg.Domain, cfg.ClientID, sessionStore, tokenClient, controllerOpts...)
	if err != nil {
		return nil, fmt.Errorf("[server.New] authflow controller: %w", err)
	}

	sessionLoader, err := loader.New(cfg, sessionStore, coordinator)
	if err != nil {
		return nil, fmt.Errorf("[server.New] loader: %w", err)
	}

	s := &Server{
		mux:      http.NewServeMux(),
		config:   cfg,
		store:    sessionStore,
		authflow: controller,
		loader:   sessionLoader,
	}

	s.initRoutes()
	s.logRoutes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if !s.config.IsDevelopment() {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		log.Info().Str("route", route).Msg("registered")
	}
}

// getScheme determines the inbound scheme (http/https), trusting a proxy's
// X-Forwarded-Proto header when present.
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

// redirectURI derives the callback URL registered for this deployment from
// the inbound request.
func redirectURI(r *http.Request) string {
	return getScheme(r) + "://" + r.Host + RouteCallback
}
