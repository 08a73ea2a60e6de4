// Package config builds the process-wide configuration struct from an
// injected value lookup. Components receive the struct by reference; nothing
// reads the ambient environment directly.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	domainEnvVar        = "AUTH_DOMAIN"
	clientIDEnvVar      = "AUTH_CLIENT_ID"
	clientSecretEnvVar  = "AUTH_CLIENT_SECRET"
	sessionSecretEnvVar = "SESSION_SECRET"
	audienceEnvVar      = "AUTH_AUDIENCE"
	scopeEnvVar         = "AUTH_SCOPE"
	maxAgeDaysEnvVar    = "SESSION_MAX_AGE_DAYS"
	devBypassEnvVar     = "DEV_AUTH_BYPASS"
	envEnvVar           = "ENV"
	portEnvVar          = "PORT"
	appNameEnvVar       = "APP_NAME"
	baseURLEnvVar       = "BASE_URL"
)

// Lookup resolves a configuration value by name. One implementation exists
// per host environment; leaf code never branches on where values come from.
type Lookup interface {
	Get(name string) string
}

// EnvLookup resolves values from the process environment.
type EnvLookup struct{}

func (EnvLookup) Get(name string) string {
	return os.Getenv(name)
}

// BypassMode is the tri-state dev-bypass flag.
type BypassMode int

const (
	// BypassDefault enables the bypass only in a development environment.
	BypassDefault BypassMode = iota
	// BypassForced enables the bypass in any environment.
	BypassForced
	// BypassDisabled turns the bypass off even in development.
	BypassDisabled
)

// Config carries everything the session layer needs. It is constructed once
// per process and passed by reference.
type Config struct {
	Domain        string        // Authorization server base URL (https scheme enforced)
	ClientID      string        // OAuth2 client identifier
	ClientSecret  string        // OAuth2 client secret
	SessionSecret string        // Cookie sealing secret
	Audience      string        // Optional audience parameter
	Scopes        []string      // Optional scope override, space separated in the env
	SessionMaxAge time.Duration // Cookie lifetime ceiling
	DevBypass     BypassMode    // Dev-mode session bypass gate
	Env           string        // Deployment environment name
	Port          string        // Listen address for the HTTP server
	AppName       string        // Display name for the startup banner
	BaseURL       string        // Optional public base URL, used for logout returnTo checks
}

// Load fills a Config from the lookup. A missing required value is a fatal
// configuration error naming the variable; defaults are only applied to
// optional ones.
func Load(lookup Lookup) (*Config, error) {
	c := &Config{
		Domain:        lookup.Get(domainEnvVar),
		ClientID:      lookup.Get(clientIDEnvVar),
		ClientSecret:  lookup.Get(clientSecretEnvVar),
		SessionSecret: lookup.Get(sessionSecretEnvVar),
		Audience:      lookup.Get(audienceEnvVar),
		Env:           getValue(lookup, envEnvVar, "DEV"),
		Port:          normalizePort(getValue(lookup, portEnvVar, "8080")),
		AppName:       getValue(lookup, appNameEnvVar, "Auth Sessions"),
		BaseURL:       lookup.Get(baseURLEnvVar),
		SessionMaxAge: 7 * 24 * time.Hour,
	}

	for name, value := range map[string]string{
		domainEnvVar:        c.Domain,
		clientIDEnvVar:      c.ClientID,
		clientSecretEnvVar:  c.ClientSecret,
		sessionSecretEnvVar: c.SessionSecret,
	} {
		if value == "" {
			return nil, errors.Errorf("[config.Load] missing required configuration value %s", name)
		}
	}

	if !strings.Contains(c.Domain, "://") {
		c.Domain = "https://" + c.Domain
	}
	c.Domain = strings.TrimSuffix(c.Domain, "/")

	if scope := lookup.Get(scopeEnvVar); scope != "" {
		c.Scopes = strings.Fields(scope)
	}

	if days := lookup.Get(maxAgeDaysEnvVar); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return nil, errors.Errorf("[config.Load] %s must be a positive number of days, got %q", maxAgeDaysEnvVar, days)
		}
		c.SessionMaxAge = time.Duration(n) * 24 * time.Hour
	}

	bypass, err := parseBypassMode(lookup.Get(devBypassEnvVar))
	if err != nil {
		return nil, err
	}
	c.DevBypass = bypass

	return c, nil
}

// IsDevelopment reports whether the process runs in a development
// environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "DEV") || strings.EqualFold(c.Env, "development")
}

// SecureCookies reports whether cookies should carry the Secure attribute.
// Only plain-http development turns it off.
func (c *Config) SecureCookies() bool {
	return !c.IsDevelopment()
}

func parseBypassMode(value string) (BypassMode, error) {
	switch strings.ToLower(value) {
	case "":
		return BypassDefault, nil
	case "1", "true", "always":
		return BypassForced, nil
	case "0", "false", "never":
		return BypassDisabled, nil
	}
	return BypassDefault, errors.Errorf("[config.Load] %s must be empty, true or false, got %q", devBypassEnvVar, value)
}

func normalizePort(port string) string {
	if port != "" && port[0] != ':' {
		return ":" + port
	}
	return port
}

func getValue(lookup Lookup, name, defaultValue string) string {
	if value := lookup.Get(name); value != "" {
		return value
	}
	return defaultValue
}
