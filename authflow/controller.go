// Package authflow implements the CSRF-protected OAuth2 authorization code
// handshake: building the login redirect and consuming its callback.
package authflow

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sessionworks/go-oauth-sessions/sessions"
	"github.com/sessionworks/go-oauth-sessions/tokenclient"
	"golang.org/x/oauth2"
)

const (
	// AuthorizeEndpointPath is the authorization server's redirect target.
	AuthorizeEndpointPath = "/authorize"
	// LogoutEndpointPath ends the authorization server's own session.
	LogoutEndpointPath = "/v2/logout"
)

var (
	MissingCallbackParamsErr = errors.New("callback is missing code or state parameters")
	// StateMismatchErr is a CSRF failure: the callback's state does not match
	// the one this service handed out. No token exchange may follow it.
	StateMismatchErr = errors.New("state parameter does not match the login state cookie")
)

// Exchanger trades an authorization code for tokens.
type Exchanger interface {
	ExchangeCode(ctx context.Context, code, redirectURI string) (*tokenclient.TokenResponse, error)
}

// StateCookies reads and writes the anti-forgery state cookie.
type StateCookies interface {
	WriteState(state string) (string, error)
	ReadState(r *http.Request) string
	ClearState() string
}

// LoginRedirect is everything needed to send a user agent off to
// authenticate: the authorization URL and the state cookie that must
// accompany it.
type LoginRedirect struct {
	URL         string
	StateCookie string
}

// Controller drives one login attempt from NotStarted through
// AwaitingCallback to Authenticated or Failed. Nothing persists across a
// failure; the user restarts from scratch.
type Controller struct {
	domain    string
	clientID  string
	audience  string
	scopes    []string
	cookies   StateCookies
	exchanger Exchanger
	newState  func() string
	nowTime   func() time.Time
}

// Option defines a function type to modify a Controller instance.
type Option func(*Controller)

// WithAudience adds the optional audience parameter to authorization
// requests.
func WithAudience(audience string) Option {
	return func(c *Controller) {
		c.audience = audience
	}
}

// WithScopes overrides the requested scopes. Callers overriding them must
// keep an offline/refresh-capable scope or sessions cannot be constructed.
func WithScopes(scopes []string) Option {
	return func(c *Controller) {
		if len(scopes) > 0 {
			c.scopes = scopes
		}
	}
}

// WithStateGenerator sets the state source (primarily for testing).
func WithStateGenerator(newState func() string) Option {
	return func(c *Controller) {
		c.newState = newState
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(c *Controller) {
		c.nowTime = nowFunc
	}
}

// NewController initializes a Controller with required dependencies.
func NewController(domain, clientID string, cookies StateCookies, exchanger Exchanger, options ...Option) (*Controller, error) {
	if domain == "" {
		return nil, errors.New("[NewController] authorization server domain is required")
	}
	if clientID == "" {
		return nil, errors.New("[NewController] client id is required")
	}
	if cookies == nil {
		return nil, errors.New("[NewController] state cookies are required")
	}
	if exchanger == nil {
		return nil, errors.New("[NewController] exchanger is required")
	}

	c := &Controller{
		domain:    domain,
		clientID:  clientID,
		scopes:    []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess},
		cookies:   cookies,
		exchanger: exchanger,
		newState:  uuid.NewString, // UUIDv4, 122 bits of entropy
		nowTime:   time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// BeginLogin generates a fresh state value, seals it into the short-lived
// state cookie, and builds the authorization URL embedding it.
func (c *Controller) BeginLogin(redirectURI string) (*LoginRedirect, error) {
	state := c.newState()

	stateCookie, err := c.cookies.WriteState(state)
	if err != nil {
		return nil, errors.Wrap(err, "[Controller.BeginLogin] write state cookie")
	}

	cfg := oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: redirectURI,
		Scopes:      c.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.domain + AuthorizeEndpointPath,
			TokenURL: c.domain + tokenclient.TokenEndpointPath,
		},
	}

	var opts []oauth2.AuthCodeOption
	if c.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", c.audience))
	}

	return &LoginRedirect{
		URL:         cfg.AuthCodeURL(state, opts...),
		StateCookie: stateCookie,
	}, nil
}

// CompleteLogin consumes the callback. Parameter validation precedes state
// verification, and the state must match the cookie exactly before any token
// exchange is attempted. The exchange response must carry a refresh token;
// there is no prior token to fall back on at initial login.
func (c *Controller) CompleteLogin(ctx context.Context, r *http.Request, code, state, redirectURI string) (*sessions.Session, error) {
	if code == "" || state == "" {
		return nil, MissingCallbackParamsErr
	}

	stored := c.cookies.ReadState(r)
	if stored == "" || stored != state {
		return nil, StateMismatchErr
	}

	tr, err := c.exchanger.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return nil, errors.Wrap(err, "[Controller.CompleteLogin] code exchange")
	}

	expiresAt := c.nowTime().Add(time.Duration(tr.ExpiresIn) * time.Second).UnixMilli()
	session, err := sessions.New(tr.AccessToken, tr.IDToken, tr.RefreshToken, expiresAt)
	if err != nil {
		return nil, errors.Wrap(err, "[Controller.CompleteLogin] exchange response")
	}
	return session, nil
}

// LogoutURL builds the authorization server's logout redirect. Local logout
// never depends on this succeeding remotely.
func (c *Controller) LogoutURL(returnTo string) string {
	query := url.Values{"client_id": {c.clientID}}
	if returnTo != "" {
		query.Set("returnTo", returnTo)
	}
	return c.domain + LogoutEndpointPath + "?" + query.Encode()
}
