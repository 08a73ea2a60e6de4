// Package tokenclient talks to the authorization server's token endpoint for
// the authorization_code and refresh_token grants.
package tokenclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// TokenEndpointPath is appended to the authorization-server base URL.
const TokenEndpointPath = "/oauth/token"

// DefaultTimeout bounds a single outbound call so a hung authorization server
// cannot stall the inbound request indefinitely.
const DefaultTimeout = 5 * time.Second

var (
	MissingDomainErr       = errors.New("authorization server domain is required")
	MissingClientIDErr     = errors.New("client id is required")
	MissingClientSecretErr = errors.New("client secret is required")
	// TokenEndpointErr marks a non-success response. The upstream body is
	// deliberately not carried along, only the status.
	TokenEndpointErr = errors.New("token endpoint returned a non-success status")
)

// TokenResponse is the token endpoint's reply for either grant, per RFC 6749.
type TokenResponse struct {
	AccessToken  string `json:"access_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"` // Often omitted on refresh when the server reuses the old one
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"` // Access token lifetime in seconds
	Scope        string `json:"scope,omitempty"`
}

// Client posts JSON grant requests to {domain}/oauth/token.
type Client struct {
	domain       string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// Option defines a function type to modify a Client instance.
type Option func(*Client)

// WithHTTPClient overrides the outbound HTTP client (primarily for testing).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a token endpoint client for one authorization server.
func New(domain, clientID, clientSecret string, options ...Option) (*Client, error) {
	if domain == "" {
		return nil, MissingDomainErr
	}
	if clientID == "" {
		return nil, MissingClientIDErr
	}
	if clientSecret == "" {
		return nil, MissingClientSecretErr
	}

	c := &Client{
		domain:       domain,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// ExchangeCode trades an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*TokenResponse, error) {
	return c.post(ctx, map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"code":          code,
		"redirect_uri":  redirectURI,
	})
}

// Refresh trades a refresh token for a new token set.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	return c.post(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
		"refresh_token": refreshToken,
	})
}

func (c *Client) post(ctx context.Context, grant map[string]string) (*TokenResponse, error) {
	body, err := json.Marshal(grant)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.post] marshal grant")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.domain+TokenEndpointPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "[Client.post] build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.post] token endpoint call")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(TokenEndpointErr, "status %d", resp.StatusCode)
	}

	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, errors.Wrap(err, "[Client.post] decode token response")
	}
	return &tr, nil
}
