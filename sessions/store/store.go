// Package store maps a Session to and from a signed, encrypted, http-only
// cookie. It exclusively owns the wire representation; expiry decisions
// belong to the classifier, not here.
package store

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sessionworks/go-oauth-sessions/sessions"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	// SessionCookieName carries the serialized Session.
	SessionCookieName = "__session"
	// StateCookieName carries the CSRF state during the login handshake.
	StateCookieName = "__auth_state"

	// StateCookieMaxAge bounds how long a login attempt may stay in flight.
	StateCookieMaxAge = time.Hour
)

// Store seals sessions into cookies and opens them back. The cookie ceiling
// (maxAge) is independent of, and always at least, the token's own logical
// expiry so that expired-but-refreshable sessions can still be read back.
type Store struct {
	sessionAEAD cipher.AEAD
	stateAEAD   cipher.AEAD
	maxAge      time.Duration
	secure      bool
}

// Option defines a function type to modify a Store instance.
type Option func(*Store)

// WithMaxAge overrides the cookie lifetime ceiling (default 7 days).
func WithMaxAge(maxAge time.Duration) Option {
	return func(s *Store) {
		s.maxAge = maxAge
	}
}

// WithSecure toggles the Secure cookie attribute. It should be on everywhere
// except plain-http local development.
func WithSecure(secure bool) Option {
	return func(s *Store) {
		s.secure = secure
	}
}

// New creates a Store keyed from the session secret. Separate keys are
// derived for the session and state cookies so one can never be replayed as
// the other.
func New(secret string, options ...Option) (*Store, error) {
	if secret == "" {
		return nil, errors.New("[store.New] session secret is required")
	}

	sessionAEAD, err := deriveAEAD(secret, "session-cookie")
	if err != nil {
		return nil, errors.Wrap(err, "[store.New] session key")
	}
	stateAEAD, err := deriveAEAD(secret, "state-cookie")
	if err != nil {
		return nil, errors.Wrap(err, "[store.New] state key")
	}

	s := &Store{
		sessionAEAD: sessionAEAD,
		stateAEAD:   stateAEAD,
		maxAge:      sessions.DefaultMaxAge,
		secure:      true,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// MaxAge returns the configured cookie lifetime ceiling.
func (s *Store) MaxAge() time.Duration {
	return s.maxAge
}

// Write serializes a session into a Set-Cookie header value. A nil session
// produces an empty value with Max-Age=0, instructing the user agent to
// delete the cookie immediately (logout, failed refresh).
func (s *Store) Write(session *sessions.Session) (string, error) {
	if session == nil {
		return s.deleteCookie(SessionCookieName), nil
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return "", errors.Wrap(err, "[Store.Write] marshal session")
	}
	sealed, err := seal(s.sessionAEAD, payload)
	if err != nil {
		return "", errors.Wrap(err, "[Store.Write] seal session")
	}

	return s.cookie(SessionCookieName, sealed, int(s.maxAge.Seconds())), nil
}

// Read parses the session cookie from a request. Absent, tampered or
// incomplete cookies all collapse to nil; no expiry check happens here.
func (s *Store) Read(r *http.Request) *sessions.Session {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	payload, err := open(s.sessionAEAD, cookie.Value)
	if err != nil {
		return nil
	}

	var session sessions.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil
	}
	if !session.Complete() {
		return nil
	}
	return &session
}

// WriteState seals the CSRF state value into its short-lived cookie.
func (s *Store) WriteState(state string) (string, error) {
	if state == "" {
		return "", errors.New("[Store.WriteState] state is required")
	}
	sealed, err := seal(s.stateAEAD, []byte(state))
	if err != nil {
		return "", errors.Wrap(err, "[Store.WriteState] seal state")
	}
	return s.cookie(StateCookieName, sealed, int(StateCookieMaxAge.Seconds())), nil
}

// ReadState recovers the CSRF state from a request, or "" when the cookie is
// absent or tampered with.
func (s *Store) ReadState(r *http.Request) string {
	cookie, err := r.Cookie(StateCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	payload, err := open(s.stateAEAD, cookie.Value)
	if err != nil {
		return ""
	}
	return string(payload)
}

// ClearState returns a header value deleting the state cookie.
func (s *Store) ClearState() string {
	return s.deleteCookie(StateCookieName)
}

func (s *Store) cookie(name, value string, maxAge int) string {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
	return c.String()
}

func (s *Store) deleteCookie(name string) string {
	c := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1, // serializes as Max-Age=0
	}
	return c.String()
}

// deriveAEAD stretches the configured secret into a purpose-bound
// ChaCha20-Poly1305 key.
func deriveAEAD(secret, purpose string) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(purpose))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return chacha20poly1305.New(key)
}

func seal(aead cipher.AEAD, payload []byte) (string, error) {
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, payload, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func open(aead cipher.AEAD, value string) ([]byte, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("sealed value too short")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ciphertext, nil)
}
