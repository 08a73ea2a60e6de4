package sessions

import (
	"time"

	"github.com/sessionworks/go-oauth-sessions/token"
)

// DefaultMaxAge is the outer lifetime bound on a session cookie: how long an
// expired session may linger before refresh stops being an option.
const DefaultMaxAge = 7 * 24 * time.Hour // 7 days

// State classifies a session for one request.
type State int

const (
	// StateAbsent means no session was presented, or it was unreadable.
	StateAbsent State = iota
	// StateValid means the access token has not crossed its nominal expiry.
	StateValid
	// StateRefreshable means the access token expired but the session is
	// still inside the cookie's outer lifetime and can be refreshed.
	StateRefreshable
	// StateDead means the session is beyond saving and is treated as absent.
	StateDead
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateValid:
		return "valid"
	case StateRefreshable:
		return "refreshable"
	case StateDead:
		return "dead"
	}
	return "unknown"
}

// Classifier is the pure decision logic over a session and the current time.
// It keeps no state of its own beyond configuration.
type Classifier struct {
	maxAge  time.Duration
	nowTime func() time.Time
}

// ClassifierOption defines a function type to modify a Classifier instance.
type ClassifierOption func(*Classifier)

// WithMaxAge overrides the outer cookie lifetime bound.
func WithMaxAge(maxAge time.Duration) ClassifierOption {
	return func(c *Classifier) {
		c.maxAge = maxAge
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ClassifierOption {
	return func(c *Classifier) {
		c.nowTime = nowFunc
	}
}

// NewClassifier creates a Classifier with the default 7 day outer bound.
func NewClassifier(options ...ClassifierOption) *Classifier {
	c := &Classifier{
		maxAge:  DefaultMaxAge,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// MaxAge returns the configured outer lifetime bound.
func (c *Classifier) MaxAge() time.Duration {
	return c.maxAge
}

// Classify buckets a session into one of the four states. Separating
// "expired" from "refreshable" lets a session survive brief refresh outages
// across requests instead of forcing re-login the instant the access token
// crosses its nominal expiry.
func (c *Classifier) Classify(s *Session) State {
	if s == nil {
		return StateAbsent
	}
	if !s.Complete() {
		return StateDead
	}

	now := c.nowTime().UnixMilli()
	if s.ExpiresAt > now {
		return StateValid
	}
	if now-c.maxAge.Milliseconds() < s.ExpiresAt {
		return StateRefreshable
	}
	return StateDead
}

// NeedsRefresh reports whether a refresh is due: a valid session inside the
// refresh window, or any refreshable session.
func (c *Classifier) NeedsRefresh(s *Session) bool {
	switch c.Classify(s) {
	case StateValid:
		now := c.nowTime().UnixMilli()
		return s.ExpiresAt-now <= token.RefreshWindow.Milliseconds()
	case StateRefreshable:
		return true
	}
	return false
}
