package token

import "encoding/json"

// Claims is the decoded payload of a compact JWT. The identity claims the
// application cares about are typed; anything else the issuer adds lands in
// Extra so new claims survive a decode/inspect round trip.
type Claims struct {
	Sub           string `json:"sub,omitempty"`
	Name          string `json:"name,omitempty"`
	Nickname      string `json:"nickname,omitempty"`
	Picture       string `json:"picture,omitempty"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Iat           int64  `json:"iat,omitempty"`
	Exp           int64  `json:"exp,omitempty"`

	// Extra holds claims not covered by the typed fields above.
	Extra map[string]any `json:"-"`
}

// knownClaimKeys are the payload keys captured by typed fields.
var knownClaimKeys = []string{"sub", "name", "nickname", "picture", "email", "email_verified", "iat", "exp"}

// UnmarshalJSON fills the typed fields and collects every remaining claim
// into Extra. RFC 7519 NumericDates may carry fractional seconds, so iat and
// exp are decoded as floats and truncated.
func (c *Claims) UnmarshalJSON(data []byte) error {
	type alias Claims
	var typed struct {
		alias
		Iat float64 `json:"iat,omitempty"`
		Exp float64 `json:"exp,omitempty"`
	}
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, key := range knownClaimKeys {
		delete(all, key)
	}
	if len(all) == 0 {
		all = nil
	}

	*c = Claims(typed.alias)
	c.Iat = int64(typed.Iat)
	c.Exp = int64(typed.Exp)
	c.Extra = all
	return nil
}

// User is the identity projection of an ID token. Sub is always present; a
// payload without one does not produce a User.
type User struct {
	Sub           string
	Name          string
	Nickname      string
	Picture       string
	Email         string
	EmailVerified bool
	Iat           int64
	Exp           int64
	Extra         map[string]any
}
