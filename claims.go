package gate

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the decoded payload of a session token: subject id, an
// embedded read-only copy of the role set, and the pending-username marker
// for bootstrap-scoped sessions.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID             string `json:"uid,omitempty"`
	Roles           []Role `json:"roles,omitempty"`
	PendingUsername bool   `json:"pnu,omitempty"`
}

// AccountID returns the subject account id
func (c *SessionClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// HasRole checks membership in the embedded role set
func (c *SessionClaims) HasRole(role Role) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAtLeast reports whether any embedded role sits at or above the tier.
func (c *SessionClaims) IsAtLeast(tier Role) bool {
	return AnyAtLeast(c.Roles, tier)
}

// Expires returns the expiration time
func (c *SessionClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Issued returns the issuance time
func (c *SessionClaims) Issued() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = newNonce()
	}
}
