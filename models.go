package gate

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is an editorial permission level
type Role string

const (
	// RoleUser is the base role every account starts with
	RoleUser Role = "user"
	// RoleEditor can manage catalog entries
	RoleEditor Role = "editor"
	// RoleModerator can manage editors and member content
	RoleModerator Role = "moderator"
	// RoleAdmin can do everything, including role assignment
	RoleAdmin Role = "admin"
)

// Account is the local account model
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Roles         []Role     `bun:"roles,type:jsonb" json:"roles,omitempty"`
	DisplayName   string     `bun:"display_name" json:"display_name,omitempty"`
	AvatarURL     string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureRoles guarantees the role set is non-empty, defaulting to the base role.
func (a *Account) EnsureRoles() *Account {
	if len(a.Roles) == 0 {
		a.Roles = []Role{RoleUser}
	}
	return a
}

// HasRole checks membership in the account's role set.
func (a *Account) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// PendingIdentity bridges a provider-verified email to a not yet created
// account. At most one unexpired record exists per email; Replace enforces
// the invariant at the store.
type PendingIdentity struct {
	bun.BaseModel `bun:"table:pending_identities,alias:pid"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	Provider      string     `bun:"provider,notnull" json:"provider,omitempty"`
	ProviderID    string     `bun:"provider_id,notnull" json:"provider_id,omitempty"`
	DisplayName   string     `bun:"display_name" json:"display_name,omitempty"`
	AvatarURL     string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Expired reports whether the record is past its TTL. Expired rows are
// treated as absent even before the purge sweep removes them.
func (p *PendingIdentity) Expired(now time.Time) bool {
	if p == nil {
		return true
	}
	return !p.ExpiresAt.After(now)
}
