package gate

// roleRank orders the hierarchy. Higher ranks satisfy lower tiers.
var roleRank = map[Role]int{
	RoleUser:      0,
	RoleEditor:    1,
	RoleModerator: 2,
	RoleAdmin:     3,
}

// acceptedByTier is precomputed so tier checks are set membership, not
// rank arithmetic scattered across call sites.
var acceptedByTier = map[Role]map[Role]struct{}{
	RoleUser:      {RoleUser: {}, RoleEditor: {}, RoleModerator: {}, RoleAdmin: {}},
	RoleEditor:    {RoleEditor: {}, RoleModerator: {}, RoleAdmin: {}},
	RoleModerator: {RoleModerator: {}, RoleAdmin: {}},
	RoleAdmin:     {RoleAdmin: {}},
}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast checks if this role meets the minimum required level
func (r Role) AtLeast(min Role) bool {
	currentLevel, exists := roleRank[r]
	if !exists {
		return false
	}

	minLevel, exists := roleRank[min]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// AllRoles returns all predefined roles in hierarchical order
func AllRoles() []Role {
	return []Role{
		RoleUser,
		RoleEditor,
		RoleModerator,
		RoleAdmin,
	}
}

// ParseRole safely parses a string into a Role
func ParseRole(s string) (Role, bool) {
	role := Role(s)
	return role, role.IsValid()
}

// AcceptedRoles returns every role at or above the given tier. Unknown
// tiers yield an empty set, so nothing passes.
func AcceptedRoles(tier Role) []Role {
	accepted, ok := acceptedByTier[tier]
	if !ok {
		return nil
	}

	out := make([]Role, 0, len(accepted))
	for _, r := range AllRoles() {
		if _, ok := accepted[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// AnyAtLeast reports whether the role set intersects the accepted set for
// the tier.
func AnyAtLeast(roles []Role, tier Role) bool {
	accepted, ok := acceptedByTier[tier]
	if !ok {
		return false
	}

	for _, r := range roles {
		if _, ok := accepted[r]; ok {
			return true
		}
	}
	return false
}
