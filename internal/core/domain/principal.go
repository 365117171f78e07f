package domain

import "time"

// PrincipalStatus enumerates possible account states.
type PrincipalStatus string

const (
	PrincipalStatusPending  PrincipalStatus = "pending"
	PrincipalStatusActive   PrincipalStatus = "active"
	PrincipalStatusDisabled PrincipalStatus = "disabled"
)

// Principal mirrors the persisted representation in the users table, joined
// with its role-assignment ledger. LegacyRole is the single-role column kept
// from before the ledger existed; new grants land in Assignments only.
type Principal struct {
	ID           string
	Username     string
	Email        string
	LegacyRole   *string
	Status       PrincipalStatus
	RegisteredAt time.Time
	Assignments  []RoleAssignment
}

// RoleAssignment is one row of the role ledger. Revocation flips Active to
// false; rows are never deleted.
type RoleAssignment struct {
	ID          string
	PrincipalID string
	Role        string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EffectiveRoles resolves the principal's usable roles: the legacy role
// column (when set) unioned with the names of active assignments,
// deduplicated by exact string equality. Role names are opaque tokens, so
// there is no case folding or trimming. Inactive assignments never
// contribute, even when a duplicate active row exists for the same name.
// The result preserves first-seen order and is deterministic for a given
// snapshot.
func (p Principal) EffectiveRoles() []string {
	seen := make(map[string]struct{}, len(p.Assignments)+1)
	roles := make([]string, 0, len(p.Assignments)+1)

	if p.LegacyRole != nil && *p.LegacyRole != "" {
		seen[*p.LegacyRole] = struct{}{}
		roles = append(roles, *p.LegacyRole)
	}

	for _, assignment := range p.Assignments {
		if !assignment.Active || assignment.Role == "" {
			continue
		}
		if _, ok := seen[assignment.Role]; ok {
			continue
		}
		seen[assignment.Role] = struct{}{}
		roles = append(roles, assignment.Role)
	}

	return roles
}

// HasRole reports whether the resolved role set contains the supplied name.
func (p Principal) HasRole(name string) bool {
	for _, role := range p.EffectiveRoles() {
		if role == name {
			return true
		}
	}
	return false
}
