package domain

import "time"

// Event types published by the role-administration service and consumed by
// the authorization ledger.
const (
	EventTypeRoleGranted = "learning.role.granted"
	EventTypeRoleRevoked = "learning.role.revoked"
)

// RoleGrantedEvent represents the payload for learning.role.granted messages.
type RoleGrantedEvent struct {
	EventID     string
	PrincipalID string
	Role        string
	GrantedBy   string
	GrantedAt   time.Time
	Metadata    map[string]any
}

// RoleRevokedEvent represents the payload for learning.role.revoked messages.
// Revocation is a soft-disable of the matching ledger row.
type RoleRevokedEvent struct {
	EventID     string
	PrincipalID string
	Role        string
	RevokedBy   string
	RevokedAt   time.Time
	Reason      string
	Metadata    map[string]any
}
