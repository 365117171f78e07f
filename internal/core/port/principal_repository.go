package port

import (
	"context"
	"time"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/domain"
)

// PrincipalRepository exposes the read side of principal persistence. GetByID
// returns the principal row together with its full role-assignment ledger as
// one snapshot; authorization never re-reads within a request.
type PrincipalRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Principal, error)
}

// RoleAssignmentRepository mutates the role-assignment ledger on behalf of
// the role-administration surface and the role event feed. Grant re-activates
// an existing row for the same (principal, role) pair instead of inserting a
// duplicate; Revoke soft-disables, never deletes.
type RoleAssignmentRepository interface {
	ListByPrincipal(ctx context.Context, principalID string) ([]domain.RoleAssignment, error)
	Grant(ctx context.Context, principalID, role string, at time.Time) (*domain.RoleAssignment, error)
	Revoke(ctx context.Context, principalID, role string, at time.Time) error
}
