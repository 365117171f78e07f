package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/domain"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/port"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/repository"
)

var (
	// ErrInvalidRole indicates an empty or whitespace-only role name.
	ErrInvalidRole = errors.New("invalid role name")
	// ErrAssignmentNotFound indicates no active assignment matched a revocation.
	ErrAssignmentNotFound = errors.New("assignment not found")
)

// RoleAdminService mutates the role-assignment ledger on behalf of the
// administration endpoints and the role event feed. The authorization engine
// itself only ever reads the ledger.
type RoleAdminService struct {
	principals  port.PrincipalRepository
	assignments port.RoleAssignmentRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewRoleAdminService constructs a RoleAdminService instance.
func NewRoleAdminService(
	principals port.PrincipalRepository,
	assignments port.RoleAssignmentRepository,
	logger *zap.Logger,
) *RoleAdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleAdminService{
		principals:  principals,
		assignments: assignments,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock for deterministic tests.
func (s *RoleAdminService) WithClock(clock func() time.Time) *RoleAdminService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// GetPrincipal returns the principal with its ledger snapshot.
func (s *RoleAdminService) GetPrincipal(ctx context.Context, id string) (*domain.Principal, error) {
	principal, err := s.principals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("get principal: %w", err)
	}
	return principal, nil
}

// ListAssignments returns every ledger row for the principal, active or not.
func (s *RoleAdminService) ListAssignments(ctx context.Context, principalID string) ([]domain.RoleAssignment, error) {
	if _, err := s.GetPrincipal(ctx, principalID); err != nil {
		return nil, err
	}

	assignments, err := s.assignments.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// Grant activates a role for the principal. Granting an already-held role
// re-activates the existing row, so the operation is idempotent.
func (s *RoleAdminService) Grant(ctx context.Context, principalID, role string) (*domain.RoleAssignment, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return nil, ErrInvalidRole
	}

	if _, err := s.GetPrincipal(ctx, principalID); err != nil {
		return nil, err
	}

	assignment, err := s.assignments.Grant(ctx, principalID, role, s.now())
	if err != nil {
		return nil, fmt.Errorf("grant role: %w", err)
	}

	s.logger.Info("role granted",
		zap.String("principal_id", principalID),
		zap.String("role", role),
	)

	return assignment, nil
}

// Revoke soft-disables the principal's active assignment for the role. The
// row survives for audit; a later grant re-activates it.
func (s *RoleAdminService) Revoke(ctx context.Context, principalID, role string) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return ErrInvalidRole
	}

	if err := s.assignments.Revoke(ctx, principalID, role, s.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAssignmentNotFound
		}
		return fmt.Errorf("revoke role: %w", err)
	}

	s.logger.Info("role revoked",
		zap.String("principal_id", principalID),
		zap.String("role", role),
	)

	return nil
}
