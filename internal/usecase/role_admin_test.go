package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/domain"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/repository"
)

type fakeAssignmentRepo struct {
	assignments map[string][]domain.RoleAssignment
	grantErr    error
	revokeErr   error
	granted     []string
	revoked     []string
}

func (f *fakeAssignmentRepo) ListByPrincipal(ctx context.Context, principalID string) ([]domain.RoleAssignment, error) {
	return f.assignments[principalID], nil
}

func (f *fakeAssignmentRepo) Grant(ctx context.Context, principalID, role string, at time.Time) (*domain.RoleAssignment, error) {
	if f.grantErr != nil {
		return nil, f.grantErr
	}
	f.granted = append(f.granted, principalID+"/"+role)
	return &domain.RoleAssignment{
		ID:          "assignment-1",
		PrincipalID: principalID,
		Role:        role,
		Active:      true,
		CreatedAt:   at,
		UpdatedAt:   at,
	}, nil
}

func (f *fakeAssignmentRepo) Revoke(ctx context.Context, principalID, role string, at time.Time) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked = append(f.revoked, principalID+"/"+role)
	return nil
}

func newTestRoleAdmin(t *testing.T, principals *fakePrincipalRepo, assignments *fakeAssignmentRepo) *RoleAdminService {
	t.Helper()
	return NewRoleAdminService(principals, assignments, zaptest.NewLogger(t))
}

func TestRoleAdminGetPrincipalNotFound(t *testing.T) {
	service := newTestRoleAdmin(t, &fakePrincipalRepo{}, &fakeAssignmentRepo{})

	_, err := service.GetPrincipal(context.Background(), "ghost")
	if !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestRoleAdminGrant(t *testing.T) {
	principals := &fakePrincipalRepo{principals: map[string]*domain.Principal{
		"p-1": principalWithRoles("p-1"),
	}}
	assignments := &fakeAssignmentRepo{}
	service := newTestRoleAdmin(t, principals, assignments)

	assignment, err := service.Grant(context.Background(), "p-1", "  instructor  ")
	if err != nil {
		t.Fatalf("Grant returned error: %v", err)
	}
	if assignment.Role != "instructor" {
		t.Fatalf("Role = %q, want trimmed %q", assignment.Role, "instructor")
	}
	if len(assignments.granted) != 1 || assignments.granted[0] != "p-1/instructor" {
		t.Fatalf("granted = %v", assignments.granted)
	}
}

func TestRoleAdminGrantValidation(t *testing.T) {
	service := newTestRoleAdmin(t, &fakePrincipalRepo{}, &fakeAssignmentRepo{})

	for _, role := range []string{"", "   "} {
		if _, err := service.Grant(context.Background(), "p-1", role); !errors.Is(err, ErrInvalidRole) {
			t.Fatalf("Grant(%q): expected ErrInvalidRole, got %v", role, err)
		}
	}
}

func TestRoleAdminGrantUnknownPrincipal(t *testing.T) {
	assignments := &fakeAssignmentRepo{}
	service := newTestRoleAdmin(t, &fakePrincipalRepo{}, assignments)

	_, err := service.Grant(context.Background(), "ghost", "instructor")
	if !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
	if len(assignments.granted) != 0 {
		t.Fatalf("expected no grant calls, got %v", assignments.granted)
	}
}

func TestRoleAdminRevoke(t *testing.T) {
	assignments := &fakeAssignmentRepo{}
	service := newTestRoleAdmin(t, &fakePrincipalRepo{}, assignments)

	if err := service.Revoke(context.Background(), "p-1", "instructor"); err != nil {
		t.Fatalf("Revoke returned error: %v", err)
	}
	if len(assignments.revoked) != 1 || assignments.revoked[0] != "p-1/instructor" {
		t.Fatalf("revoked = %v", assignments.revoked)
	}
}

func TestRoleAdminRevokeMissingAssignment(t *testing.T) {
	assignments := &fakeAssignmentRepo{revokeErr: repository.ErrNotFound}
	service := newTestRoleAdmin(t, &fakePrincipalRepo{}, assignments)

	err := service.Revoke(context.Background(), "p-1", "instructor")
	if !errors.Is(err, ErrAssignmentNotFound) {
		t.Fatalf("expected ErrAssignmentNotFound, got %v", err)
	}
}

func TestRoleAdminListAssignments(t *testing.T) {
	principals := &fakePrincipalRepo{principals: map[string]*domain.Principal{
		"p-1": principalWithRoles("p-1", "secretary"),
	}}
	assignments := &fakeAssignmentRepo{assignments: map[string][]domain.RoleAssignment{
		"p-1": {
			{ID: "a-1", PrincipalID: "p-1", Role: "secretary", Active: true},
			{ID: "a-2", PrincipalID: "p-1", Role: "instructor", Active: false},
		},
	}}
	service := newTestRoleAdmin(t, principals, assignments)

	got, err := service.ListAssignments(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("ListAssignments returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both ledger rows, got %d", len(got))
	}
}
