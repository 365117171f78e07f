package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/repository"
)

func TestPrincipalRepositoryGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPrincipalRepository(mock)

	registeredAt := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	createdAt := registeredAt.Add(time.Hour)

	mock.ExpectQuery(`SELECT id, username, email, role, status, registered_at FROM learning\.users`).
		WithArgs("user-123").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "role", "status", "registered_at"}).
			AddRow("user-123", "jdoe", "jdoe@example.com", "student", "active", registeredAt))

	mock.ExpectQuery(`SELECT id, user_id, role, active, created_at, updated_at FROM learning\.role_assignments`).
		WithArgs("user-123").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "role", "active", "created_at", "updated_at"}).
			AddRow("a-1", "user-123", "instructor", true, createdAt, createdAt).
			AddRow("a-2", "user-123", "secretary", false, createdAt, createdAt))

	principal, err := repo.GetByID(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}

	if principal.Username != "jdoe" {
		t.Fatalf("Username = %q", principal.Username)
	}
	if principal.LegacyRole == nil || *principal.LegacyRole != "student" {
		t.Fatalf("LegacyRole = %v", principal.LegacyRole)
	}
	if len(principal.Assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(principal.Assignments))
	}

	roles := principal.EffectiveRoles()
	if len(roles) != 2 || roles[0] != "student" || roles[1] != "instructor" {
		t.Fatalf("EffectiveRoles() = %v", roles)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPrincipalRepositoryGetByIDNullColumns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPrincipalRepository(mock)

	registeredAt := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, username, email, role, status, registered_at FROM learning\.users`).
		WithArgs("user-456").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "role", "status", "registered_at"}).
			AddRow("user-456", "nobody", nil, nil, "pending", registeredAt))

	mock.ExpectQuery(`SELECT id, user_id, role, active, created_at, updated_at FROM learning\.role_assignments`).
		WithArgs("user-456").
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "role", "active", "created_at", "updated_at"}))

	principal, err := repo.GetByID(context.Background(), "user-456")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}

	if principal.LegacyRole != nil {
		t.Fatalf("expected nil LegacyRole, got %v", *principal.LegacyRole)
	}
	if principal.Email != "" {
		t.Fatalf("expected empty email, got %q", principal.Email)
	}
	if got := principal.EffectiveRoles(); len(got) != 0 {
		t.Fatalf("expected no roles, got %v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPrincipalRepositoryGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewPrincipalRepository(mock)

	mock.ExpectQuery(`SELECT id, username, email, role, status, registered_at FROM learning\.users`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "role", "status", "registered_at"}))

	_, err = repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected repository.ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
