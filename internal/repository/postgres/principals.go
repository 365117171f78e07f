package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/domain"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/port"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/repository"
)

// PrincipalRepository implements port.PrincipalRepository using PostgreSQL.
type PrincipalRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPrincipalRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewPrincipalRepository(exec pgExecutor) *PrincipalRepository {
	repo := &PrincipalRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *PrincipalRepository) WithTx(tx pgx.Tx) *PrincipalRepository {
	if tx == nil {
		return r
	}
	return &PrincipalRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// GetByID retrieves a principal and its role-assignment ledger as a single
// snapshot. Both reads run against the same executor so a transactional
// caller observes one consistent view.
func (r *PrincipalRepository) GetByID(ctx context.Context, id string) (*domain.Principal, error) {
	stmt, args, err := r.builder.
		Select("id", "username", "email", "role", "status", "registered_at").
		From("learning.users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select principal sql: %w", err)
	}

	var (
		principal  domain.Principal
		email      sql.NullString
		legacyRole sql.NullString
		status     string
	)

	row := r.exec.QueryRow(ctx, stmt, args...)
	if err := row.Scan(
		&principal.ID,
		&principal.Username,
		&email,
		&legacyRole,
		&status,
		&principal.RegisteredAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("select principal: %w", err)
	}

	if email.Valid {
		principal.Email = email.String
	}
	if legacyRole.Valid && legacyRole.String != "" {
		value := legacyRole.String
		principal.LegacyRole = &value
	}
	principal.Status = domain.PrincipalStatus(status)

	assignments, err := r.listAssignments(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	principal.Assignments = assignments

	return &principal, nil
}

func (r *PrincipalRepository) listAssignments(ctx context.Context, principalID string) ([]domain.RoleAssignment, error) {
	stmt, args, err := r.builder.
		Select("id", "user_id", "role", "active", "created_at", "updated_at").
		From("learning.role_assignments").
		Where(squirrel.Eq{"user_id": principalID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list assignments sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []domain.RoleAssignment
	for rows.Next() {
		var assignment domain.RoleAssignment
		if err := rows.Scan(
			&assignment.ID,
			&assignment.PrincipalID,
			&assignment.Role,
			&assignment.Active,
			&assignment.CreatedAt,
			&assignment.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, assignment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}

	return assignments, nil
}

var _ port.PrincipalRepository = (*PrincipalRepository)(nil)
