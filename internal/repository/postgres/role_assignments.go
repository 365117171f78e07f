package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	uuid "github.com/google/uuid"

	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/domain"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/core/port"
	"github.com/Tantor-Hub/tantor-learning-authz/internal/repository"
)

// RoleAssignmentRepository implements ledger mutations on PostgreSQL.
type RoleAssignmentRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRoleAssignmentRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewRoleAssignmentRepository(exec pgExecutor) *RoleAssignmentRepository {
	repo := &RoleAssignmentRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// WithTx returns a repository instance that executes statements within the supplied transaction.
func (r *RoleAssignmentRepository) WithTx(tx pgx.Tx) *RoleAssignmentRepository {
	if tx == nil {
		return r
	}
	return &RoleAssignmentRepository{
		pool:    r.pool,
		exec:    tx,
		builder: r.builder,
	}
}

// ListByPrincipal retrieves every ledger row for the principal, oldest first.
func (r *RoleAssignmentRepository) ListByPrincipal(ctx context.Context, principalID string) ([]domain.RoleAssignment, error) {
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

// Grant activates the assignment for (principal, role). An existing row is
// re-activated in place so repeated grants stay idempotent; otherwise a new
// active row is inserted.
func (r *RoleAssignmentRepository) Grant(ctx context.Context, principalID, role string, at time.Time) (*domain.RoleAssignment, error) {
	stmt, args, err := r.builder.
		Update("learning.role_assignments").
		Set("active", true).
		Set("updated_at", at).
		Where(squirrel.Eq{"user_id": principalID, "role": role}).
		Suffix("RETURNING id, user_id, role, active, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update assignment sql: %w", err)
	}

	assignment, err := r.scanAssignment(r.exec.QueryRow(ctx, stmt, args...))
	if err == nil {
		return assignment, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("reactivate assignment: %w", err)
	}

	insert, args, err := r.builder.
		Insert("learning.role_assignments").
		Columns("id", "user_id", "role", "active", "created_at", "updated_at").
		Values(uuid.NewString(), principalID, role, true, at, at).
		Suffix("RETURNING id, user_id, role, active, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert assignment sql: %w", err)
	}

	assignment, err = r.scanAssignment(r.exec.QueryRow(ctx, insert, args...))
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}

	return assignment, nil
}

// Revoke soft-disables the active assignment for (principal, role). The row
// is kept for audit; only the active flag flips. Returns
// repository.ErrNotFound when no active row matched.
func (r *RoleAssignmentRepository) Revoke(ctx context.Context, principalID, role string, at time.Time) error {
	stmt, args, err := r.builder.
		Update("learning.role_assignments").
		Set("active", false).
		Set("updated_at", at).
		Where(squirrel.Eq{"user_id": principalID, "role": role, "active": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build revoke assignment sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("revoke assignment: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *RoleAssignmentRepository) scanAssignment(row pgx.Row) (*domain.RoleAssignment, error) {
	var assignment domain.RoleAssignment
	if err := row.Scan(
		&assignment.ID,
		&assignment.PrincipalID,
		&assignment.Role,
		&assignment.Active,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &assignment, nil
}

var _ port.RoleAssignmentRepository = (*RoleAssignmentRepository)(nil)
