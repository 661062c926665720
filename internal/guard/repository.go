package guard

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads employees with their role for authorization.
type Repository interface {
	EmployeeWithRole(ctx context.Context, id string) (*EmployeeRecord, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const employeeWithRoleSQL = `
SELECT e.id::text,
       COALESCE(e.name, ''),
       COALESCE(e.email, ''),
       COALESCE(e.position, ''),
       COALESCE(e.department, ''),
       e.role_id,
       COALESCE(r.name, ''),
       r.permissions,
       COALESCE((
           SELECT array_agg(p.name ORDER BY p.name)
           FROM role_permissions rp
           JOIN permissions p ON p.id = rp.permission_id
           WHERE rp.role_id = e.role_id
       ), '{}'::text[]),
       e.is_active,
       e.created_at,
       e.updated_at
FROM employees e
LEFT JOIN roles r ON r.id = e.role_id
WHERE e.id = $1`

// EmployeeWithRole fetches the employee row joined to its role and
// permission rows. Identity ids that are not UUIDs cannot match an
// employee row and report ErrEmployeeNotFound.
func (r *PGRepository) EmployeeWithRole(ctx context.Context, id string) (*EmployeeRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrEmployeeNotFound
	}
	var rec EmployeeRecord
	err := r.pool.QueryRow(ctx, employeeWithRoleSQL, id).Scan(
		&rec.ID,
		&rec.Name,
		&rec.Email,
		&rec.Position,
		&rec.Department,
		&rec.RoleID,
		&rec.RoleName,
		&rec.RolePermissions,
		&rec.GrantedPermissions,
		&rec.IsActive,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmployeeNotFound
		}
		return nil, err
	}
	return &rec, nil
}

var _ Repository = (*PGRepository)(nil)
