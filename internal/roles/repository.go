package roles

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quanly-erp/quanly/internal/guard"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const listRolesSQL = `
SELECT r.id,
       r.name,
       r.description,
       r.permissions,
       COALESCE((
           SELECT array_agg(p.name ORDER BY p.name)
           FROM role_permissions rp
           JOIN permissions p ON p.id = rp.permission_id
           WHERE rp.role_id = r.id
       ), '{}'::text[]),
       (SELECT COUNT(*) FROM employees e WHERE e.role_id = r.id AND e.is_active),
       r.created_at,
       r.updated_at
FROM roles r
ORDER BY r.name`

// ListRoles returns all roles. The legacy permissions column and the
// role_permissions rows are merged the same way the route guard merges them.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, listRolesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var (
			role    Role
			legacy  []byte
			granted []string
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &legacy, &granted,
			&role.Employees, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		role.Permissions = guard.MergePermissions(guard.ParsePermissions(legacy), granted)
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}
