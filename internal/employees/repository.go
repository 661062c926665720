package employees

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListEmployees returns one page of employees and the total match count.
func (r *Repository) ListEmployees(ctx context.Context, req ListRequest) ([]Employee, int, error) {
	var (
		conditions []string
		args       []any
	)
	if s := strings.TrimSpace(req.Search); s != "" {
		args = append(args, "%"+s+"%")
		conditions = append(conditions, fmt.Sprintf("(e.name ILIKE $%d OR e.email ILIKE $%d)", len(args), len(args)))
	}
	if req.Role != "" {
		args = append(args, req.Role)
		conditions = append(conditions, fmt.Sprintf("r.name = $%d", len(args)))
	}
	if req.IsActive != nil {
		args = append(args, *req.IsActive)
		conditions = append(conditions, fmt.Sprintf("e.is_active = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	from := "FROM employees e LEFT JOIN roles r ON r.id = e.role_id " + where

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+from, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, req.Limit, req.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
SELECT e.id::text, e.name, e.email, e.position, e.department, COALESCE(r.name, ''),
       e.is_active, e.created_at, e.updated_at
%s
ORDER BY e.name, e.email
LIMIT $%d OFFSET $%d`, from, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Employee{}
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Position, &e.Department, &e.Role,
			&e.IsActive, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
