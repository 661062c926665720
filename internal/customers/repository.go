package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quanly-erp/quanly/internal/platform/db"
	"github.com/quanly-erp/quanly/internal/platform/httpx"
)

// Repository persists customers.
type Repository interface {
	List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error)
	Create(ctx context.Context, c Customer) (*Customer, error)
	NextCode(ctx context.Context) (string, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const customerColumns = `id::text, code, name, email, phone, tax_id, address, is_active, created_by::text, created_at, updated_at`

func (r *pgRepository) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	var (
		conditions []string
		args       []any
	)
	if req.IsActive != nil {
		args = append(args, *req.IsActive)
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if s := strings.TrimSpace(req.Search); s != "" {
		args = append(args, "%"+s+"%")
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d OR email ILIKE $%d)", len(args), len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM customers "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, req.Limit, req.Offset)
	query := fmt.Sprintf(`SELECT %s FROM customers %s ORDER BY code LIMIT $%d OFFSET $%d`,
		customerColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Create(ctx context.Context, c Customer) (*Customer, error) {
	var created *Customer
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
INSERT INTO customers (id, code, name, email, phone, tax_id, address, is_active, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '')::uuid)
RETURNING `+customerColumns,
			c.ID, c.Code, c.Name, c.Email, c.Phone, c.TaxID, c.Address, c.IsActive, deref(c.CreatedBy))
		var err error
		created, err = scanCustomer(row)
		return err
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: customer code %s", httpx.ErrDuplicate, c.Code)
		}
		return nil, err
	}
	return created, nil
}

func (r *pgRepository) NextCode(ctx context.Context) (string, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('customer_code_seq')`).Scan(&n); err != nil {
		return "", err
	}
	return fmt.Sprintf("KH%06d", n), nil
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	if err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Email, &c.Phone, &c.TaxID, &c.Address,
		&c.IsActive, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
