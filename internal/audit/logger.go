package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Logger writes denials into audit_logs.
type Logger struct {
	pool *pgxpool.Pool
}

// NewLogger returns a new Logger.
func NewLogger(pool *pgxpool.Pool) *Logger {
	return &Logger{pool: pool}
}

// Record persists the denial.
func (l *Logger) Record(ctx context.Context, d Denial) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	if d.Layer == "" || d.Reason == "" {
		return errors.New("audit log requires layer and reason")
	}
	meta, err := json.Marshal(map[string]any{
		"user_id":    d.UserID,
		"role":       d.Role,
		"path":       d.Path,
		"permission": d.Permission,
		"request_id": d.RequestID,
		"reason":     d.Reason,
	})
	if err != nil {
		return err
	}
	at := d.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at) VALUES ($1::uuid, $2, $3, $4, $5, $6)`,
		actorID(d.UserID), "access_denied", d.Layer, entityID(d), meta, at)
	return err
}

// Recent lists the latest denials, newest first.
func (l *Logger) Recent(ctx context.Context, limit int) ([]Denial, error) {
	if l == nil || l.pool == nil {
		return nil, errors.New("audit logger not initialised")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx, `
SELECT COALESCE(actor_id::text, ''), entity, meta, occurred_at
FROM audit_logs
WHERE action = 'access_denied'
ORDER BY occurred_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Denial
	for rows.Next() {
		var (
			d    Denial
			meta []byte
		)
		if err := rows.Scan(&d.UserID, &d.Layer, &meta, &d.At); err != nil {
			return nil, err
		}
		var m map[string]string
		if err := json.Unmarshal(meta, &m); err == nil {
			if d.UserID == "" {
				d.UserID = m["user_id"]
			}
			d.Role = m["role"]
			d.Path = m["path"]
			d.Permission = m["permission"]
			d.RequestID = m["request_id"]
			d.Reason = m["reason"]
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Prune deletes denials recorded before cutoff and reports how many rows
// were removed.
func (l *Logger) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if l == nil || l.pool == nil {
		return 0, errors.New("audit logger not initialised")
	}
	tag, err := l.pool.Exec(ctx, `DELETE FROM audit_logs WHERE action = 'access_denied' AND occurred_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// actorID returns the UUID actor column value, or nil when the identity id
// is not a UUID. The raw id is kept in meta either way.
func actorID(userID string) *string {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil
	}
	s := id.String()
	return &s
}

func entityID(d Denial) string {
	if d.Permission != "" {
		return d.Permission
	}
	if d.Path != "" {
		return d.Path
	}
	return d.Reason
}
