// Package guard is the authoritative server side permission check. Every
// call re-reads the caller's employee record, role and permissions from the
// data store.
package guard

import (
	"encoding/json"
	"strings"
	"time"
)

// EmployeeRecord is an employee row joined to its role and permission rows.
type EmployeeRecord struct {
	ID         string
	Name       string
	Email      string
	Position   string
	Department string
	RoleID     *int64
	RoleName   string
	// RolePermissions is the role's permission column as stored: a native
	// list, a JSON encoded string, raw JSON bytes or nil.
	RolePermissions any
	// GrantedPermissions are the names joined through role_permissions.
	GrantedPermissions []string
	IsActive           bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// UserWithPermissions is the normalised caller returned to handlers and
// serialised by /api/auth/me.
type UserWithPermissions struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Position    string    `json:"position"`
	Department  string    `json:"department"`
	RoleID      *int64    `json:"role_id"`
	RoleName    string    `json:"role_name"`
	Permissions []string  `json:"permissions"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ParsePermissions normalises a stored permission field. Malformed input
// yields an empty list.
func ParsePermissions(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return []string{}
	case []string:
		return cleanPermissions(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return cleanPermissions(out)
	case string:
		return parsePermissionJSON([]byte(v))
	case []byte:
		return parsePermissionJSON(v)
	case json.RawMessage:
		return parsePermissionJSON(v)
	default:
		return []string{}
	}
}

func parsePermissionJSON(data []byte) []string {
	if len(strings.TrimSpace(string(data))) == 0 {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return cleanPermissions(list)
	}
	// A JSON string wrapping the list, as written by some clients.
	var inner string
	if err := json.Unmarshal(data, &inner); err == nil && inner != string(data) {
		return parsePermissionJSON([]byte(inner))
	}
	return []string{}
}

func cleanPermissions(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MergePermissions unions the lists keeping first-seen order.
func MergePermissions(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, list := range lists {
		for _, p := range list {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

func (rec *EmployeeRecord) toUser() *UserWithPermissions {
	return &UserWithPermissions{
		ID:          rec.ID,
		Name:        rec.Name,
		Email:       rec.Email,
		Position:    rec.Position,
		Department:  rec.Department,
		RoleID:      rec.RoleID,
		RoleName:    rec.RoleName,
		Permissions: MergePermissions(ParsePermissions(rec.RolePermissions), cleanPermissions(rec.GrantedPermissions)),
		IsActive:    rec.IsActive,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}
