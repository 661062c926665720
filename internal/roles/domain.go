// Package roles exposes the role directory: the roles stored in Postgres,
// the permissions granted to each, and how those grants differ from the
// role catalog the edge gate decides with.
package roles

import "time"

// Role is a stored role with its effective permissions.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
	Employees   int       `json:"employees"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Drift lists the differences between a stored role and its catalog entry.
type Drift struct {
	InCatalog bool `json:"in_catalog"`
	// Missing are catalog permissions the database does not grant.
	Missing []string `json:"missing"`
	// Extra are database grants the catalog does not list.
	Extra []string `json:"extra"`
}

// InSync reports whether the stored role matches the catalog.
func (d Drift) InSync() bool {
	return d.InCatalog && len(d.Missing) == 0 && len(d.Extra) == 0
}

// Entry pairs a stored role with its drift report.
type Entry struct {
	Role
	Drift Drift `json:"drift"`
}
