// Package employees lists the employee directory together with the role
// each employee resolves to in the route guard.
package employees

import "time"

// Employee is a directory row.
type Employee struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Position   string    `json:"position"`
	Department string    `json:"department"`
	Role       string    `json:"role"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ListRequest filters GET /api/employees.
type ListRequest struct {
	Search   string `validate:"max=200"`
	Role     string `validate:"omitempty,max=100"`
	IsActive *bool
	Limit    int `validate:"gte=0,lte=500"`
	Offset   int `validate:"gte=0"`
}
