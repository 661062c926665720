// Package customers is the example protected resource. Every handler
// enters through guard.RequirePermission.
package customers

import "time"

// Customer is a customer record.
type Customer struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	TaxID     *string   `json:"tax_id,omitempty"`
	Address   *string   `json:"address,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedBy *string   `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateCustomerRequest is the POST /api/customers body.
type CreateCustomerRequest struct {
	Code    string  `json:"code" validate:"omitempty,max=50"`
	Name    string  `json:"name" validate:"required,max=200"`
	Email   *string `json:"email,omitempty" validate:"omitempty,email"`
	Phone   *string `json:"phone,omitempty" validate:"omitempty,max=50"`
	TaxID   *string `json:"tax_id,omitempty" validate:"omitempty,max=50"`
	Address *string `json:"address,omitempty" validate:"omitempty,max=500"`
}

// ListCustomersRequest filters GET /api/customers.
type ListCustomersRequest struct {
	Search   string `validate:"max=200"`
	IsActive *bool
	Limit    int `validate:"gte=0,lte=1000"`
	Offset   int `validate:"gte=0"`
}
