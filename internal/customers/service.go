package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/quanly-erp/quanly/internal/platform/httpx"
)

// DefaultPageSize applies when a list request names no limit.
const DefaultPageSize = 50

// Service holds customer business rules.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// List returns a page of customers and the total count.
func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	if req.Limit == 0 {
		req.Limit = DefaultPageSize
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return s.repo.List(ctx, req)
}

// Create validates and stores a new customer.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest, createdBy string) (*Customer, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Code = strings.TrimSpace(strings.ToUpper(req.Code))
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if req.Code == "" {
		code, err := s.repo.NextCode(ctx)
		if err != nil {
			return nil, fmt.Errorf("generate customer code: %w", err)
		}
		req.Code = code
	}

	c := Customer{
		ID:       uuid.NewString(),
		Code:     req.Code,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		TaxID:    req.TaxID,
		Address:  req.Address,
		IsActive: true,
	}
	if createdBy != "" {
		c.CreatedBy = &createdBy
	}
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return created, nil
}
