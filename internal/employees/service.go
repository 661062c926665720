package employees

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/quanly-erp/quanly/internal/platform/httpx"
)

// DefaultPageSize applies when a list request names no limit.
const DefaultPageSize = 50

// RepositoryPort defines data access methods for employees.
type RepositoryPort interface {
	ListEmployees(ctx context.Context, req ListRequest) ([]Employee, int, error)
}

// Service handles employee business logic.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// ListEmployees returns a page of employees and the total count.
func (s *Service) ListEmployees(ctx context.Context, req ListRequest) ([]Employee, int, error) {
	if req.Limit == 0 {
		req.Limit = DefaultPageSize
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return s.repo.ListEmployees(ctx, req)
}
