package roles

import (
	"context"
	"sort"

	"github.com/quanly-erp/quanly/internal/catalog"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
}

// Service handles role business logic.
type Service struct {
	repo    RepositoryPort
	catalog *catalog.Catalog
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cat *catalog.Catalog) *Service {
	return &Service{repo: repo, catalog: cat}
}

// ListRoles returns all stored roles with their catalog drift.
func (s *Service) ListRoles(ctx context.Context) ([]Entry, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(roles))
	for _, role := range roles {
		if role.Permissions == nil {
			role.Permissions = []string{}
		}
		out = append(out, Entry{Role: role, Drift: s.drift(role)})
	}
	return out, nil
}

// Unstored lists catalog roles that have no database row.
func (s *Service) Unstored(entries []Entry) []string {
	stored := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		stored[e.Name] = struct{}{}
	}
	out := []string{}
	for _, name := range s.catalog.Roles() {
		if _, ok := stored[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

func (s *Service) drift(role Role) Drift {
	entry, ok := s.catalog.Role(role.Name)
	if !ok {
		return Drift{Missing: []string{}, Extra: sorted(role.Permissions)}
	}
	return Drift{
		InCatalog: true,
		Missing:   difference(entry.Permissions, role.Permissions),
		Extra:     difference(role.Permissions, entry.Permissions),
	}
}

// difference returns the members of a not present in b, sorted.
func difference(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, p := range b {
		seen[p] = struct{}{}
	}
	out := []string{}
	for _, p := range a {
		if _, ok := seen[p]; !ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func sorted(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
