// Package rbac contains the access decision functions shared by the edge
// gate, the server route guard and the client permission context.
package rbac

import (
	"strings"

	"github.com/quanly-erp/quanly/internal/catalog"
)

// Pages every authenticated user may open whatever the catalog says, so a
// broken role can never lock a user out.
const (
	PageDashboard = "/dashboard"
	PageProfile   = "/profile"
)

// IsAlwaysAllowed reports whether path is one of the lockout-safety pages.
func IsAlwaysAllowed(path string) bool {
	return path == PageDashboard || path == PageProfile
}

// DecidePath allows path when it is a lockout-safety page or starts with one
// of the given page prefixes.
func DecidePath(pages []string, path string) bool {
	if path == "" || !strings.HasPrefix(path, "/") {
		return false
	}
	if IsAlwaysAllowed(path) {
		return true
	}
	for _, prefix := range pages {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Decider evaluates role based path decisions against a catalog.
type Decider struct {
	Catalog *catalog.Catalog
}

// NewDecider returns a Decider for c.
func NewDecider(c *catalog.Catalog) Decider {
	return Decider{Catalog: c}
}

// AllowPath reports whether role may open path.
func (d Decider) AllowPath(role, path string) bool {
	return DecidePath(d.Catalog.AllowedPages(role), path)
}

// HasPermission reports whether perm is in granted. Matching is exact and
// case-sensitive.
func HasPermission(granted []string, perm string) bool {
	if perm == "" {
		return false
	}
	for _, g := range granted {
		if g == perm {
			return true
		}
	}
	return false
}

// HasAll reports whether every required permission is granted. An empty
// requirement is satisfied.
func HasAll(granted []string, required ...string) bool {
	return NewSet(granted).HasAll(required...)
}

// HasAny reports whether at least one required permission is granted. An
// empty requirement is never satisfied.
func HasAny(granted []string, required ...string) bool {
	return NewSet(granted).HasAny(required...)
}

// Set is a permission set built once and queried many times.
type Set map[string]struct{}

// NewSet builds a Set from perms, ignoring blanks.
func NewSet(perms []string) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		if p == "" {
			continue
		}
		s[p] = struct{}{}
	}
	return s
}

// Has reports membership of perm.
func (s Set) Has(perm string) bool {
	if perm == "" {
		return false
	}
	_, ok := s[perm]
	return ok
}

// HasAll reports whether s contains every permission in required.
func (s Set) HasAll(required ...string) bool {
	for _, r := range required {
		if !s.Has(r) {
			return false
		}
	}
	return true
}

// HasAny reports whether s contains one of required.
func (s Set) HasAny(required ...string) bool {
	for _, r := range required {
		if s.Has(r) {
			return true
		}
	}
	return false
}
