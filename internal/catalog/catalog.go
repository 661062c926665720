// Package catalog holds the static role catalog: which permission strings,
// page prefixes and navigation entries every role owns.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var permissionPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*:[a-z][a-z0-9_-]*$`)

// ErrInvalidCatalog wraps every validation failure raised while loading.
var ErrInvalidCatalog = errors.New("catalog: invalid")

// NavItem is a single sidebar entry.
type NavItem struct {
	Title      string `json:"title"`
	Href       string `json:"href"`
	Icon       Icon   `json:"icon"`
	Permission string `json:"permission,omitempty"`
}

// Role bundles everything the catalog knows about one role name.
type Role struct {
	Name         string
	Permissions  []string
	AllowedPages []string
	Navigation   []NavItem
}

// Catalog is an immutable role lookup table.
type Catalog struct {
	roles map[string]Role
	order []string
}

type fileNavItem struct {
	Title      string `yaml:"title"`
	Href       string `yaml:"href"`
	Icon       string `yaml:"icon"`
	Permission string `yaml:"permission"`
}

type fileRole struct {
	Name         string        `yaml:"name"`
	Permissions  []string      `yaml:"permissions"`
	AllowedPages []string      `yaml:"allowed_pages"`
	Navigation   []fileNavItem `yaml:"navigation"`
}

type fileCatalog struct {
	Roles []fileRole `yaml:"roles"`
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// MustDefault is Default for callers that cannot recover from a broken
// embedded catalog.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads the catalog from path, or the embedded one when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc fileCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if len(doc.Roles) == 0 {
		return nil, fmt.Errorf("%w: no roles defined", ErrInvalidCatalog)
	}
	c := &Catalog{roles: make(map[string]Role, len(doc.Roles))}
	for _, fr := range doc.Roles {
		role, err := buildRole(fr)
		if err != nil {
			return nil, err
		}
		if _, dup := c.roles[role.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate role %q", ErrInvalidCatalog, role.Name)
		}
		c.roles[role.Name] = role
		c.order = append(c.order, role.Name)
	}
	return c, nil
}

func buildRole(fr fileRole) (Role, error) {
	name := strings.TrimSpace(fr.Name)
	if name == "" {
		return Role{}, fmt.Errorf("%w: role without name", ErrInvalidCatalog)
	}
	role := Role{Name: name}

	seen := make(map[string]struct{}, len(fr.Permissions))
	for _, p := range fr.Permissions {
		p = strings.TrimSpace(p)
		if !permissionPattern.MatchString(p) {
			return Role{}, fmt.Errorf("%w: role %q: malformed permission %q", ErrInvalidCatalog, name, p)
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		role.Permissions = append(role.Permissions, p)
	}

	for _, page := range fr.AllowedPages {
		page = strings.TrimSpace(page)
		if !strings.HasPrefix(page, "/") {
			return Role{}, fmt.Errorf("%w: role %q: page %q must start with /", ErrInvalidCatalog, name, page)
		}
		role.AllowedPages = append(role.AllowedPages, page)
	}
	if len(role.AllowedPages) == 0 {
		return Role{}, fmt.Errorf("%w: role %q has no allowed pages", ErrInvalidCatalog, name)
	}

	for _, item := range fr.Navigation {
		if !strings.HasPrefix(item.Href, "/") {
			return Role{}, fmt.Errorf("%w: role %q: navigation href %q must start with /", ErrInvalidCatalog, name, item.Href)
		}
		if item.Permission != "" {
			if _, ok := seen[item.Permission]; !ok {
				return Role{}, fmt.Errorf("%w: role %q: navigation %q needs %q which the role lacks", ErrInvalidCatalog, name, item.Href, item.Permission)
			}
		}
		role.Navigation = append(role.Navigation, NavItem{
			Title:      item.Title,
			Href:       item.Href,
			Icon:       ParseIcon(item.Icon),
			Permission: item.Permission,
		})
	}
	return role, nil
}

// Role returns the catalog entry for name.
func (c *Catalog) Role(name string) (Role, bool) {
	if c == nil {
		return Role{}, false
	}
	r, ok := c.roles[name]
	return r, ok
}

// Roles lists role names in catalog order.
func (c *Catalog) Roles() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Navigation returns the ordered navigation entries for role. Unknown roles
// get an empty list.
func (c *Catalog) Navigation(role string) []NavItem {
	r, ok := c.Role(role)
	if !ok {
		return []NavItem{}
	}
	out := make([]NavItem, len(r.Navigation))
	copy(out, r.Navigation)
	return out
}

// AllowedPages returns the page prefixes role may open. Unknown roles get an
// empty list; the /dashboard and /profile override is applied by callers.
func (c *Catalog) AllowedPages(role string) []string {
	r, ok := c.Role(role)
	if !ok {
		return []string{}
	}
	out := make([]string, len(r.AllowedPages))
	copy(out, r.AllowedPages)
	return out
}

// Permissions returns the permission strings granted to role.
func (c *Catalog) Permissions(role string) []string {
	r, ok := c.Role(role)
	if !ok {
		return []string{}
	}
	out := make([]string, len(r.Permissions))
	copy(out, r.Permissions)
	return out
}

// RequiredPermission reports the permission that guards the navigation entry
// covering path, if any role's catalog names one.
func (c *Catalog) RequiredPermission(path string) string {
	if c == nil {
		return ""
	}
	best := ""
	bestLen := 0
	for _, name := range c.order {
		for _, item := range c.roles[name].Navigation {
			if item.Permission == "" || !strings.HasPrefix(path, item.Href) {
				continue
			}
			if len(item.Href) > bestLen {
				best, bestLen = item.Permission, len(item.Href)
			}
		}
	}
	return best
}
