// Package permctx is the advisory permission cache a client holds after
// calling /api/auth/me. It decides which navigation entries and actions to
// show; the server still checks every mutating call.
package permctx

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/quanly-erp/quanly/internal/catalog"
	"github.com/quanly-erp/quanly/internal/guard"
	"github.com/quanly-erp/quanly/internal/rbac"
)

// Status is the load state of a Context.
type Status int

// Load states. Failed is distinct from Ready with no permissions.
const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures a Context.
type Options struct {
	// DefaultRole is used when the profile carries no role name.
	DefaultRole string
}

// Context caches the caller's role and permissions.
type Context struct {
	fetcher     Fetcher
	nav         *Navigator
	defaultRole string
	sf          singleflight.Group

	mu     sync.RWMutex
	status Status
	user   *guard.UserWithPermissions
	set    rbac.Set
	err    error
}

// New constructs a Context in the Loading state.
func New(fetcher Fetcher, nav *Navigator, opts Options) *Context {
	return &Context{fetcher: fetcher, nav: nav, defaultRole: opts.DefaultRole, status: StatusLoading}
}

// Load fetches the profile. Concurrent calls share one fetch.
func (c *Context) Load(ctx context.Context) error {
	_, err, _ := c.sf.Do("me", func() (any, error) {
		user, err := c.fetcher.FetchMe(ctx)
		if err == nil && user == nil {
			err = errors.New("permctx: empty profile")
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if err != nil {
			c.status, c.err, c.user, c.set = StatusFailed, err, nil, nil
			return nil, err
		}
		c.status, c.err, c.user, c.set = StatusReady, nil, user, rbac.NewSet(user.Permissions)
		return nil, nil
	})
	return err
}

// Retry resets a failed context and loads again.
func (c *Context) Retry(ctx context.Context) error {
	c.mu.Lock()
	c.status, c.err = StatusLoading, nil
	c.mu.Unlock()
	return c.Load(ctx)
}

// Status reports the load state.
func (c *Context) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Err reports why loading failed.
func (c *Context) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// User returns the loaded profile, or nil.
func (c *Context) User() *guard.UserWithPermissions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// Role returns the loaded role name. Blank names, and names the navigation
// catalog does not define, fall back to the configured default. It is empty
// until the context is ready.
func (c *Context) Role() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status != StatusReady {
		return ""
	}
	role := c.user.RoleName
	if role == "" || (c.nav != nil && !c.nav.Knows(role)) {
		return c.defaultRole
	}
	return role
}

// Permissions returns the loaded permissions in server order.
func (c *Context) Permissions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	out := make([]string, len(c.user.Permissions))
	copy(out, c.user.Permissions)
	return out
}

// HasPermission reports whether the cached set holds perm.
func (c *Context) HasPermission(perm string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set.Has(perm)
}

// HasAnyPermission reports whether any of perms is held.
func (c *Context) HasAnyPermission(perms ...string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set.HasAny(perms...)
}

// HasAllPermissions reports whether every one of perms is held.
func (c *Context) HasAllPermissions(perms ...string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status != StatusReady {
		return false
	}
	return c.set.HasAll(perms...)
}

// HasRole reports whether the loaded role equals role.
func (c *Context) HasRole(role string) bool {
	r := c.Role()
	return r != "" && r == role
}

// Navigation returns the filtered navigation. It is nil unless ready.
func (c *Context) Navigation() []catalog.NavItem {
	if c.Status() != StatusReady {
		return nil
	}
	return c.nav.Filter(c.Role(), c.Permissions())
}
