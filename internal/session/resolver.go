// Package session resolves the authenticated identity behind an inbound
// request from the identity provider's session cookies.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/quanly-erp/quanly/internal/identity"
)

// ErrNoSession means the request carried no access token.
var ErrNoSession = errors.New("session: no session")

// Default cookie names used by the identity provider's browser client.
const (
	DefaultAccessCookie  = "sb-access-token"
	DefaultRefreshCookie = "sb-refresh-token"
)

// DefaultRolePrecedence is the claim lookup order for the coarse role hint.
var DefaultRolePrecedence = []string{"app_metadata.role", "user_metadata.role", "role"}

// Config configures a Resolver.
type Config struct {
	AccessCookie   string
	RefreshCookie  string
	CookieDomain   string
	CookieSecure   bool
	RolePrecedence []string
	DefaultRole    string
}

// Resolver turns request cookies into an identity.
type Resolver struct {
	provider identity.Provider
	cfg      Config
}

// NewResolver constructs a Resolver, filling blank cookie names and claim
// precedence with defaults. DefaultRole is taken as given.
func NewResolver(provider identity.Provider, cfg Config) *Resolver {
	if cfg.AccessCookie == "" {
		cfg.AccessCookie = DefaultAccessCookie
	}
	if cfg.RefreshCookie == "" {
		cfg.RefreshCookie = DefaultRefreshCookie
	}
	if len(cfg.RolePrecedence) == 0 {
		cfg.RolePrecedence = DefaultRolePrecedence
	}
	return &Resolver{provider: provider, cfg: cfg}
}

// Provider exposes the identity provider behind the resolver.
func (r *Resolver) Provider() identity.Provider {
	return r.provider
}

// AccessToken extracts the access token from the session cookie, falling
// back to a bearer Authorization header for non-browser clients.
func (r *Resolver) AccessToken(req *http.Request) string {
	if c, err := req.Cookie(r.cfg.AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	auth := req.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// Resolve returns the authenticated user for req. It returns ErrNoSession
// when no token is present and passes provider errors through unchanged.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*identity.User, error) {
	token := r.AccessToken(req)
	if token == "" {
		return nil, ErrNoSession
	}
	user, err := r.provider.GetUser(ctx, token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNoSession
	}
	return user, nil
}

// Role picks the first non-empty string claim in precedence order, falling
// back to the configured default role.
func (r *Resolver) Role(user *identity.User) string {
	return RoleFromClaims(user, r.cfg.RolePrecedence, r.cfg.DefaultRole)
}

// DefaultRole reports the configured fallback role.
func (r *Resolver) DefaultRole() string {
	return r.cfg.DefaultRole
}

// RoleFromClaims implements the role claim precedence.
func RoleFromClaims(user *identity.User, precedence []string, fallback string) string {
	if user == nil {
		return fallback
	}
	for _, path := range precedence {
		v, ok := user.Lookup(path)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return fallback
}

// SetCookies writes the session cookie pair.
func (r *Resolver) SetCookies(w http.ResponseWriter, sess *identity.Session) {
	ttl := time.Hour
	if !sess.ExpiresAt.IsZero() {
		ttl = time.Until(sess.ExpiresAt)
	}
	http.SetCookie(w, r.buildCookie(r.cfg.AccessCookie, sess.AccessToken, ttl))
	if sess.RefreshToken != "" {
		http.SetCookie(w, r.buildCookie(r.cfg.RefreshCookie, sess.RefreshToken, 30*24*time.Hour))
	}
}

// ClearCookies deletes both session cookies.
func (r *Resolver) ClearCookies(w http.ResponseWriter) {
	for _, name := range []string{r.cfg.AccessCookie, r.cfg.RefreshCookie} {
		http.SetCookie(w, r.deletionCookie(name))
	}
}

func (r *Resolver) buildCookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if r.cfg.CookieDomain != "" {
		c.Domain = r.cfg.CookieDomain
	}
	if ttl > 0 {
		c.Expires = time.Now().Add(ttl).UTC()
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}

func (r *Resolver) deletionCookie(name string) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
	}
	if r.cfg.CookieDomain != "" {
		c.Domain = r.cfg.CookieDomain
	}
	return c
}

type userContextKey struct{}

// ContextWithUser stores the resolved user in ctx.
func ContextWithUser(ctx context.Context, user *identity.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext extracts a user stored by ContextWithUser.
func UserFromContext(ctx context.Context) *identity.User {
	user, _ := ctx.Value(userContextKey{}).(*identity.User)
	return user
}
