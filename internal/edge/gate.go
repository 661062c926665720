// Package edge is the coarse page gate in front of every non-API route. It
// decides from the identity token alone: the role comes from token claims,
// which can lag administrative changes until the token is refreshed. API
// handlers re-check against the data store through the guard package.
package edge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/quanly-erp/quanly/internal/audit"
	"github.com/quanly-erp/quanly/internal/catalog"
	"github.com/quanly-erp/quanly/internal/identity"
	"github.com/quanly-erp/quanly/internal/observability"
	"github.com/quanly-erp/quanly/internal/rbac"
	"github.com/quanly-erp/quanly/internal/session"
)

// Well-known redirect targets.
const (
	LoginPath   = "/auth/login"
	HomePath    = rbac.PageDashboard
	ProfilePath = rbac.PageProfile
)

// DefaultPublicRoutes are reachable without a session.
var DefaultPublicRoutes = []string{"/auth/login", "/auth/register", "/auth/forgot-password", "/auth/callback", "/"}

// State is the per-request gate state.
type State int

// Gate states.
const (
	StateBypass State = iota
	StateUnauthenticated
	StateAuthenticatedPublic
	StateAllowed
	StateDenied
	StateInvalidRole
)

func (s State) String() string {
	switch s {
	case StateBypass:
		return "bypass"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticatedPublic:
		return "authenticated-public-route"
	case StateAllowed:
		return "authenticated-protected-allowed"
	case StateDenied:
		return "authenticated-protected-denied"
	case StateInvalidRole:
		return "invalid-role"
	default:
		return "unknown"
	}
}

// Decision is the outcome for one request. Location is empty when the
// request passes through.
type Decision struct {
	State      State
	Location   string
	Role       string
	Permission string
	User       *identity.User
	upstream   bool
}

// Resolver resolves identities and their role hint.
type Resolver interface {
	Resolve(ctx context.Context, req *http.Request) (*identity.User, error)
	Role(user *identity.User) string
	DefaultRole() string
}

// Options carries optional collaborators.
type Options struct {
	PublicRoutes []string
	Audit        audit.Sink
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

// Gate is the edge middleware.
type Gate struct {
	resolver Resolver
	catalog  *catalog.Catalog
	public   []string
	audit    audit.Sink
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New constructs a Gate.
func New(resolver Resolver, cat *catalog.Catalog, opts Options) *Gate {
	if len(opts.PublicRoutes) == 0 {
		opts.PublicRoutes = DefaultPublicRoutes
	}
	if opts.Audit == nil {
		opts.Audit = audit.NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Gate{
		resolver: resolver,
		catalog:  cat,
		public:   opts.PublicRoutes,
		audit:    opts.Audit,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// Middleware applies the gate.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := g.Decide(r)
		if d.State != StateBypass {
			g.record(r, d)
		}
		if d.Location != "" {
			http.Redirect(w, r, d.Location, http.StatusFound)
			return
		}
		if d.User != nil {
			r = r.WithContext(session.ContextWithUser(r.Context(), d.User))
		}
		next.ServeHTTP(w, r)
	})
}

// Decide runs the gate state machine for r.
func (g *Gate) Decide(r *http.Request) Decision {
	p := r.URL.Path
	if Skip(p) {
		return Decision{State: StateBypass}
	}

	user, err := g.resolver.Resolve(r.Context(), r)
	if err != nil || user == nil {
		d := Decision{State: StateUnauthenticated, upstream: err != nil && isUpstream(err)}
		if d.upstream {
			g.logger.Warn("edge identity lookup failed", slog.Any("error", err), slog.String("path", p))
		}
		if !g.isPublic(p) {
			d.Location = LoginPath
		}
		return d
	}

	if g.isPublic(p) {
		return Decision{State: StateAuthenticatedPublic, Location: HomePath, User: user}
	}
	if rbac.IsAlwaysAllowed(p) {
		return Decision{State: StateAllowed, User: user}
	}

	role, allowed, err := g.evaluate(user, p)
	if err != nil {
		g.logger.Error("edge role resolution failed", slog.Any("error", err), slog.String("path", p))
		return Decision{State: StateInvalidRole, Location: ProfilePath + "?error=invalid_role", User: user}
	}
	if allowed {
		return Decision{State: StateAllowed, Role: role, User: user}
	}
	perm := g.catalog.RequiredPermission(p)
	return Decision{
		State:      StateDenied,
		Location:   DeniedLocation(p, perm),
		Role:       role,
		Permission: perm,
		User:       user,
	}
}

// evaluate resolves the role and applies the path decision, converting a
// panic into an error.
func (g *Gate) evaluate(user *identity.User, p string) (role string, allowed bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("edge: %v", rec)
		}
	}()
	if g.catalog == nil {
		return "", false, errors.New("edge: no catalog")
	}
	role = g.Role(user)
	return role, rbac.DecidePath(g.catalog.AllowedPages(role), p), nil
}

// Role returns the user's role hint. Names the catalog does not define
// resolve to the configured default role.
func (g *Gate) Role(user *identity.User) string {
	role := g.resolver.Role(user)
	if _, ok := g.catalog.Role(role); ok {
		return role
	}
	return g.resolver.DefaultRole()
}

func (g *Gate) record(r *http.Request, d Decision) {
	outcome := observability.OutcomeAllowed
	switch d.State {
	case StateUnauthenticated:
		outcome = observability.OutcomeUnauth
		if d.upstream {
			outcome = observability.OutcomeUpstreamError
		}
	case StateDenied:
		outcome = observability.OutcomeDenied
	case StateInvalidRole:
		outcome = observability.OutcomeInvalidRole
	}
	g.metrics.RecordDecision(audit.LayerEdge, outcome)

	if d.State != StateDenied && d.State != StateInvalidRole {
		return
	}
	reason := "access_denied"
	if d.State == StateInvalidRole {
		reason = "invalid_role"
	}
	den := audit.Denial{
		Layer:      audit.LayerEdge,
		Role:       d.Role,
		Path:       r.URL.Path,
		Permission: d.Permission,
		Reason:     reason,
		RequestID:  middleware.GetReqID(r.Context()),
	}
	if d.User != nil {
		den.UserID = d.User.ID
	}
	g.audit.RecordDenial(r.Context(), den)
}

func (g *Gate) isPublic(p string) bool {
	for _, route := range g.public {
		if route == "/" {
			if p == "/" {
				return true
			}
			continue
		}
		if p == route || strings.HasPrefix(p, strings.TrimSuffix(route, "/")+"/") {
			return true
		}
	}
	return false
}

func isUpstream(err error) bool {
	if errors.Is(err, session.ErrNoSession) || errors.Is(err, identity.ErrInvalidToken) {
		return false
	}
	return true
}

// DeniedLocation builds the redirect for a denied page. The query keys are
// read verbatim by the profile page banner.
func DeniedLocation(requested, perm string) string {
	var b strings.Builder
	b.WriteString(ProfilePath)
	b.WriteString("?error=access_denied&requestedPath=")
	b.WriteString(escape(requested))
	if perm != "" {
		b.WriteString("&requiredPermission=")
		b.WriteString(escape(perm))
	}
	return b.String()
}

func escape(v string) string {
	s := url.QueryEscape(v)
	s = strings.ReplaceAll(s, "%2F", "/")
	return strings.ReplaceAll(s, "%3A", ":")
}

var assetPrefixes = []string{"/_next/static", "/_next/image", "/static/"}

var assetExtensions = map[string]struct{}{
	".svg": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {},
}

// Skip reports whether the gate ignores p: static assets, image files,
// the favicon and API routes, which enforce access themselves.
func Skip(p string) bool {
	if p == "/api" || strings.HasPrefix(p, "/api/") {
		return true
	}
	if p == "/favicon.ico" {
		return true
	}
	for _, prefix := range assetPrefixes {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	_, ok := assetExtensions[strings.ToLower(path.Ext(p))]
	return ok
}
