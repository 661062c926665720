package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/quanly-erp/quanly/internal/audit"
	"github.com/quanly-erp/quanly/internal/identity"
	"github.com/quanly-erp/quanly/internal/observability"
	"github.com/quanly-erp/quanly/internal/rbac"
	"github.com/quanly-erp/quanly/internal/session"
)

// IdentityResolver resolves the identity behind a request.
type IdentityResolver interface {
	Resolve(ctx context.Context, req *http.Request) (*identity.User, error)
}

// Options carries the optional collaborators of a Guard.
type Options struct {
	Audit   audit.Sink
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// Guard enforces permissions against the data store.
type Guard struct {
	resolver IdentityResolver
	repo     Repository
	audit    audit.Sink
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// New constructs a Guard.
func New(resolver IdentityResolver, repo Repository, opts Options) *Guard {
	if opts.Audit == nil {
		opts.Audit = audit.NopSink{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Guard{
		resolver: resolver,
		repo:     repo,
		audit:    opts.Audit,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// CurrentUser resolves the caller and loads their employee record, role and
// permissions. The record is read fresh on every call.
func (g *Guard) CurrentUser(ctx context.Context, r *http.Request) (*UserWithPermissions, error) {
	ident, err := g.resolver.Resolve(ctx, r)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) || errors.Is(err, identity.ErrInvalidToken) {
			return nil, ErrUnauthenticated
		}
		return nil, &UpstreamError{Op: "resolve session", Err: err}
	}

	rec, err := g.repo.EmployeeWithRole(ctx, ident.ID)
	if err != nil {
		if errors.Is(err, ErrEmployeeNotFound) {
			return nil, ErrEmployeeNotFound
		}
		return nil, &UpstreamError{Op: "load employee", Err: err}
	}
	if !rec.IsActive {
		return nil, ErrAccountInactive
	}
	if rec.RoleID != nil && rec.RoleName == "" {
		return nil, ErrRoleResolution
	}
	return rec.toUser(), nil
}

// RequirePermission returns the caller when they hold perm. Inactivity is
// reported before any permission check.
func (g *Guard) RequirePermission(ctx context.Context, r *http.Request, perm string) (*UserWithPermissions, error) {
	user, err := g.CurrentUser(ctx, r)
	if err != nil {
		g.observe(ctx, r, "", perm, err)
		return nil, err
	}
	if !rbac.HasPermission(user.Permissions, perm) {
		err = &PermissionDeniedError{Permission: perm}
		g.observe(ctx, r, user.ID, perm, err)
		return nil, err
	}
	g.metrics.RecordDecision(audit.LayerGuard, observability.OutcomeAllowed)
	return user, nil
}

func (g *Guard) observe(ctx context.Context, r *http.Request, userID, perm string, err error) {
	kind := KindOf(err)
	g.metrics.RecordDecision(audit.LayerGuard, outcomeFor(kind))
	if kind == KindUpstream {
		g.logger.Error("guard upstream failure", slog.Any("error", err), slog.String("permission", perm))
		return
	}
	if kind == KindUnauthenticated {
		return
	}
	g.audit.RecordDenial(ctx, audit.Denial{
		Layer:      audit.LayerGuard,
		UserID:     userID,
		Path:       r.URL.Path,
		Permission: perm,
		Reason:     kind.String(),
		RequestID:  middleware.GetReqID(ctx),
	})
}

func outcomeFor(k Kind) string {
	switch k {
	case KindNone:
		return observability.OutcomeAllowed
	case KindUnauthenticated:
		return observability.OutcomeUnauth
	case KindAccountInactive:
		return observability.OutcomeInactive
	case KindPermissionDenied:
		return observability.OutcomeDenied
	case KindRoleResolution:
		return observability.OutcomeInvalidRole
	case KindNotFound:
		return observability.OutcomeNotFound
	default:
		return observability.OutcomeUpstreamError
	}
}
