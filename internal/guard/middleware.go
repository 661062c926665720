package guard

import (
	"context"
	"net/http"
	"strings"

	"github.com/quanly-erp/quanly/internal/audit"
	"github.com/quanly-erp/quanly/internal/observability"
	"github.com/quanly-erp/quanly/internal/platform/httpx"
	"github.com/quanly-erp/quanly/internal/rbac"
	"github.com/quanly-erp/quanly/internal/shared"
)

type userContextKey struct{}

// ContextWithUser stores the guarded user in ctx.
func ContextWithUser(ctx context.Context, user *UserWithPermissions) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the user stored by the guard middleware.
func UserFromContext(ctx context.Context) *UserWithPermissions {
	user, _ := ctx.Value(userContextKey{}).(*UserWithPermissions)
	return user
}

// RequireAny ensures the caller holds at least one of perms. An empty list
// rejects every caller.
func (g *Guard) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return g.require(normalized, func(granted []string) bool {
		return rbac.HasAny(granted, normalized...)
	})
}

// RequireAll ensures the caller holds every one of perms.
func (g *Guard) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return g.require(normalized, func(granted []string) bool {
		return rbac.HasAll(granted, normalized...)
	})
}

func (g *Guard) require(perms []string, allowed func([]string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := g.CurrentUser(r.Context(), r)
			if err == nil && !allowed(user.Permissions) {
				err = &PermissionDeniedError{Permission: strings.Join(perms, ",")}
			}
			if err != nil {
				g.observe(r.Context(), r, userID(user), strings.Join(perms, ","), err)
				httpx.JSON(w, Status(err), httpx.Failure(shared.Translate(r, MessageKey(err, ""))))
				return
			}
			g.metrics.RecordDecision(audit.LayerGuard, observability.OutcomeAllowed)
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

func userID(u *UserWithPermissions) string {
	if u == nil {
		return ""
	}
	return u.ID
}

func normalizePermissions(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
