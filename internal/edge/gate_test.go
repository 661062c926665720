package edge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanly-erp/quanly/internal/audit"
	"github.com/quanly-erp/quanly/internal/catalog"
	"github.com/quanly-erp/quanly/internal/identity"
	"github.com/quanly-erp/quanly/internal/session"
)

type stubResolver struct {
	user     *identity.User
	err      error
	role     string
	fallback string
	panic    bool
}

func (s stubResolver) Resolve(ctx context.Context, req *http.Request) (*identity.User, error) {
	return s.user, s.err
}

func (s stubResolver) Role(user *identity.User) string {
	if s.panic {
		panic("malformed claims")
	}
	return s.role
}

func (s stubResolver) DefaultRole() string {
	if s.fallback == "" {
		return "employee"
	}
	return s.fallback
}

type recordingSink struct{ denials []audit.Denial }

func (r *recordingSink) RecordDenial(ctx context.Context, d audit.Denial) {
	r.denials = append(r.denials, d)
}

func serve(t *testing.T, g *Gate, target string) *httptest.ResponseRecorder {
	t.Helper()
	h := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
	return rr
}

func signedIn(role string) stubResolver {
	return stubResolver{user: &identity.User{ID: "u-1"}, role: role}
}

func TestUnauthenticatedProtectedRedirectsToLogin(t *testing.T) {
	g := New(stubResolver{err: session.ErrNoSession}, catalog.MustDefault(), Options{})
	rr := serve(t, g, "/customers")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))
}

func TestUnauthenticatedPublicPasses(t *testing.T) {
	g := New(stubResolver{}, catalog.MustDefault(), Options{})
	for _, p := range []string{"/auth/login", "/auth/register", "/auth/callback/google", "/"} {
		rr := serve(t, g, p)
		assert.Equal(t, http.StatusOK, rr.Code, p)
	}
}

func TestAuthenticatedPublicRedirectsToDashboard(t *testing.T) {
	g := New(signedIn("sales"), catalog.MustDefault(), Options{})
	rr := serve(t, g, "/auth/login")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
}

func TestSafetyPagesAlwaysPass(t *testing.T) {
	r := signedIn("no-such-role")
	r.fallback = "also-unknown"
	g := New(r, catalog.MustDefault(), Options{})
	for _, p := range []string{"/dashboard", "/profile"} {
		assert.Equal(t, http.StatusOK, serve(t, g, p).Code, p)
	}
	assert.Equal(t, http.StatusFound, serve(t, g, "/customers").Code)
}

func TestUnknownRoleFallsBackToDefault(t *testing.T) {
	sink := &recordingSink{}
	g := New(signedIn("authenticated"), catalog.MustDefault(), Options{Audit: sink})

	assert.Equal(t, http.StatusOK, serve(t, g, "/tasks").Code)
	assert.Equal(t, "employee", g.Role(&identity.User{ID: "u-1"}))

	rr := serve(t, g, "/financials")
	assert.Equal(t, http.StatusFound, rr.Code)
	require.Len(t, sink.denials, 1)
	assert.Equal(t, "employee", sink.denials[0].Role)
}

func TestUnknownRoleClaimThroughResolver(t *testing.T) {
	res := session.NewResolver(nil, session.Config{DefaultRole: "employee"})
	g := New(res, catalog.MustDefault(), Options{})
	assert.Equal(t, "employee", g.Role(&identity.User{ID: "u-1", Role: "authenticated"}))
	assert.Equal(t, "sales", g.Role(&identity.User{ID: "u-2", Role: "authenticated", AppMetadata: map[string]any{"role": "sales"}}))
}

func TestEmployeeDeniedFinancials(t *testing.T) {
	sink := &recordingSink{}
	g := New(signedIn("employee"), catalog.MustDefault(), Options{Audit: sink})
	rr := serve(t, g, "/financials")
	assert.Equal(t, http.StatusFound, rr.Code)
	loc := rr.Header().Get("Location")
	assert.Contains(t, loc, "/profile?error=access_denied&requestedPath=/financials")
	assert.Contains(t, loc, "requiredPermission=financials:view")
	require.Len(t, sink.denials, 1)
	assert.Equal(t, audit.LayerEdge, sink.denials[0].Layer)
	assert.Equal(t, "employee", sink.denials[0].Role)
}

func TestAllowedPrefixPasses(t *testing.T) {
	g := New(signedIn("sales"), catalog.MustDefault(), Options{})
	assert.Equal(t, http.StatusOK, serve(t, g, "/customers/42").Code)
}

func TestRolePanicRedirectsToInvalidRole(t *testing.T) {
	r := signedIn("sales")
	r.panic = true
	g := New(r, catalog.MustDefault(), Options{})
	rr := serve(t, g, "/customers")
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/profile?error=invalid_role", rr.Header().Get("Location"))
}

func TestMissingCatalogRedirectsToInvalidRole(t *testing.T) {
	g := New(signedIn("sales"), nil, Options{})
	rr := serve(t, g, "/customers")
	assert.Equal(t, "/profile?error=invalid_role", rr.Header().Get("Location"))
}

func TestUpstreamFailureNeverAllows(t *testing.T) {
	g := New(stubResolver{err: errors.Join(identity.ErrUnavailable, errors.New("timeout"))}, catalog.MustDefault(), Options{})
	d := g.Decide(httptest.NewRequest(http.MethodGet, "/customers", nil))
	assert.Equal(t, StateUnauthenticated, d.State)
	assert.Equal(t, LoginPath, d.Location)
	assert.True(t, d.upstream)
}

func TestSkip(t *testing.T) {
	for _, p := range []string{"/api/customers", "/_next/static/chunk.js", "/_next/image", "/static/app.css", "/favicon.ico", "/logo.svg", "/img/a.PNG", "/b.webp"} {
		assert.True(t, Skip(p), p)
	}
	for _, p := range []string{"/customers", "/apis", "/dashboard", "/report.pdf"} {
		assert.False(t, Skip(p), p)
	}
}

func TestDeniedLocation(t *testing.T) {
	assert.Equal(t, "/profile?error=access_denied&requestedPath=/financials", DeniedLocation("/financials", ""))
	assert.Equal(t, "/profile?error=access_denied&requestedPath=/a+b&requiredPermission=roles:view", DeniedLocation("/a b", "roles:view"))
}

func TestDecisionIsExhaustiveOverCatalog(t *testing.T) {
	cat := catalog.MustDefault()
	probes := []string{"/customers", "/products", "/inventory", "/orders", "/projects", "/tasks", "/purchasing", "/financials", "/employees", "/roles", "/reports", "/settings"}
	for _, role := range cat.Roles() {
		g := New(signedIn(role), cat, Options{})
		pages := cat.AllowedPages(role)
		for _, p := range probes {
			d := g.Decide(httptest.NewRequest(http.MethodGet, p, nil))
			want := false
			for _, page := range pages {
				if len(p) >= len(page) && p[:len(page)] == page {
					want = true
				}
			}
			if want {
				assert.Equal(t, StateAllowed, d.State, "%s %s", role, p)
			} else {
				assert.Equal(t, StateDenied, d.State, "%s %s", role, p)
			}
		}
	}
}
