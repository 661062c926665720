package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanly-erp/quanly/internal/app"
	"github.com/quanly-erp/quanly/internal/audit"
	"github.com/quanly-erp/quanly/internal/catalog"
	"github.com/quanly-erp/quanly/internal/customers"
	"github.com/quanly-erp/quanly/internal/employees"
	"github.com/quanly-erp/quanly/internal/guard"
	"github.com/quanly-erp/quanly/internal/identity"
	"github.com/quanly-erp/quanly/internal/roles"
	_ "github.com/quanly-erp/quanly/testing"
)

type tokenProvider struct {
	users map[string]*identity.User
}

func (p *tokenProvider) GetUser(ctx context.Context, token string) (*identity.User, error) {
	if u, ok := p.users[token]; ok {
		return u, nil
	}
	return nil, identity.ErrInvalidToken
}

func (p *tokenProvider) SignOut(ctx context.Context, token string) error { return nil }

func (p *tokenProvider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	for token, u := range p.users {
		if u.Email == email && password == "secret123" {
			return &identity.Session{AccessToken: token, RefreshToken: "r-" + token, ExpiresAt: time.Now().Add(time.Hour), User: u}, nil
		}
	}
	return nil, identity.ErrInvalidCredentials
}

type employeeStore map[string]*guard.EmployeeRecord

func (s employeeStore) EmployeeWithRole(ctx context.Context, id string) (*guard.EmployeeRecord, error) {
	if rec, ok := s[id]; ok {
		return rec, nil
	}
	return nil, guard.ErrEmployeeNotFound
}

type customerStore struct {
	mu    sync.Mutex
	items []customers.Customer
	seq   int
}

func (s *customerStore) List(ctx context.Context, req customers.ListCustomersRequest) ([]customers.Customer, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]customers.Customer{}, s.items...)
	return out, len(out), nil
}

func (s *customerStore) Create(ctx context.Context, c customers.Customer) (*customers.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, c)
	return &c, nil
}

func (s *customerStore) NextCode(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return "KH00000" + string(rune('0'+s.seq)), nil
}

type roleStore struct {
	cat *catalog.Catalog
}

func (s roleStore) ListRoles(ctx context.Context) ([]roles.Role, error) {
	var out []roles.Role
	for i, name := range s.cat.Roles() {
		out = append(out, roles.Role{ID: int64(i + 1), Name: name, Permissions: s.cat.Permissions(name)})
	}
	return out, nil
}

type directory struct{}

func (directory) ListEmployees(ctx context.Context, req employees.ListRequest) ([]employees.Employee, int, error) {
	return []employees.Employee{{ID: "u-sales", Email: "sales@quanly.local", Role: "sales", IsActive: true}}, 1, nil
}

type captureSink struct {
	mu      sync.Mutex
	denials []audit.Denial
}

func (c *captureSink) RecordDenial(ctx context.Context, d audit.Denial) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.denials = append(c.denials, d)
}

func (c *captureSink) all() []audit.Denial {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audit.Denial(nil), c.denials...)
}

type fixture struct {
	server *app.Server
	sink   *captureSink
	store  *customerStore
}

func record(cat *catalog.Catalog, id, email, role string) *guard.EmployeeRecord {
	roleID := int64(len(role))
	perms, _ := json.Marshal(cat.Permissions(role))
	return &guard.EmployeeRecord{
		ID:              id,
		Name:            email,
		Email:           email,
		RoleID:          &roleID,
		RoleName:        role,
		RolePermissions: string(perms),
		IsActive:        true,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

func claimUser(id, email, role string) *identity.User {
	return &identity.User{ID: id, Email: email, AppMetadata: map[string]any{"role": role}}
}

func newFixture(t *testing.T, provider identity.Provider) *fixture {
	t.Helper()
	cat := catalog.MustDefault()
	if provider == nil {
		provider = &tokenProvider{users: map[string]*identity.User{
			"tok-sales":    claimUser("u-sales", "sales@quanly.local", "sales"),
			"tok-employee": claimUser("u-employee", "employee@quanly.local", "employee"),
			"tok-admin":    claimUser("u-admin", "admin@quanly.local", "admin"),
		}}
	}
	staff := employeeStore{
		"u-sales":    record(cat, "u-sales", "sales@quanly.local", "sales"),
		"u-employee": record(cat, "u-employee", "employee@quanly.local", "employee"),
		"u-admin":    record(cat, "u-admin", "admin@quanly.local", "admin"),
	}
	cfg := &app.Config{
		AppEnv:              "test",
		AppRequestTimeout:   5 * time.Second,
		AppRateLimit:        1000,
		IdentityMode:        app.IdentityModeRemote,
		IdentityURL:         "http://identity.invalid",
		SessionAccessCookie: "sb-access-token",
		DefaultRole:         "employee",
		EdgePublicRoutes:    []string{"/auth/login", "/auth/register", "/auth/forgot-password", "/auth/callback", "/"},
		NavCacheSize:        16,
	}
	sink := &captureSink{}
	store := &customerStore{}
	srv, err := app.Build(cfg, nil, app.Deps{
		Provider:  provider,
		Employees: staff,
		Customers: store,
		Roles:     roleStore{cat: cat},
		Directory: directory{},
		Audit:     sink,
	})
	require.NoError(t, err)
	return &fixture{server: srv, sink: sink, store: store}
}

func (f *fixture) do(method, target, token string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "sb-access-token", Value: token})
	}
	rr := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(rr, req)
	return rr
}

func TestUnauthenticatedPageRedirectsToLogin(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(http.MethodGet, "/customers", "", "")
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))
}

func TestSalesCanListButNotCreateCustomers(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(http.MethodGet, "/api/customers", "tok-sales", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Success     bool     `json:"success"`
		Permissions []string `json:"permissions"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.True(t, list.Success)
	assert.Contains(t, list.Permissions, "customers:view")

	rr = f.do(http.MethodPost, "/api/customers", "tok-sales", `{"name":"Công ty Mới"}`)
	require.Equal(t, http.StatusForbidden, rr.Code)
	var denied struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &denied))
	assert.False(t, denied.Success)
	assert.Contains(t, denied.Message, "quyền tạo khách hàng")
	assert.Empty(t, f.store.items)

	denials := f.sink.all()
	require.NotEmpty(t, denials)
	last := denials[len(denials)-1]
	assert.Equal(t, audit.LayerGuard, last.Layer)
	assert.Equal(t, "customers:create", last.Permission)
	assert.Equal(t, "u-sales", last.UserID)
}

func TestAdminCreatesCustomer(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(http.MethodPost, "/api/customers", "tok-admin", `{"name":"Công ty Mới"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.Len(t, f.store.items, 1)
	assert.Equal(t, "KH000001", f.store.items[0].Code)
}

func TestEmployeeDeniedFinancialsPage(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(http.MethodGet, "/financials", "tok-employee", "")
	require.Equal(t, http.StatusFound, rr.Code)
	loc := rr.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "/profile?error=access_denied&requestedPath=/financials"), loc)
	assert.Contains(t, loc, "requiredPermission=financials:view")

	denials := f.sink.all()
	require.Len(t, denials, 1)
	assert.Equal(t, audit.LayerEdge, denials[0].Layer)
	assert.Equal(t, "/financials", denials[0].Path)

	rr = f.do(http.MethodGet, loc, "tok-employee", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "financials:view")
}

func TestAuthenticatedLoginPageRedirectsToDashboard(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(http.MethodGet, "/auth/login", "tok-sales", "")
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))
}

func TestPublicPagesRenderWithoutSession(t *testing.T) {
	f := newFixture(t, nil)
	for _, target := range []string{"/", "/auth/login"} {
		rr := f.do(http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusOK, rr.Code, target)
		assert.Contains(t, rr.Header().Get("Content-Type"), "text/html", target)
	}
}

func TestAllowedPageRendersShell(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(http.MethodGet, "/customers", "tok-sales", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Khách hàng")
}

func TestNavigationFollowsDataStorePermissions(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(http.MethodGet, "/api/navigation", "tok-sales", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Role  string            `json:"role"`
		Items []catalog.NavItem `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "sales", body.Role)
	hrefs := make([]string, 0, len(body.Items))
	for _, it := range body.Items {
		hrefs = append(hrefs, it.Href)
	}
	assert.Equal(t, []string{"/dashboard", "/customers", "/products", "/orders"}, hrefs)

	rr = f.do(http.MethodGet, "/api/navigation", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMeReturnsProfile(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(http.MethodGet, "/api/auth/me", "tok-employee", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"role_name":"employee"`)

	rr = f.do(http.MethodGet, "/api/auth/me", "nope", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStaticAssetsBypassGate(t *testing.T) {
	f := newFixture(t, nil)
	rr := f.do(http.MethodGet, "/static/css/app.css", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
}

func TestDecisionsAreExported(t *testing.T) {
	f := newFixture(t, nil)
	f.do(http.MethodGet, "/financials", "tok-employee", "")
	f.do(http.MethodGet, "/customers", "tok-sales", "")

	rr := f.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `quanly_access_decisions_total{layer="edge",outcome="denied"} 1`)
	assert.Contains(t, body, `quanly_access_decisions_total{layer="edge",outcome="allowed"} 1`)
}

func TestLogoutRevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	inner := &tokenProvider{users: map[string]*identity.User{
		"tok-sales": claimUser("u-sales", "sales@quanly.local", "sales"),
	}}
	f := newFixture(t, identity.NewRevocationProvider(inner, identity.NewDenylist(rdb)))

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/customers", "tok-sales", "").Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/auth/logout", "tok-sales", "").Code)

	rr := f.do(http.MethodGet, "/customers", "tok-sales", "")
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/auth/login", rr.Header().Get("Location"))
}

func TestRoleDirectoryRequiresRolesView(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(http.MethodGet, "/api/roles", "tok-sales", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(http.MethodGet, "/api/roles", "tok-admin", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Success bool `json:"success"`
		InSync  bool `json:"in_sync"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.True(t, body.InSync)
}

func TestEmployeeDirectoryRequiresEmployeesView(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(http.MethodGet, "/api/employees", "tok-employee", "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(http.MethodGet, "/api/employees", "tok-admin", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "sales@quanly.local")
}

func TestProviderRoleOutsideCatalogUsesDefaultRole(t *testing.T) {
	f := newFixture(t, &tokenProvider{users: map[string]*identity.User{
		"tok-plain": {ID: "u-plain", Email: "plain@quanly.local", Role: "authenticated"},
	}})

	rr := f.do(http.MethodGet, "/tasks", "tok-plain", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(http.MethodGet, "/financials", "tok-plain", "")
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "error=access_denied")
}
