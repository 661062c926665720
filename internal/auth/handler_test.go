package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quanly-erp/quanly/internal/auth"
	"github.com/quanly-erp/quanly/internal/guard"
	"github.com/quanly-erp/quanly/internal/identity"
	"github.com/quanly-erp/quanly/internal/session"
	_ "github.com/quanly-erp/quanly/testing"
)

type stubProvider struct {
	users      map[string]*identity.User
	signOutErr error
	signedOut  []string
}

func (s *stubProvider) GetUser(ctx context.Context, token string) (*identity.User, error) {
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	return nil, identity.ErrInvalidToken
}

func (s *stubProvider) SignOut(ctx context.Context, token string) error {
	s.signedOut = append(s.signedOut, token)
	return s.signOutErr
}

func (s *stubProvider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	if email == "an@example.com" && password == "matkhau123" {
		return &identity.Session{
			AccessToken:  "tok-an",
			RefreshToken: "ref-an",
			ExpiresAt:    time.Now().Add(time.Hour),
			User:         &identity.User{ID: "u-1", Email: email},
		}, nil
	}
	if email == "down@example.com" {
		return nil, identity.ErrUnavailable
	}
	return nil, identity.ErrInvalidCredentials
}

type stubRepo struct {
	records map[string]*guard.EmployeeRecord
	err     error
}

func (s *stubRepo) EmployeeWithRole(ctx context.Context, id string) (*guard.EmployeeRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, guard.ErrEmployeeNotFound
	}
	cp := *rec
	return &cp, nil
}

type fixture struct {
	router   http.Handler
	provider *stubProvider
	repo     *stubRepo
}

func newFixture(t *testing.T, provider identity.Provider, sp *stubProvider) *fixture {
	t.Helper()
	roleID := int64(3)
	repo := &stubRepo{records: map[string]*guard.EmployeeRecord{
		"u-1": {ID: "u-1", Name: "An", Email: "an@example.com", RoleID: &roleID, RoleName: "sales",
			RolePermissions: `["orders:view","customers:view"]`, GrantedPermissions: []string{"customers:view", "dashboard:view"}, IsActive: true},
		"u-2": {ID: "u-2", Name: "Bình", RoleID: &roleID, RoleName: "sales", RolePermissions: `["customers:view"]`, IsActive: false},
	}}
	resolver := session.NewResolver(provider, session.Config{DefaultRole: "employee"})
	g := guard.New(resolver, repo, guard.Options{})
	h := auth.NewHandler(nil, auth.NewService(provider), g, resolver)
	r := chi.NewRouter()
	r.Route("/api/auth", h.MountRoutes)
	return &fixture{router: r, provider: sp, repo: repo}
}

func defaultFixture(t *testing.T) *fixture {
	sp := &stubProvider{users: map[string]*identity.User{
		"tok-an":    {ID: "u-1", Email: "an@example.com"},
		"tok-binh":  {ID: "u-2"},
		"tok-ghost": {ID: "u-9"},
	}}
	return newFixture(t, sp, sp)
}

func do(f *fixture, method, target, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if token != "" {
		req.AddCookie(&http.Cookie{Name: session.DefaultAccessCookie, Value: token})
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestMeReturnsUser(t *testing.T) {
	f := defaultFixture(t)
	rr := do(f, http.MethodGet, "/api/auth/me", "tok-an", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	assert.Equal(t, true, body["success"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "sales", user["role_name"])
	assert.Equal(t, []any{"orders:view", "customers:view", "dashboard:view"}, user["permissions"])
	for _, key := range []string{"id", "name", "email", "position", "department", "role_id", "role_name", "permissions", "is_active", "created_at", "updated_at"} {
		assert.Contains(t, user, key)
	}
}

func TestMePermissionsAreStable(t *testing.T) {
	f := defaultFixture(t)
	extract := func() json.RawMessage {
		rr := do(f, http.MethodGet, "/api/auth/me", "tok-an", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var body struct {
			User struct {
				Permissions json.RawMessage `json:"permissions"`
			} `json:"user"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		return body.User.Permissions
	}
	assert.Equal(t, string(extract()), string(extract()))
}

func TestMeFailures(t *testing.T) {
	f := defaultFixture(t)
	tests := []struct {
		name   string
		token  string
		status int
		msg    string
	}{
		{name: "no session", status: http.StatusUnauthorized, msg: "Chưa đăng nhập"},
		{name: "bad token", token: "forged", status: http.StatusUnauthorized, msg: "Chưa đăng nhập"},
		{name: "no employee", token: "tok-ghost", status: http.StatusNotFound},
		{name: "inactive", token: "tok-binh", status: http.StatusForbidden, msg: "Tài khoản đã bị vô hiệu hóa"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(f, http.MethodGet, "/api/auth/me", tc.token, nil)
			assert.Equal(t, tc.status, rr.Code)
			body := decode(t, rr)
			assert.Equal(t, false, body["success"])
			if tc.msg != "" {
				assert.Equal(t, tc.msg, body["message"])
			}
		})
	}

	f.repo.err = errors.New("db down")
	rr := do(f, http.MethodGet, "/api/auth/me", "tok-an", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Lỗi máy chủ", decode(t, rr)["message"])
}

func clearedCookies(rr *httptest.ResponseRecorder) map[string]bool {
	out := map[string]bool{}
	for _, c := range rr.Result().Cookies() {
		if c.MaxAge < 0 {
			out[c.Name] = true
		}
	}
	return out
}

func TestLogoutClearsCookiesAndRevokesToken(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sp := &stubProvider{users: map[string]*identity.User{"tok-an": {ID: "u-1"}}}
	provider := identity.NewRevocationProvider(sp, identity.NewDenylist(client))
	f := newFixture(t, provider, sp)

	require.Equal(t, http.StatusOK, do(f, http.MethodGet, "/api/auth/me", "tok-an", nil).Code)

	rr := do(f, http.MethodPost, "/api/auth/logout", "tok-an", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decode(t, rr)["success"])
	cleared := clearedCookies(rr)
	assert.True(t, cleared[session.DefaultAccessCookie])
	assert.True(t, cleared[session.DefaultRefreshCookie])
	assert.Equal(t, []string{"tok-an"}, sp.signedOut)

	assert.Equal(t, http.StatusUnauthorized, do(f, http.MethodGet, "/api/auth/me", "tok-an", nil).Code)
}

func TestLogoutFailureStillClearsCookies(t *testing.T) {
	f := defaultFixture(t)
	f.provider.signOutErr = identity.ErrUnavailable

	rr := do(f, http.MethodPost, "/api/auth/logout", "tok-an", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, false, decode(t, rr)["success"])
	assert.True(t, clearedCookies(rr)[session.DefaultAccessCookie])
}

func TestLogoutWithoutSession(t *testing.T) {
	f := defaultFixture(t)
	rr := do(f, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, f.provider.signedOut)
}

func TestLogin(t *testing.T) {
	f := defaultFixture(t)

	rr := do(f, http.MethodPost, "/api/auth/login", "", []byte(`{"email":"an@example.com","password":"matkhau123"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	names := map[string]string{}
	for _, c := range rr.Result().Cookies() {
		names[c.Name] = c.Value
		assert.True(t, c.HttpOnly)
	}
	assert.Equal(t, "tok-an", names[session.DefaultAccessCookie])
	assert.Equal(t, "ref-an", names[session.DefaultRefreshCookie])

	rr = do(f, http.MethodPost, "/api/auth/login", "", []byte(`{"email":"an@example.com","password":"wrongpass"}`))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Email hoặc mật khẩu không đúng", decode(t, rr)["message"])

	rr = do(f, http.MethodPost, "/api/auth/login", "", []byte(`{"email":"not-an-email","password":"x"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	errs := decode(t, rr)["errors"].(map[string]any)
	assert.Contains(t, errs, "Email")
	assert.Contains(t, errs, "Password")

	rr = do(f, http.MethodPost, "/api/auth/login", "", []byte(`{"email":"down@example.com","password":"matkhau123"}`))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)

	rr = do(f, http.MethodPost, "/api/auth/login", "", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), "false"))
}
