package permctx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quanly-erp/quanly/internal/guard"
)

// ErrUnauthenticated means /me rejected the session.
var ErrUnauthenticated = errors.New("permctx: not signed in")

// Fetcher loads the caller's profile from /api/auth/me.
type Fetcher interface {
	FetchMe(ctx context.Context) (*guard.UserWithPermissions, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*guard.UserWithPermissions, error)

// FetchMe implements Fetcher.
func (f FetcherFunc) FetchMe(ctx context.Context) (*guard.UserWithPermissions, error) {
	return f(ctx)
}

// InProcess fetches through the guard for the request r, without an HTTP
// round trip.
func InProcess(g *guard.Guard, r *http.Request) Fetcher {
	return FetcherFunc(func(ctx context.Context) (*guard.UserWithPermissions, error) {
		return g.CurrentUser(ctx, r)
	})
}

// HTTPFetcher calls /api/auth/me on a running server.
type HTTPFetcher struct {
	BaseURL     string
	AccessToken string
	Client      *http.Client
}

type meResponse struct {
	Success bool                       `json:"success"`
	Message string                     `json:"message"`
	User    *guard.UserWithPermissions `json:"user"`
}

// FetchMe implements Fetcher.
func (f *HTTPFetcher) FetchMe(ctx context.Context) (*guard.UserWithPermissions, error) {
	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(f.BaseURL, "/")+"/api/auth/me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if f.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.AccessToken)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("permctx: fetch me: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("permctx: read me: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthenticated
	}
	var body meResponse
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("permctx: decode me (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !body.Success || body.User == nil {
		return nil, fmt.Errorf("permctx: me returned %d: %s", resp.StatusCode, body.Message)
	}
	return body.User, nil
}
