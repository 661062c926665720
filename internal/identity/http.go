package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Default round-trip settings for the provider.
const (
	defaultTimeout    = 5 * time.Second
	defaultMaxRetries = 2
	defaultBackoff    = 200 * time.Millisecond
)

// HTTPConfig configures HTTPProvider.
type HTTPConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	Client     *http.Client
	Logger     *slog.Logger
}

// HTTPProvider calls a GoTrue compatible auth REST API.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// NewHTTPProvider builds an HTTPProvider filling zero settings with defaults.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProvider{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		client:     client,
		maxRetries: retries,
		backoff:    backoff,
		logger:     logger,
	}
}

// GetUser returns the user owning accessToken.
func (p *HTTPProvider) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrInvalidToken
	}
	status, body, err := p.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, ErrInvalidToken
	case status != http.StatusOK:
		return nil, fmt.Errorf("%w: get user status %d", ErrUnavailable, status)
	}
	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("%w: decode user: %v", ErrUnavailable, err)
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}
	return &user, nil
}

// SignOut revokes the session behind accessToken.
func (p *HTTPProvider) SignOut(ctx context.Context, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return nil
	}
	status, _, err := p.do(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusNoContent || status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		// Already expired or revoked.
		return nil
	default:
		return fmt.Errorf("%w: logout status %d", ErrUnavailable, status)
	}
}

type passwordGrant struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         *User  `json:"user"`
}

// SignInWithPassword exchanges credentials for a session.
func (p *HTTPProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	payload, err := json.Marshal(passwordGrant{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	status, body, err := p.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", payload)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnauthorized:
		return nil, ErrInvalidCredentials
	case status != http.StatusOK:
		return nil, fmt.Errorf("%w: token status %d", ErrUnavailable, status)
	}
	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return nil, fmt.Errorf("%w: decode token: %v", ErrUnavailable, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token", ErrUnavailable)
	}
	sess := &Session{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken, User: tok.User}
	switch {
	case tok.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(tok.ExpiresAt, 0)
	case tok.ExpiresIn > 0:
		sess.ExpiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	return sess, nil
}

// do performs one request with bounded retries on transport errors and 5xx
// responses. Non-retryable statuses are returned to the caller.
func (p *HTTPProvider) do(ctx context.Context, method, path, bearer string, body []byte) (int, []byte, error) {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			wait := p.backoff * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(wait):
			}
		}
		status, data, err := p.once(ctx, method, path, bearer, body)
		if err == nil && status < http.StatusInternalServerError {
			return status, data, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("status %d", status)
		}
		p.logger.Warn("identity provider request failed",
			slog.String("path", path),
			slog.Int("attempt", attempt+1),
			slog.Any("error", lastErr))
		if ctx.Err() != nil {
			break
		}
	}
	return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (p *HTTPProvider) once(ctx context.Context, method, path, bearer string, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("apikey", p.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

// IsUpstream reports whether err is a provider availability failure rather
// than a verdict about the token or credentials.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

var _ Provider = (*HTTPProvider)(nil)
