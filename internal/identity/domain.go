// Package identity talks to the external identity provider that owns
// authentication and session tokens.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrInvalidToken means the provider rejected the access token.
	ErrInvalidToken = errors.New("identity: invalid or expired token")
	// ErrInvalidCredentials means a password grant was refused.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrUnavailable means the provider could not be reached or failed.
	ErrUnavailable = errors.New("identity: provider unavailable")
	// ErrUnsupported is returned by providers that cannot perform a flow.
	ErrUnsupported = errors.New("identity: operation not supported")
)

// User is the authenticated principal as reported by the provider.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// Claims exposes the user's claim tree for dotted lookups such as
// "app_metadata.role".
func (u *User) Claims() map[string]any {
	if u == nil {
		return nil
	}
	claims := map[string]any{
		"id":    u.ID,
		"email": u.Email,
	}
	if u.Role != "" {
		claims["role"] = u.Role
	}
	if u.AppMetadata != nil {
		claims["app_metadata"] = u.AppMetadata
	}
	if u.UserMetadata != nil {
		claims["user_metadata"] = u.UserMetadata
	}
	return claims
}

// Lookup resolves a dotted claim path. The second result is false when any
// segment is missing.
func (u *User) Lookup(path string) (any, bool) {
	var cur any = u.Claims()
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Session is the token pair issued by a successful sign in.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *User
}

// Provider is the identity provider contract the access layer consumes.
type Provider interface {
	GetUser(ctx context.Context, accessToken string) (*User, error)
	SignOut(ctx context.Context, accessToken string) error
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
}
