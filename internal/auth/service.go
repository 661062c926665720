package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/quanly-erp/quanly/internal/identity"
)

// Service wraps the identity provider's session operations.
type Service struct {
	provider identity.Provider
}

// NewService constructs a new Service.
func NewService(provider identity.Provider) *Service {
	return &Service{provider: provider}
}

// Login exchanges credentials for a provider session.
func (s *Service) Login(ctx context.Context, email, password string) (*identity.Session, error) {
	sess, err := s.provider.SignInWithPassword(ctx, strings.TrimSpace(strings.ToLower(email)), password)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.AccessToken == "" {
		return nil, errors.New("auth: provider returned an empty session")
	}
	return sess, nil
}

// Logout ends the provider session for accessToken. A missing token is not
// an error.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return s.provider.SignOut(ctx, accessToken)
}
