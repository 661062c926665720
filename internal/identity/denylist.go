package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fallbackRevocationTTL is used when a token carries no readable exp.
const fallbackRevocationTTL = time.Hour

// Denylist records signed-out access tokens in Redis until they expire.
type Denylist struct {
	client *redis.Client
	prefix string
}

// NewDenylist constructs a Denylist.
func NewDenylist(client *redis.Client) *Denylist {
	return &Denylist{client: client, prefix: "revoked:"}
}

// Revoke stores the token until its own expiry.
func (d *Denylist) Revoke(ctx context.Context, accessToken string) error {
	if d == nil || accessToken == "" {
		return nil
	}
	ttl := fallbackRevocationTTL
	if exp, err := TokenExpiry(accessToken); err == nil {
		ttl = time.Until(exp)
	}
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, d.key(accessToken), 1, ttl).Err(); err != nil {
		return fmt.Errorf("identity: revoke token: %w", err)
	}
	return nil
}

// IsRevoked reports whether accessToken was signed out.
func (d *Denylist) IsRevoked(ctx context.Context, accessToken string) (bool, error) {
	if d == nil || accessToken == "" {
		return false, nil
	}
	err := d.client.Get(ctx, d.key(accessToken)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("identity: check revocation: %w", err)
	}
}

func (d *Denylist) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return d.prefix + hex.EncodeToString(sum[:])
}

// RevocationProvider rejects tokens found on the Denylist before asking the
// wrapped provider. A failing denylist lookup is an availability failure.
type RevocationProvider struct {
	inner    Provider
	denylist *Denylist
}

// NewRevocationProvider wraps inner.
func NewRevocationProvider(inner Provider, denylist *Denylist) *RevocationProvider {
	return &RevocationProvider{inner: inner, denylist: denylist}
}

// GetUser implements Provider.
func (p *RevocationProvider) GetUser(ctx context.Context, accessToken string) (*User, error) {
	revoked, err := p.denylist.IsRevoked(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return p.inner.GetUser(ctx, accessToken)
}

// SignOut signs out upstream and records the token locally. The token is
// recorded even when the upstream call fails.
func (p *RevocationProvider) SignOut(ctx context.Context, accessToken string) error {
	upstreamErr := p.inner.SignOut(ctx, accessToken)
	if err := p.denylist.Revoke(ctx, accessToken); err != nil {
		return errors.Join(upstreamErr, err)
	}
	return upstreamErr
}

// SignInWithPassword implements Provider.
func (p *RevocationProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return p.inner.SignInWithPassword(ctx, email, password)
}

var _ Provider = (*RevocationProvider)(nil)
