// Package identity resolves inbound requests to a user identity.
//
// Two provider strategies exist and the choice is made once at startup:
// public mode pins every request to the configured owner identity, and
// session mode resolves externally issued tokens against a session
// registry. An invalid credential in session mode is always rejected;
// it never falls back to the public identity.
package identity

import (
	"context"
	"errors"
)

type Identity struct {
	ID     int64
	OpenID string
	Name   string
	Role   string
}

var ErrInvalidCredential = errors.New("invalid credential")

// Provider turns a request credential into a resolved identity.
type Provider interface {
	Resolve(ctx context.Context, credential string) (Identity, error)
}

// Registry stores sessions issued by the external identity provider,
// keyed by token hash.
type Registry interface {
	SaveSession(ctx context.Context, tokenHash string, id Identity, ttlSeconds int64) error
	ResolveToken(ctx context.Context, tokenHash string) (Identity, error)
	RevokeToken(ctx context.Context, tokenHash string) error
}

// PublicProvider implements single-tenant public-access mode: every
// request resolves to the fixed owner identity regardless of credential.
type PublicProvider struct {
	owner Identity
}

func NewPublicProvider(openID, name string) *PublicProvider {
	return &PublicProvider{owner: Identity{
		ID:     1,
		OpenID: openID,
		Name:   name,
		Role:   "admin",
	}}
}

func (p *PublicProvider) Resolve(ctx context.Context, credential string) (Identity, error) {
	return p.owner, nil
}

// SessionProvider validates bearer tokens against the session registry.
type SessionProvider struct {
	registry Registry
}

func NewSessionProvider(registry Registry) *SessionProvider {
	return &SessionProvider{registry: registry}
}

// Resolve rejects missing or unknown tokens with ErrInvalidCredential.
// Registry outages propagate unchanged so the caller can answer 500
// rather than 401.
func (p *SessionProvider) Resolve(ctx context.Context, credential string) (Identity, error) {
	if credential == "" {
		return Identity{}, ErrInvalidCredential
	}
	id, err := p.registry.ResolveToken(ctx, HashToken(credential))
	if err != nil {
		return Identity{}, err
	}
	return id, nil
}
