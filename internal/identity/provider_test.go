package identity

import (
	"context"
	"errors"
	"testing"
)

type stubRegistry struct {
	sessions map[string]Identity
}

func (s *stubRegistry) SaveSession(ctx context.Context, tokenHash string, id Identity, ttlSeconds int64) error {
	if s.sessions == nil {
		s.sessions = make(map[string]Identity)
	}
	s.sessions[tokenHash] = id
	return nil
}

func (s *stubRegistry) ResolveToken(ctx context.Context, tokenHash string) (Identity, error) {
	id, ok := s.sessions[tokenHash]
	if !ok {
		return Identity{}, ErrInvalidCredential
	}
	return id, nil
}

func (s *stubRegistry) RevokeToken(ctx context.Context, tokenHash string) error {
	delete(s.sessions, tokenHash)
	return nil
}

func TestPublicProviderIgnoresCredential(t *testing.T) {
	provider := NewPublicProvider("public-user", "Guest User")

	for _, credential := range []string{"", "anything", "Bearer junk"} {
		id, err := provider.Resolve(context.Background(), credential)
		if err != nil {
			t.Fatalf("credential %q: unexpected error %v", credential, err)
		}
		if id.ID != 1 {
			t.Errorf("credential %q: expected fixed id 1, got %d", credential, id.ID)
		}
		if id.Name != "Guest User" {
			t.Errorf("credential %q: expected owner name, got %s", credential, id.Name)
		}
	}
}

func TestSessionProviderRejectsEmptyCredential(t *testing.T) {
	provider := NewSessionProvider(&stubRegistry{})

	_, err := provider.Resolve(context.Background(), "")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

func TestSessionProviderNeverFallsBack(t *testing.T) {
	// An unknown token is rejected outright; there is no public-identity
	// fallback in session mode.
	provider := NewSessionProvider(&stubRegistry{})

	_, err := provider.Resolve(context.Background(), "unknown-token")
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
}

// downRegistry simulates a registry backend outage.
type downRegistry struct {
	err error
}

func (d *downRegistry) SaveSession(ctx context.Context, tokenHash string, id Identity, ttlSeconds int64) error {
	return d.err
}

func (d *downRegistry) ResolveToken(ctx context.Context, tokenHash string) (Identity, error) {
	return Identity{}, d.err
}

func (d *downRegistry) RevokeToken(ctx context.Context, tokenHash string) error {
	return d.err
}

func TestSessionProviderPropagatesRegistryOutage(t *testing.T) {
	// A registry failure is not an invalid credential; the error must
	// surface unchanged so the caller answers 500, not 401.
	outage := errors.New("dial tcp 127.0.0.1:6379: connection refused")
	provider := NewSessionProvider(&downRegistry{err: outage})

	_, err := provider.Resolve(context.Background(), "some-token")
	if errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("registry outage reported as invalid credential: %v", err)
	}
	if !errors.Is(err, outage) {
		t.Fatalf("expected outage error to propagate, got %v", err)
	}
}

func TestSessionProviderResolvesStoredToken(t *testing.T) {
	registry := &stubRegistry{}
	if err := registry.SaveSession(context.Background(), HashToken("opaque-token"),
		Identity{ID: 5, Name: "Ana", Role: "member"}, 0); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	provider := NewSessionProvider(registry)

	id, err := provider.Resolve(context.Background(), "opaque-token")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id.ID != 5 || id.Name != "Ana" {
		t.Errorf("unexpected identity %+v", id)
	}
}

func TestHashTokenIsStableAndOpaque(t *testing.T) {
	first := HashToken("some-token")
	second := HashToken("some-token")
	if first != second {
		t.Error("expected deterministic hash")
	}
	if first == "some-token" {
		t.Error("expected hashed value, got the raw token")
	}
	if len(first) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(first))
	}
	if HashToken("other-token") == first {
		t.Error("expected distinct hashes for distinct tokens")
	}
}
