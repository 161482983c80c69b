package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"quarterly/api/internal/store"
)

// PostgresRegistry backs the session registry with the api_sessions
// table, for deployments without Redis.
type PostgresRegistry struct {
	store *store.PostgresStore
}

func NewPostgresRegistry(s *store.PostgresStore) *PostgresRegistry {
	return &PostgresRegistry{store: s}
}

func (r *PostgresRegistry) SaveSession(ctx context.Context, tokenHash string, id Identity, ttlSeconds int64) error {
	if ttlSeconds <= 0 {
		ttlSeconds = 30 * 24 * 60 * 60
	}
	expiresAt := time.Now().Add(time.Duration(ttlSeconds) * time.Second)
	return r.store.SaveAPISession(ctx, tokenHash, id.ID, id.Name, id.Role, expiresAt)
}

// ResolveToken distinguishes an absent or expired session
// (ErrInvalidCredential) from a database failure.
func (r *PostgresRegistry) ResolveToken(ctx context.Context, tokenHash string) (Identity, error) {
	user, err := r.store.LookupAPISession(ctx, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, ErrInvalidCredential
	}
	if err != nil {
		return Identity{}, fmt.Errorf("lookup api session: %w", err)
	}
	return Identity{ID: user.ID, Name: user.Name, Role: user.Role}, nil
}

func (r *PostgresRegistry) RevokeToken(ctx context.Context, tokenHash string) error {
	return r.store.RevokeAPISession(ctx, tokenHash)
}
