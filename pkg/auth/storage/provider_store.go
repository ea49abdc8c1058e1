package storage

import (
	"context"
	"errors"

	"github.com/openzim/cmsctl/pkg/auth/types"
	"github.com/rs/zerolog"
)

// ProviderStore is the token store of one provider namespace.
//
// It never surfaces persistence failures to callers: a failing medium is
// logged and the session degrades to in-memory operation. Corrupt or
// expired entries read as absent and are removed.
type ProviderStore struct {
	backend   TokenStorage
	namespace types.ProviderType
	logger    zerolog.Logger
}

// NewProviderStore wraps backend for namespace.
func NewProviderStore(backend TokenStorage, namespace types.ProviderType, logger zerolog.Logger) *ProviderStore {
	return &ProviderStore{
		backend:   backend,
		namespace: namespace,
		logger:    logger.With().Str("namespace", string(namespace)).Logger(),
	}
}

// Namespace returns the provider namespace this store is bound to.
func (s *ProviderStore) Namespace() types.ProviderType {
	return s.namespace
}

// Location describes where the backend keeps entries, "" when unknown.
func (s *ProviderStore) Location() string {
	return Describe(s.backend)
}

// Save persists token, logging any failure.
func (s *ProviderStore) Save(ctx context.Context, token *types.StoredToken) {
	if token == nil {
		return
	}
	if err := s.backend.SaveToken(ctx, token); err != nil {
		s.logger.Warn().Err(&Error{Operation: "save", Namespace: string(s.namespace), Cause: err}).
			Msg("token not persisted, continuing in memory")
	}
}

// Load returns the stored token, or nil when absent, expired or unreadable.
func (s *ProviderStore) Load(ctx context.Context) *types.StoredToken {
	token, err := s.backend.LoadToken(ctx)
	switch {
	case err == nil:
		return token
	case errors.Is(err, errEntryElapsed):
		s.Remove(ctx)
		return nil
	case errors.Is(err, ErrNotFound):
		return nil
	case errors.Is(err, ErrCorrupt):
		s.logger.Warn().Err(err).Msg("discarding corrupt token entry")
		s.Remove(ctx)
		return nil
	default:
		s.logger.Warn().Err(&Error{Operation: "load", Namespace: string(s.namespace), Cause: err}).
			Msg("token storage unavailable")
		return nil
	}
}

// Remove deletes the stored token. Removing an absent token is not an error.
func (s *ProviderStore) Remove(ctx context.Context) {
	if err := s.backend.DeleteToken(ctx); err != nil {
		s.logger.Warn().Err(&Error{Operation: "delete", Namespace: string(s.namespace), Cause: err}).
			Msg("token not removed")
	}
}
