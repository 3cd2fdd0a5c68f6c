package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/edgard/aiphone/internal/logger"
)

// Store loads and saves the single configuration record under one key.
type Store struct {
	backend Backend
	key     string
	log     *slog.Logger
}

// NewStore wraps backend; key is the persistence key ("aiPhoneConfig").
func NewStore(backend Backend, key string, log *slog.Logger) *Store {
	if log == nil {
		log = logger.Discard()
	}
	return &Store{
		backend: backend,
		key:     key,
		log:     log.With("component", "profile_store"),
	}
}

// Load returns the stored record. It fails soft: backend errors, malformed
// JSON and records failing validation are all reported as absent.
func (s *Store) Load(ctx context.Context) (*Profile, bool) {
	raw, ok, err := s.backend.Get(ctx, s.key)
	if err != nil {
		s.log.WarnContext(ctx, "Failed to read stored profile, treating as absent", "key", s.key, "error", err)
		return nil, false
	}
	if !ok {
		s.log.DebugContext(ctx, "No stored profile", "key", s.key)
		return nil, false
	}

	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		s.log.WarnContext(ctx, "Stored profile is malformed, treating as absent", "key", s.key, "error", err)
		return nil, false
	}
	if err := p.Validate(); err != nil {
		s.log.WarnContext(ctx, "Stored profile is incomplete, treating as absent", "key", s.key, "error", err)
		return nil, false
	}

	return &p, true
}

// Save validates p and overwrites any prior record in full.
func (s *Store) Save(ctx context.Context, p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	if err := s.backend.Put(ctx, s.key, string(data)); err != nil {
		s.log.ErrorContext(ctx, "Failed to save profile", "key", s.key, "error", err)
		return fmt.Errorf("failed to save profile: %w", err)
	}

	s.log.InfoContext(ctx, "Profile saved", "key", s.key, "name", p.Name)
	return nil
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}
