// Package profile loads user profiles for routing and personalization.
//
// Profiles are read-only at request time. The file store reads a YAML
// document keyed by user id; unknown users get a permissive default so
// routing never fails on a missing profile.
package profile

import (
	"fmt"
	"log/slog"

	"github.com/katavoz/KataRoute/internal/models"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Store resolves the profile for a user id.
type Store interface {
	Get(userID string) (models.UserProfile, error)
}

// DefaultProfile is what unknown users receive. Generative routing is
// enabled and the per-user threshold defers to the router default.
func DefaultProfile(userID string) models.UserProfile {
	return models.UserProfile{
		ID: userID,
		Policy: models.UserPolicy{
			GenerativeEnabled: true,
		},
		Comm: models.CommunicationPrefs{
			Register: "cercano_respetuoso",
		},
	}
}

// FileStore serves profiles loaded from a YAML file at startup.
type FileStore struct {
	profiles map[string]models.UserProfile
}

// NewFileStore reads the profiles file. The document holds a top-level
// "profiles" map keyed by user id.
func NewFileStore(path string) (*FileStore, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		slog.Error("FileStore failed to load profiles file", "error", err, "path", path)
		return nil, fmt.Errorf("failed to load profiles file %s: %w", path, err)
	}

	profiles := make(map[string]models.UserProfile)
	if err := k.Unmarshal("profiles", &profiles); err != nil {
		slog.Error("FileStore failed to parse profiles", "error", err, "path", path)
		return nil, fmt.Errorf("failed to parse profiles file %s: %w", path, err)
	}

	// The map key is authoritative for the profile id.
	for id, p := range profiles {
		p.ID = id
		profiles[id] = p
	}

	slog.Info("FileStore loaded profiles", "path", path, "count", len(profiles))
	return &FileStore{profiles: profiles}, nil
}

// Get returns the stored profile, or the default for unknown users.
func (s *FileStore) Get(userID string) (models.UserProfile, error) {
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	slog.Debug("FileStore.Get: unknown user, using default profile", "userID", userID)
	return DefaultProfile(userID), nil
}

// StaticStore serves a fixed profile set. Used when no profiles file is
// configured, and by tests.
type StaticStore struct {
	profiles map[string]models.UserProfile
}

// NewStaticStore builds a store over the given profiles, keyed by ID.
func NewStaticStore(profiles ...models.UserProfile) *StaticStore {
	m := make(map[string]models.UserProfile, len(profiles))
	for _, p := range profiles {
		m[p.ID] = p
	}
	return &StaticStore{profiles: m}
}

// Get returns the stored profile, or the default for unknown users.
func (s *StaticStore) Get(userID string) (models.UserProfile, error) {
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return DefaultProfile(userID), nil
}
