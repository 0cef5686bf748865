package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/katavoz/KataRoute/internal/models"
)

func TestFileStore_LoadAndGet(t *testing.T) {
	doc := `profiles:
  maria:
    display_name: "María"
    city: "Sevilla"
    known_plants: ["sábila", "romero"]
    religious: true
    policy:
      generative_enabled: true
      classic_confidence_threshold: 0.9
      never_generative: ["emergencia"]
    comm:
      max_response_words: 40
      register: "cercano_respetuoso"
`
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write profiles file: %v", err)
	}

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	p, err := s.Get("maria")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.ID != "maria" {
		t.Errorf("ID = %q, want maria", p.ID)
	}
	if p.DisplayName != "María" || p.City != "Sevilla" {
		t.Errorf("profile = %+v, want display name and city from file", p)
	}
	if len(p.KnownPlants) != 2 || p.KnownPlants[0] != "sábila" {
		t.Errorf("KnownPlants = %v, want [sábila romero]", p.KnownPlants)
	}
	if !p.Policy.GenerativeEnabled || p.Policy.ClassicConfidenceThreshold != 0.9 {
		t.Errorf("Policy = %+v, want values from file", p.Policy)
	}
	if !p.Policy.IsNeverGenerative("emergencia") {
		t.Error("IsNeverGenerative(emergencia) = false, want true")
	}
	if p.Comm.MaxResponseWords != 40 {
		t.Errorf("MaxResponseWords = %d, want 40", p.Comm.MaxResponseWords)
	}
}

func TestFileStore_UnknownUserGetsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte("profiles: {}\n"), 0o644); err != nil {
		t.Fatalf("write profiles file: %v", err)
	}

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}

	p, err := s.Get("stranger")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.ID != "stranger" || !p.Policy.GenerativeEnabled {
		t.Errorf("Get(stranger) = %+v, want permissive default", p)
	}
}

func TestFileStore_MissingFile(t *testing.T) {
	if _, err := NewFileStore("/nonexistent/profiles.yaml"); err == nil {
		t.Error("NewFileStore() error = nil, want error for missing file")
	}
}

func TestStaticStore(t *testing.T) {
	s := NewStaticStore(models.UserProfile{ID: "ana", DisplayName: "Ana"})

	p, err := s.Get("ana")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.DisplayName != "Ana" {
		t.Errorf("DisplayName = %q, want Ana", p.DisplayName)
	}

	p, _ = s.Get("unknown")
	if p.ID != "unknown" {
		t.Errorf("default profile ID = %q, want unknown", p.ID)
	}
}
