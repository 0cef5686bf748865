package models

import (
	"strings"
	"testing"
	"time"
)

func TestNewUtterance(t *testing.T) {
	now := time.Now()
	u, err := NewUtterance("francisca", "hola", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.UserID != "francisca" || u.Text != "hola" || !u.ReceivedAt.Equal(now) {
		t.Errorf("utterance fields not set correctly: %+v", u)
	}
}

func TestNewUtterance_EmptyUserID(t *testing.T) {
	_, err := NewUtterance("  ", "hola", time.Now())
	if err != ErrEmptyUserID {
		t.Errorf("expected ErrEmptyUserID, got %v", err)
	}
}

func TestIsValidPath(t *testing.T) {
	for _, p := range []Path{PathClassic, PathGenerative, PathFallback} {
		if !IsValidPath(p) {
			t.Errorf("expected %q to be valid", p)
		}
	}
	if IsValidPath(Path("telepathic")) {
		t.Error("expected unknown path to be invalid")
	}
}

func TestUserPolicy_CommandSets(t *testing.T) {
	p := UserPolicy{
		AlwaysClassic:   []string{"hora", "fecha"},
		NeverGenerative: []string{"emergencia"},
	}
	if !p.IsAlwaysClassic("hora") {
		t.Error("hora should be always-classic")
	}
	if !p.IsAlwaysClassic("HORA") {
		t.Error("set membership should be case-insensitive")
	}
	if p.IsAlwaysClassic("") {
		t.Error("empty intent should never match")
	}
	if !p.IsNeverGenerative("emergencia") {
		t.Error("emergencia should be never-generative")
	}
	if p.IsNeverGenerative("hora") {
		t.Error("hora is not in the never-generative set")
	}
}

func TestPreviewText(t *testing.T) {
	short := "qué hora es"
	if PreviewText(short) != short {
		t.Error("short text should be returned unchanged")
	}
	long := strings.Repeat("a", MaxInputPreviewLength+50)
	got := PreviewText(long)
	if len([]rune(got)) != MaxInputPreviewLength {
		t.Errorf("expected preview of %d runes, got %d", MaxInputPreviewLength, len([]rune(got)))
	}
}
