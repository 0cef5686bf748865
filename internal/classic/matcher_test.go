package classic

import "testing"

func TestKeywordMatcher_Match(t *testing.T) {
	m := NewKeywordMatcher()

	tests := []struct {
		text       string
		wantIntent string
	}{
		{"qué hora es", "hora"},
		{"oye, qué hora es por favor", "hora"},
		{"recuérdame tomar la pastilla", "recordatorio"},
		{"emergencia", "emergencia"},
		{"lee mis mensajes", "leer_mensajes"},
		{"enciende la luz del patio", "enchufe"},
	}
	for _, tt := range tests {
		got := m.Match(tt.text)
		if got.Intent != tt.wantIntent {
			t.Errorf("Match(%q) intent = %q, want %q", tt.text, got.Intent, tt.wantIntent)
		}
		if got.Confidence <= 0 {
			t.Errorf("Match(%q) confidence = %v, want > 0", tt.text, got.Confidence)
		}
	}
}

func TestKeywordMatcher_NoMatch(t *testing.T) {
	m := NewKeywordMatcher()
	got := m.Match("cuéntame sobre las plantas medicinales")
	if got.Intent != "" || got.Confidence != 0 {
		t.Errorf("expected zero result, got %+v", got)
	}
}

func TestKeywordMatcher_EmptyText(t *testing.T) {
	m := NewKeywordMatcher()
	got := m.Match("   ")
	if got.Intent != "" || got.Confidence != 0 {
		t.Errorf("expected zero result for blank text, got %+v", got)
	}
}

func TestKeywordMatcher_LongestTriggerWins(t *testing.T) {
	m := NewKeywordMatcher()
	// "ayuda urgente" contains no shorter competing trigger; make sure the
	// emergency phrase still wins over substring noise.
	got := m.Match("necesito ayuda urgente ahora")
	if got.Intent != "emergencia" {
		t.Errorf("expected emergencia, got %q", got.Intent)
	}
	if got.Response == "" {
		t.Error("expected prebuilt emergency response")
	}
}
