package enrich

import (
	"testing"
	"time"

	"github.com/katavoz/KataRoute/internal/models"
)

func newTestEnricher() *Enricher {
	return NewEnricher(0.3)
}

func at(hour int) time.Time {
	return time.Date(2025, 3, 10, hour, 30, 0, 0, time.UTC)
}

func TestEnrich_EmptyUtterance(t *testing.T) {
	qc := newTestEnricher().Enrich("", at(10))
	if qc.Domain != DomainGeneralInfo {
		t.Errorf("expected general-info, got %q", qc.Domain)
	}
	if qc.DomainConfidence != 0 {
		t.Errorf("expected confidence 0, got %v", qc.DomainConfidence)
	}
	if qc.QuestionType != models.QuestionNone {
		t.Errorf("expected question type none, got %q", qc.QuestionType)
	}
	if qc.Tone != models.ToneNeutral {
		t.Errorf("expected neutral tone, got %q", qc.Tone)
	}
}

func TestEnrich_PlantDomain(t *testing.T) {
	qc := newTestEnricher().Enrich("¿cuándo riego la sábila?", at(10))
	if qc.Domain != DomainPlants {
		t.Errorf("expected plants, got %q", qc.Domain)
	}
	if qc.DomainConfidence < 0.3 {
		t.Errorf("expected confidence >= cutoff, got %v", qc.DomainConfidence)
	}
	if qc.QuestionType != models.QuestionWhen {
		t.Errorf("expected when, got %q", qc.QuestionType)
	}
}

func TestEnrich_LowScoreFallsBack(t *testing.T) {
	// One weak keyword diluted by a long utterance drops under the cutoff.
	qc := newTestEnricher().Enrich("me gustaría saber muchas cosas interesantes y variadas sobre la historia universal de todos los tiempos planta", at(10))
	if qc.Domain != DomainGeneralInfo {
		t.Errorf("expected general-info fallback, got %q (conf %v)", qc.Domain, qc.DomainConfidence)
	}
	if qc.DomainConfidence != 0 {
		t.Errorf("fallback confidence must be 0, got %v", qc.DomainConfidence)
	}
}

func TestEnrich_TemporalPeriods(t *testing.T) {
	tests := []struct {
		hour     int
		period   models.TemporalPeriod
		greeting string
	}{
		{5, models.PeriodMorning, "Buenos días"},
		{11, models.PeriodMorning, "Buenos días"},
		{12, models.PeriodAfternoon, "Buenas tardes"},
		{18, models.PeriodAfternoon, "Buenas tardes"},
		{19, models.PeriodEvening, "Buenas noches"},
		{21, models.PeriodEvening, "Buenas noches"},
		{22, models.PeriodNight, "Buenas noches"},
		{3, models.PeriodNight, "Buenas noches"},
	}
	e := newTestEnricher()
	for _, tt := range tests {
		qc := e.Enrich("hola", at(tt.hour))
		if qc.Period != tt.period {
			t.Errorf("hour %d: expected period %q, got %q", tt.hour, tt.period, qc.Period)
		}
		if qc.Greeting != tt.greeting {
			t.Errorf("hour %d: expected greeting %q, got %q", tt.hour, tt.greeting, qc.Greeting)
		}
	}
}

func TestEnrich_QuestionTypes(t *testing.T) {
	tests := []struct {
		text string
		want models.QuestionType
	}{
		{"¿qué es la sábila?", models.QuestionWhat},
		{"cómo preparo el locro", models.QuestionHow},
		{"¿y eso cuándo lo riego?", models.QuestionWhen},
		{"dónde está la iglesia", models.QuestionWhere},
		{"quién eres", models.QuestionWho},
		{"enciende la luz", models.QuestionNone},
	}
	e := newTestEnricher()
	for _, tt := range tests {
		if got := e.Enrich(tt.text, at(10)).QuestionType; got != tt.want {
			t.Errorf("QuestionType(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestEnrich_Tones(t *testing.T) {
	tests := []struct {
		text string
		want models.Tone
	}{
		{"gracias, muy bueno", models.TonePositive},
		{"tengo un problema con la luz", models.ToneNegative},
		{"necesito ayuda urgente ya", models.ToneUrgent},
		{"cuéntame de las plantas", models.ToneNeutral},
		// Urgency beats the negative lexicon.
		{"hay un problema urgente", models.ToneUrgent},
	}
	e := newTestEnricher()
	for _, tt := range tests {
		if got := e.Enrich(tt.text, at(10)).Tone; got != tt.want {
			t.Errorf("Tone(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestEnrich_Deterministic(t *testing.T) {
	e := newTestEnricher()
	now := at(15)
	a := e.Enrich("¿cómo cuido mis plantas?", now)
	b := e.Enrich("¿cómo cuido mis plantas?", now)
	if a != b {
		t.Errorf("expected identical contexts, got %+v vs %+v", a, b)
	}
}
