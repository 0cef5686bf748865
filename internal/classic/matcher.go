// Package classic provides the deterministic intent matcher contract and a
// keyword reference implementation.
//
// The real intent grammar lives outside this core; the router only needs
// the narrow Match contract. The reference matcher covers the assistant's
// critical commands so the service runs end to end without it.
package classic

import (
	"log/slog"
	"strings"

	"github.com/katavoz/KataRoute/internal/models"
)

// Matcher is the deterministic command matcher contract. Match is
// synchronous, assumed low-latency, and must not fail: internal errors
// map to a zero-confidence result.
type Matcher interface {
	Match(text string) models.ClassicMatchResult
}

// intentPattern maps trigger phrases to an intent with a fixed confidence
// and optional prebuilt response.
type intentPattern struct {
	intent     string
	confidence float64
	response   string
	triggers   []string
}

// KeywordMatcher is a phrase-table matcher for the assistant's core
// commands. Longest-trigger match wins so "lee mis mensajes" beats "lee".
type KeywordMatcher struct {
	patterns []intentPattern
}

// NewKeywordMatcher builds the reference matcher with the built-in
// command table.
func NewKeywordMatcher() *KeywordMatcher {
	return &KeywordMatcher{patterns: []intentPattern{
		{
			intent:     "emergencia",
			confidence: 1.0,
			response:   "Aviso de emergencia activado. Estoy contactando a tu persona de confianza.",
			triggers:   []string{"emergencia", "socorro", "ayuda urgente", "auxilio"},
		},
		{
			intent:     "hora",
			confidence: 0.95,
			triggers:   []string{"qué hora es", "que hora es", "dime la hora", "la hora"},
		},
		{
			intent:     "fecha",
			confidence: 0.95,
			triggers:   []string{"qué día es", "que dia es", "qué fecha", "dime la fecha"},
		},
		{
			intent:     "recordatorio",
			confidence: 0.9,
			triggers:   []string{"recuérdame", "recuerdame", "pon un recordatorio", "mis recordatorios", "recordatorio"},
		},
		{
			intent:     "leer_mensajes",
			confidence: 0.9,
			triggers:   []string{"lee mis mensajes", "leer mensajes", "tengo mensajes", "qué mensajes", "que mensajes"},
		},
		{
			intent:     "enchufe",
			confidence: 0.9,
			triggers:   []string{"enciende el enchufe", "apaga el enchufe", "enciende la luz", "apaga la luz"},
		},
	}}
}

// Match scans the utterance for the longest known trigger phrase. No
// match yields an empty intent with confidence 0.
func (m *KeywordMatcher) Match(text string) models.ClassicMatchResult {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return models.ClassicMatchResult{}
	}

	best := models.ClassicMatchResult{}
	bestLen := 0
	for _, p := range m.patterns {
		for _, trigger := range p.triggers {
			if len(trigger) > bestLen && strings.Contains(normalized, trigger) {
				best = models.ClassicMatchResult{
					Intent:     p.intent,
					Confidence: p.confidence,
					Response:   p.response,
				}
				bestLen = len(trigger)
			}
		}
	}

	if best.Intent != "" {
		slog.Debug("classic.Match: intent matched", "intent", best.Intent, "confidence", best.Confidence)
	}
	return best
}
