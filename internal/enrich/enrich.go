// Package enrich classifies an utterance's topical domain, temporal
// period, question type, and tone into a QueryContext.
//
// Every classification is total: any input, including empty text,
// produces a well-formed context. The degenerate case is
// general-info with confidence 0, not an error.
package enrich

import (
	"log/slog"
	"strings"
	"time"

	"github.com/katavoz/KataRoute/internal/models"
)

// Tone and question lexicons. Urgency outranks negative outranks
// positive; neutral is the default.
var (
	positiveWords = map[string]bool{
		"gracias": true, "bien": true, "bueno": true, "buena": true,
		"excelente": true, "perfecto": true, "genial": true,
	}
	negativeWords = map[string]bool{
		"mal": true, "problema": true, "error": true, "falla": true,
		"triste": true, "preocupada": true, "preocupado": true,
	}
	urgentWords = map[string]bool{
		"urgente": true, "rápido": true, "ahora": true, "inmediato": true,
		"ya": true,
	}

	interrogatives = map[string]models.QuestionType{
		"qué":    models.QuestionWhat,
		"que":    models.QuestionWhat,
		"cómo":   models.QuestionHow,
		"como":   models.QuestionHow,
		"cuándo": models.QuestionWhen,
		"cuando": models.QuestionWhen,
		"dónde":  models.QuestionWhere,
		"donde":  models.QuestionWhere,
		"quién":  models.QuestionWho,
		"quien":  models.QuestionWho,
	}

	// Leading connectors skipped before interrogative detection, so
	// "¿y eso cuándo lo riego?" still reads as a when-question.
	leadingConnectors = map[string]bool{
		"y": true, "pero": true, "entonces": true, "eso": true, "esto": true,
		"oye": true, "dime": true,
	}
)

// Temporal period boundaries (hour of day).
const (
	morningStart   = 5
	afternoonStart = 12
	eveningStart   = 19
	nightStart     = 22
)

// Enricher classifies utterances. Safe for concurrent use; it holds no
// mutable state.
type Enricher struct {
	domainCutoff float64
}

// NewEnricher creates an enricher with the given domain confidence
// cutoff (scores below it fall back to general-info).
func NewEnricher(domainCutoff float64) *Enricher {
	return &Enricher{domainCutoff: domainCutoff}
}

// Enrich builds the QueryContext for one utterance. Pure function of
// the text and the supplied clock reading.
func (e *Enricher) Enrich(text string, now time.Time) models.QueryContext {
	domain, confidence := e.classifyDomain(text)
	period, greeting := temporalContext(now.Hour())

	qc := models.QueryContext{
		Domain:           domain,
		DomainConfidence: confidence,
		Period:           period,
		Greeting:         greeting,
		QuestionType:     classifyQuestion(text),
		Tone:             classifyTone(text),
	}
	slog.Debug("enrich.Enrich: context built",
		"domain", qc.Domain, "confidence", qc.DomainConfidence,
		"period", qc.Period, "question", qc.QuestionType, "tone", qc.Tone)
	return qc
}

// classifyDomain scores every registered domain by weighted keyword
// presence, normalized by utterance length.
func (e *Enricher) classifyDomain(text string) (string, float64) {
	normalized := normalize(text)
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return DomainGeneralInfo, 0
	}

	tokenSet := make(map[string]bool, len(words))
	for _, w := range words {
		tokenSet[w] = true
	}

	bestDomain := ""
	bestScore := 0.0
	for _, domain := range domainOrder {
		score := 0.0
		for _, kw := range domainKeywords[domain] {
			if !keywordPresent(normalized, tokenSet, kw) {
				continue
			}
			// A keyword opening the utterance weighs double.
			if strings.HasPrefix(normalized, kw) {
				score += 2
			} else {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestDomain = domain
		}
	}

	confidence := bestScore / float64(len(words))
	if confidence > 1 {
		confidence = 1
	}
	if bestDomain == "" || confidence < e.domainCutoff {
		return DomainGeneralInfo, 0
	}
	return bestDomain, confidence
}

func keywordPresent(normalized string, tokens map[string]bool, keyword string) bool {
	if strings.Contains(keyword, " ") {
		return strings.Contains(normalized, keyword)
	}
	return tokens[keyword]
}

// classifyQuestion inspects the first few tokens for an interrogative,
// skipping leading connectors.
func classifyQuestion(text string) models.QuestionType {
	words := strings.Fields(normalize(text))
	inspected := 0
	for _, w := range words {
		if leadingConnectors[w] {
			continue
		}
		if qt, ok := interrogatives[w]; ok {
			return qt
		}
		inspected++
		if inspected >= 3 {
			break
		}
	}
	return models.QuestionNone
}

func classifyTone(text string) models.Tone {
	words := strings.Fields(normalize(text))
	tone := models.ToneNeutral
	for _, w := range words {
		switch {
		case urgentWords[w]:
			return models.ToneUrgent
		case negativeWords[w] && tone != models.ToneNegative:
			tone = models.ToneNegative
		case positiveWords[w] && tone == models.ToneNeutral:
			tone = models.TonePositive
		}
	}
	return tone
}

// temporalContext maps an hour to the period enum and its greeting.
func temporalContext(hour int) (models.TemporalPeriod, string) {
	switch {
	case hour >= morningStart && hour < afternoonStart:
		return models.PeriodMorning, "Buenos días"
	case hour >= afternoonStart && hour < eveningStart:
		return models.PeriodAfternoon, "Buenas tardes"
	case hour >= eveningStart && hour < nightStart:
		return models.PeriodEvening, "Buenas noches"
	default:
		return models.PeriodNight, "Buenas noches"
	}
}

// normalize lowercases and strips the punctuation that would otherwise
// glue itself to tokens (¿qué, riego?).
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch r {
		case '¿', '?', '¡', '!', ',', '.', ';', ':':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
