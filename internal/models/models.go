// Package models defines the core data structures for KataRoute.
//
// It includes the utterance, routing, context, memory, and prompt types
// shared across the routing pipeline modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// Path identifies which processing route produced a response.
type Path string

const (
	// PathClassic means the deterministic command matcher answered.
	PathClassic Path = "classic"
	// PathGenerative means the LLM pipeline answered.
	PathGenerative Path = "generative"
	// PathFallback means a failure degraded to the generic safe response.
	PathFallback Path = "fallback"
)

// IsValidPath checks if the given routing path is supported.
func IsValidPath(p Path) bool {
	switch p {
	case PathClassic, PathGenerative, PathFallback:
		return true
	default:
		return false
	}
}

// TemporalPeriod is the coarse time-of-day bucket used for greetings.
type TemporalPeriod string

const (
	PeriodMorning   TemporalPeriod = "morning"
	PeriodAfternoon TemporalPeriod = "afternoon"
	PeriodEvening   TemporalPeriod = "evening"
	PeriodNight     TemporalPeriod = "night"
)

// QuestionType classifies the leading interrogative of an utterance.
type QuestionType string

const (
	QuestionWhat  QuestionType = "what"
	QuestionHow   QuestionType = "how"
	QuestionWhen  QuestionType = "when"
	QuestionWhere QuestionType = "where"
	QuestionWho   QuestionType = "who"
	QuestionNone  QuestionType = "none"
)

// Tone is the heuristic emotional register of an utterance.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
	ToneNeutral  Tone = "neutral"
	ToneUrgent   Tone = "urgent"
)

// MemoryReason explains a conversational memory inclusion decision.
type MemoryReason string

const (
	ReasonExplicitTopicChange MemoryReason = "explicit_topic_change"
	ReasonExplicitReference   MemoryReason = "explicit_reference"
	ReasonContinuationRequest MemoryReason = "continuation_request"
	ReasonStrongDomainChange  MemoryReason = "strong_domain_change"
	ReasonStrictWindow        MemoryReason = "strict_window"
	ReasonExtendedWindow      MemoryReason = "extended_window"
	ReasonIncompleteContext   MemoryReason = "incomplete_context"
	ReasonNone                MemoryReason = "none"
)

// Error variables for better error handling and testability
var (
	ErrEmptyUserID       = errors.New("user id cannot be empty")
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")
	ErrCorruptEntry      = errors.New("memory entry is corrupt or unreadable")
)

// Utterance is a single transcribed user input. Immutable once created.
type Utterance struct {
	UserID     string    `json:"user_id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// NewUtterance builds an utterance stamped with the given arrival time.
func NewUtterance(userID, text string, receivedAt time.Time) (Utterance, error) {
	if strings.TrimSpace(userID) == "" {
		return Utterance{}, ErrEmptyUserID
	}
	return Utterance{UserID: userID, Text: text, ReceivedAt: receivedAt}, nil
}

// ClassicMatchResult is the deterministic matcher's verdict for one utterance.
type ClassicMatchResult struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	// Response is the prebuilt response text, if the matcher produced one.
	Response string `json:"response,omitempty"`
}

// UserPolicy is the routing-relevant subset of a user profile.
type UserPolicy struct {
	GenerativeEnabled          bool     `json:"generative_enabled" koanf:"generative_enabled"`
	ClassicConfidenceThreshold float64  `json:"classic_confidence_threshold" koanf:"classic_confidence_threshold"`
	AlwaysClassic              []string `json:"always_classic" koanf:"always_classic"`
	NeverGenerative            []string `json:"never_generative" koanf:"never_generative"`
}

// IsAlwaysClassic reports whether the intent must always use the classic path.
func (p UserPolicy) IsAlwaysClassic(intent string) bool {
	return containsFold(p.AlwaysClassic, intent)
}

// IsNeverGenerative reports whether the intent may never reach the generative path.
func (p UserPolicy) IsNeverGenerative(intent string) bool {
	return containsFold(p.NeverGenerative, intent)
}

func containsFold(set []string, v string) bool {
	if v == "" {
		return false
	}
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// CommunicationPrefs holds style directives for generative responses.
type CommunicationPrefs struct {
	MaxResponseWords int    `json:"max_response_words" koanf:"max_response_words"`
	UseEmojis        bool   `json:"use_emojis" koanf:"use_emojis"`
	Register         string `json:"register" koanf:"register"` // e.g. "cercano_respetuoso", "formal"
}

// UserProfile carries the policy plus the personalization fields the
// prompt builder consumes. Loaded read-only once per request.
type UserProfile struct {
	ID             string             `json:"id" koanf:"id"`
	DisplayName    string             `json:"display_name" koanf:"display_name"`
	City           string             `json:"city" koanf:"city"`
	KnownPlants    []string           `json:"known_plants" koanf:"known_plants"`
	FavoriteDishes []string           `json:"favorite_dishes" koanf:"favorite_dishes"`
	PetNames       []string           `json:"pet_names" koanf:"pet_names"`
	Entertainment  []string           `json:"entertainment" koanf:"entertainment"`
	FavoriteTopics []string           `json:"favorite_topics" koanf:"favorite_topics"`
	Religious      bool               `json:"religious" koanf:"religious"`
	Policy         UserPolicy         `json:"policy" koanf:"policy"`
	Comm           CommunicationPrefs `json:"comm" koanf:"comm"`
}

// QueryContext is the enriched view of one utterance. Never mutated
// after creation.
type QueryContext struct {
	Domain           string         `json:"domain"`
	DomainConfidence float64        `json:"domain_confidence"`
	Period           TemporalPeriod `json:"period"`
	Greeting         string         `json:"greeting"`
	QuestionType     QuestionType   `json:"question_type"`
	Tone             Tone           `json:"tone"`
}

// MemoryEntry is one recorded generative turn. Append-only, owned by
// the conversation memory for a given user id.
type MemoryEntry struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Domain    string    `json:"domain"`
}

// MemoryDecision is the outcome of the memory inclusion cascade.
type MemoryDecision struct {
	Include bool         `json:"include"`
	Reason  MemoryReason `json:"reason"`
	// Entry references the qualifying memory entry when Include is true.
	Entry *MemoryEntry `json:"entry,omitempty"`
}

// PromptLayer is one rendered section of the generative prompt.
type PromptLayer struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// PromptSpec is the fully rendered generative prompt. Built once, immutable.
type PromptSpec struct {
	Layers []PromptLayer `json:"layers"`
	Text   string        `json:"text"`
}

// RoutingResult is the only value the router returns to its caller.
type RoutingResult struct {
	ResponseText string  `json:"response_text"`
	Path         Path    `json:"path"`
	Intent       string  `json:"intent,omitempty"`
	Domain       string  `json:"domain,omitempty"`
	Confidence   float64 `json:"confidence"`
}

// DecisionRecord is the audit trail entry emitted for every routing
// decision, on every branch including fallback.
type DecisionRecord struct {
	ID                string       `json:"id"`
	UserID            string       `json:"user_id"`
	InputPreview      string       `json:"input_preview"`
	Path              Path         `json:"path"`
	Rule              string       `json:"rule"`
	ClassicIntent     string       `json:"classic_intent,omitempty"`
	ClassicConfidence float64      `json:"classic_confidence"`
	Domain            string       `json:"domain,omitempty"`
	MemoryReason      MemoryReason `json:"memory_reason,omitempty"`
	Error             string       `json:"error,omitempty"`
	ReceivedAt        time.Time    `json:"received_at"`
	LatencyMS         int64        `json:"latency_ms"`
}

// MaxInputPreviewLength bounds the utterance text stored in audit records.
const MaxInputPreviewLength = 100

// PreviewText truncates text for audit storage.
func PreviewText(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxInputPreviewLength {
		return text
	}
	return string(runes[:MaxInputPreviewLength])
}
