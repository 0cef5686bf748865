// Package memory implements short-term conversational memory.
//
// It records generative turns per user and decides, through an ordered
// rule cascade, whether the previous turn should be included as context
// for the next one. Rules are evaluated in a fixed order and the first
// match wins, so every decision carries exactly one reason.
package memory

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/katavoz/KataRoute/internal/models"
	"github.com/katavoz/KataRoute/internal/store"
	"github.com/katavoz/KataRoute/internal/util"
)

// Truncation limits for recorded turns, in runes.
const (
	maxRecordedQueryLen    = 200
	maxRecordedResponseLen = 300
)

// Memory wraps a MemoryStore with the inclusion cascade and per-user
// write locking.
type Memory struct {
	store          store.MemoryStore
	strictWindow   time.Duration
	extendedWindow time.Duration
	maxWindow      time.Duration
	sessionID      string
	rules          []memoryRule
	incompatible   map[string]map[string]bool

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex

	now func() time.Time
}

// Opts holds configuration for the memory constructor.
type Opts struct {
	StrictWindow   time.Duration
	ExtendedWindow time.Duration
	MaxWindow      time.Duration
}

// Option is a functional option for New.
type Option func(*Opts)

// WithWindows sets the strict, extended, and maximum recall windows.
func WithWindows(strict, extended, max time.Duration) Option {
	return func(o *Opts) {
		o.StrictWindow = strict
		o.ExtendedWindow = extended
		o.MaxWindow = max
	}
}

// New creates a Memory over the given store. A fresh session id is
// generated per process so entries from earlier runs never blend in.
func New(st store.MemoryStore, opts ...Option) *Memory {
	cfg := Opts{
		StrictWindow:   2 * time.Minute,
		ExtendedWindow: 5 * time.Minute,
		MaxWindow:      10 * time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Memory{
		store:          st,
		strictWindow:   cfg.StrictWindow,
		extendedWindow: cfg.ExtendedWindow,
		maxWindow:      cfg.MaxWindow,
		sessionID:      util.GenerateSessionID(),
		userLocks:      make(map[string]*sync.Mutex),
		now:            time.Now,
	}
	m.incompatible = buildIncompatibilityMap()
	m.rules = m.buildRules()
	slog.Debug("Memory initialized", "sessionID", m.sessionID,
		"strictWindow", m.strictWindow, "extendedWindow", m.extendedWindow, "maxWindow", m.maxWindow)
	return m
}

// Marker phrases are matched against the normalized lowercase utterance.
var (
	topicChangeMarkers = []string{
		"cambiando de tema",
		"cambiemos de tema",
		"otra cosa",
		"hablemos de otra cosa",
		"olvida eso",
		"olvídalo",
		"dejemos eso",
		"otra pregunta",
		"pregunta diferente",
		"algo diferente",
	}
	// Bare pronouns like "eso" are too common to treat as references;
	// only explicit back-reference phrases qualify.
	referenceMarkers = []string{
		"sobre eso",
		"de eso",
		"lo que dijiste",
		"lo que me dijiste",
		"lo anterior",
		"cuéntame más",
		"otra vez",
		"de nuevo",
		"repite",
		"también",
	}
	continuationMarkers = []string{
		"más información",
		"más detalles",
		"explica mejor",
		"explícame mejor",
		"dime más",
		"sigue",
		"continúa",
		"y qué más",
	}
)

// Incomplete-context heuristics: utterances that lean on the previous
// turn to make sense.
// \b is ASCII-only in RE2 and misfires after accented letters, so the
// boundaries are spelled out.
var incompletePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(y|pero|entonces|así|por eso)(\s|$)`),
	regexp.MustCompile(`^(sí|si|no|tal vez|puede ser)(\s|$)`),
	regexp.MustCompile(`^(eso|esto|aquello)(\s|$)`),
	regexp.MustCompile(`^(otra|otro|más|menos)(\s+\S+)?$`),
}

// buildIncompatibilityMap registers domain pairs whose juxtaposition
// signals a deliberate subject change. Registration is symmetric.
// Neutral domains (general-info, smalltalk, religion) never block.
func buildIncompatibilityMap() map[string]map[string]bool {
	pairs := [][2]string{
		{"plants", "devices"},
		{"plants", "weather"},
		{"plants", "personal"},
		{"cooking", "devices"},
		{"cooking", "weather"},
		{"cooking", "personal"},
		{"pets", "devices"},
		{"pets", "weather"},
		{"pets", "personal"},
		{"entertainment", "devices"},
		{"entertainment", "weather"},
		{"entertainment", "personal"},
		{"weather", "devices"},
		{"weather", "personal"},
	}
	m := make(map[string]map[string]bool)
	add := func(a, b string) {
		if m[a] == nil {
			m[a] = make(map[string]bool)
		}
		m[a][b] = true
	}
	for _, p := range pairs {
		add(p[0], p[1])
		add(p[1], p[0])
	}
	return m
}

// ruleInput carries everything a rule may inspect.
type ruleInput struct {
	text    string
	qc      models.QueryContext
	entry   models.MemoryEntry
	elapsed time.Duration
}

// memoryRule evaluates one cascade step. matched=false passes control
// to the next rule.
type memoryRule struct {
	name string
	eval func(in ruleInput) (decision models.MemoryDecision, matched bool)
}

func (m *Memory) buildRules() []memoryRule {
	return []memoryRule{
		{
			name: "explicit_topic_change",
			eval: func(in ruleInput) (models.MemoryDecision, bool) {
				if containsAnyMarker(in.text, topicChangeMarkers) {
					return models.MemoryDecision{Include: false, Reason: models.ReasonExplicitTopicChange}, true
				}
				return models.MemoryDecision{}, false
			},
		},
		{
			name: "explicit_reference",
			eval: func(in ruleInput) (models.MemoryDecision, bool) {
				if in.elapsed <= m.maxWindow && containsAnyMarker(in.text, referenceMarkers) {
					return models.MemoryDecision{Include: true, Reason: models.ReasonExplicitReference}, true
				}
				return models.MemoryDecision{}, false
			},
		},
		{
			name: "continuation_request",
			eval: func(in ruleInput) (models.MemoryDecision, bool) {
				if in.elapsed <= m.maxWindow && containsAnyMarker(in.text, continuationMarkers) {
					return models.MemoryDecision{Include: true, Reason: models.ReasonContinuationRequest}, true
				}
				return models.MemoryDecision{}, false
			},
		},
		{
			// Not time-gated: an incompatible domain pair means a
			// subject change no matter how recent the last turn was.
			name: "strong_domain_change",
			eval: func(in ruleInput) (models.MemoryDecision, bool) {
				if m.incompatible[in.entry.Domain][in.qc.Domain] {
					return models.MemoryDecision{Include: false, Reason: models.ReasonStrongDomainChange}, true
				}
				return models.MemoryDecision{}, false
			},
		},
		{
			name: "strict_window",
			eval: func(in ruleInput) (models.MemoryDecision, bool) {
				if in.elapsed <= m.strictWindow {
					return models.MemoryDecision{Include: true, Reason: models.ReasonStrictWindow}, true
				}
				return models.MemoryDecision{}, false
			},
		},
		{
			name: "extended_window",
			eval: func(in ruleInput) (models.MemoryDecision, bool) {
				if in.elapsed <= m.extendedWindow && in.entry.Domain != "" && in.entry.Domain == in.qc.Domain {
					return models.MemoryDecision{Include: true, Reason: models.ReasonExtendedWindow}, true
				}
				return models.MemoryDecision{}, false
			},
		},
		{
			name: "incomplete_context",
			eval: func(in ruleInput) (models.MemoryDecision, bool) {
				if in.elapsed <= m.extendedWindow && looksIncomplete(in.text) {
					return models.MemoryDecision{Include: true, Reason: models.ReasonIncompleteContext}, true
				}
				return models.MemoryDecision{}, false
			},
		},
	}
}

// ShouldIncludeMemory runs the inclusion cascade for one utterance.
// Absent or expired entries, and store failures, resolve to exclusion
// so a degraded store never blocks routing.
func (m *Memory) ShouldIncludeMemory(ctx context.Context, userID string, qc models.QueryContext, text string) models.MemoryDecision {
	now := m.now()
	entry, err := m.store.LatestEntry(ctx, userID, now.Add(-m.maxWindow))
	if err != nil {
		slog.Warn("Memory.ShouldIncludeMemory: store read failed, excluding memory", "error", err, "userID", userID)
		return models.MemoryDecision{Include: false, Reason: models.ReasonNone}
	}
	if entry == nil {
		return models.MemoryDecision{Include: false, Reason: models.ReasonNone}
	}

	in := ruleInput{
		text:    normalizeText(text),
		qc:      qc,
		entry:   *entry,
		elapsed: now.Sub(entry.Timestamp),
	}
	for _, rule := range m.rules {
		decision, matched := rule.eval(in)
		if !matched {
			continue
		}
		if decision.Include {
			decision.Entry = entry
		}
		slog.Debug("Memory.ShouldIncludeMemory: rule matched",
			"userID", userID, "rule", rule.name, "include", decision.Include, "elapsed", in.elapsed)
		return decision
	}
	return models.MemoryDecision{Include: false, Reason: models.ReasonNone}
}

// Record persists one generative turn for the user. Query and response
// text are truncated before storage, and expired entries are pruned on
// every write.
func (m *Memory) Record(ctx context.Context, userID, query, response, domain string) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	now := m.now()
	entry := models.MemoryEntry{
		SessionID: m.sessionID,
		Timestamp: now,
		Query:     truncateRunes(query, maxRecordedQueryLen),
		Response:  truncateRunes(response, maxRecordedResponseLen),
		Domain:    domain,
	}
	if err := m.store.AppendEntry(ctx, userID, entry); err != nil {
		slog.Error("Memory.Record: append failed", "error", err, "userID", userID)
		return err
	}
	if removed, err := m.store.PruneEntries(ctx, now.Add(-m.maxWindow)); err != nil {
		slog.Warn("Memory.Record: prune failed", "error", err)
	} else if removed > 0 {
		slog.Debug("Memory.Record: pruned expired entries", "removed", removed)
	}
	return nil
}

// Stats reports the user's current log depth.
func (m *Memory) Stats(ctx context.Context, userID string) (int, error) {
	return m.store.CountEntries(ctx, userID)
}

// userLock returns the per-user mutex, creating it on first use.
func (m *Memory) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.userLocks[userID] = lock
	}
	return lock
}

// containsAnyMarker matches phrase markers as substrings and one-word
// markers as whole words, so "eso" does not fire on "queso".
func containsAnyMarker(text string, markers []string) bool {
	var words map[string]bool
	for _, marker := range markers {
		if strings.ContainsRune(marker, ' ') {
			if strings.Contains(text, marker) {
				return true
			}
			continue
		}
		if words == nil {
			words = make(map[string]bool)
			for _, w := range strings.FieldsFunc(text, func(r rune) bool {
				return r == ' ' || r == ',' || r == '.' || r == '?' || r == '¿' || r == '!' || r == '¡'
			}) {
				words[w] = true
			}
		}
		if words[marker] {
			return true
		}
	}
	return false
}

func looksIncomplete(text string) bool {
	for _, p := range incompletePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	// Very short interrogatives lean on prior context too.
	if strings.Contains(text, "?") || strings.Contains(text, "¿") {
		if len(strings.Fields(text)) <= 3 {
			return true
		}
	}
	return false
}

func normalizeText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
