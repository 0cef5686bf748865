package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katavoz/KataRoute/internal/classic"
	"github.com/katavoz/KataRoute/internal/enrich"
	"github.com/katavoz/KataRoute/internal/genai"
	"github.com/katavoz/KataRoute/internal/memory"
	"github.com/katavoz/KataRoute/internal/models"
	"github.com/katavoz/KataRoute/internal/profile"
	"github.com/katavoz/KataRoute/internal/prompt"
	"github.com/katavoz/KataRoute/internal/store"
)

// captureSink records decisions synchronously for assertions.
type captureSink struct {
	mu      sync.Mutex
	records []models.DecisionRecord
}

func (s *captureSink) Record(rec models.DecisionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *captureSink) last(t *testing.T) models.DecisionRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.records, "expected at least one audit record")
	return s.records[len(s.records)-1]
}

// mockLLM captures the prompt and returns a canned completion.
type mockLLM struct {
	response string
	err      error
	prompt   string
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.prompt = prompt
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

type fixture struct {
	router *Router
	sink   *captureSink
	llm    *mockLLM
	store  *store.InMemoryStore
}

func newFixture(t *testing.T, profiles ...models.UserProfile) *fixture {
	t.Helper()
	st := store.NewInMemoryStore()
	sink := &captureSink{}
	llm := &mockLLM{response: "Claro, te lo explico."}
	r := New(Deps{
		Matcher:  classic.NewKeywordMatcher(),
		Profiles: profile.NewStaticStore(profiles...),
		Enricher: enrich.NewEnricher(0.3),
		Memory:   memory.New(st),
		Builder:  prompt.NewBuilder(),
		LLM:      llm,
		Sink:     sink,
	}, Opts{ClassicConfidenceThreshold: 0.85, CompletionTimeout: time.Second})
	return &fixture{router: r, sink: sink, llm: llm, store: st}
}

func utterance(t *testing.T, text string) models.Utterance {
	t.Helper()
	utt, err := models.NewUtterance("u1", text, time.Now())
	require.NoError(t, err)
	return utt
}

func TestRoute_ClassicByConfidence(t *testing.T) {
	f := newFixture(t)

	res := f.router.Route(context.Background(), utterance(t, "qué hora es"))

	assert.Equal(t, models.PathClassic, res.Path)
	assert.Equal(t, "hora", res.Intent)
	assert.Equal(t, 0.95, res.Confidence)
	assert.Contains(t, res.ResponseText, "Son las")

	rec := f.sink.last(t)
	assert.Equal(t, ruleClassicConfidence, rec.Rule)
	assert.Equal(t, models.PathClassic, rec.Path)
}

func TestRoute_GenerativeWithMemoryLayer(t *testing.T) {
	f := newFixture(t, models.UserProfile{
		ID:          "u1",
		KnownPlants: []string{"sábila"},
		Policy:      models.UserPolicy{GenerativeEnabled: true},
	})
	require.NoError(t, f.store.AppendEntry(context.Background(), "u1", models.MemoryEntry{
		SessionID: "s_prev",
		Timestamp: time.Now().Add(-time.Minute),
		Query:     "¿qué cuidados necesita la sábila?",
		Response:  "La sábila necesita poca agua y mucha luz.",
		Domain:    "plants",
	}))

	res := f.router.Route(context.Background(), utterance(t, "¿y eso cuándo lo riego?"))

	assert.Equal(t, models.PathGenerative, res.Path)
	assert.Equal(t, "Claro, te lo explico.", res.ResponseText)

	rec := f.sink.last(t)
	assert.Equal(t, ruleGenerative, rec.Rule)
	assert.Equal(t, models.ReasonStrictWindow, rec.MemoryReason)
	assert.Contains(t, f.llm.prompt, "La sábila necesita poca agua y mucha luz.")
	assert.Contains(t, f.llm.prompt, "¿y eso cuándo lo riego?")
}

func TestRoute_GenerativeDisabledForcesClassic(t *testing.T) {
	f := newFixture(t, models.UserProfile{
		ID:     "u1",
		Policy: models.UserPolicy{GenerativeEnabled: false},
	})

	res := f.router.Route(context.Background(), utterance(t, "háblame de las plantas del jardín"))

	assert.Equal(t, models.PathClassic, res.Path)
	assert.Equal(t, NotUnderstoodResponse, res.ResponseText)
	assert.Equal(t, ruleGenerativeDisabled, f.sink.last(t).Rule)
}

func TestRoute_CompletionTimeoutFallsBack(t *testing.T) {
	f := newFixture(t)
	f.llm.err = fmt.Errorf("%w: request aborted", genai.ErrTimeout)

	res := f.router.Route(context.Background(), utterance(t, "cuéntame algo interesante de las plantas"))

	assert.Equal(t, models.PathFallback, res.Path)
	assert.Equal(t, FallbackResponse, res.ResponseText)

	rec := f.sink.last(t)
	assert.Equal(t, ruleGenerativeTimeout, rec.Rule)
	assert.NotEmpty(t, rec.Error)

	// Failed turns never enter conversational memory.
	n, err := f.store.CountEntries(context.Background(), "u1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRoute_CompletionServiceErrorFallsBack(t *testing.T) {
	f := newFixture(t)
	f.llm.err = fmt.Errorf("%w: boom", genai.ErrService)

	res := f.router.Route(context.Background(), utterance(t, "qué me recomiendas cocinar hoy"))

	assert.Equal(t, models.PathFallback, res.Path)
	assert.Equal(t, FallbackResponse, res.ResponseText)
	assert.Equal(t, ruleGenerativeError, f.sink.last(t).Rule)
}

func TestRoute_NeverGenerativeOverride(t *testing.T) {
	f := newFixture(t, models.UserProfile{
		ID: "u1",
		Policy: models.UserPolicy{
			GenerativeEnabled: true,
			// Per-user threshold above the matcher confidence, so only
			// the override keeps this on the classic path.
			ClassicConfidenceThreshold: 0.99,
			NeverGenerative:            []string{"emergencia"},
		},
	})

	res := f.router.Route(context.Background(), utterance(t, "socorro, necesito ayuda"))

	assert.Equal(t, models.PathClassic, res.Path)
	assert.Equal(t, "emergencia", res.Intent)
	assert.Equal(t, ruleNeverGenerative, f.sink.last(t).Rule)
}

func TestRoute_AlwaysClassicOverride(t *testing.T) {
	f := newFixture(t, models.UserProfile{
		ID: "u1",
		Policy: models.UserPolicy{
			GenerativeEnabled:          true,
			ClassicConfidenceThreshold: 0.99,
			AlwaysClassic:              []string{"hora"},
		},
	})

	res := f.router.Route(context.Background(), utterance(t, "qué hora es"))

	assert.Equal(t, models.PathClassic, res.Path)
	assert.Equal(t, ruleAlwaysClassic, f.sink.last(t).Rule)
}

func TestRoute_PerUserThresholdSendsLowConfidenceGenerative(t *testing.T) {
	f := newFixture(t, models.UserProfile{
		ID: "u1",
		Policy: models.UserPolicy{
			GenerativeEnabled:          true,
			ClassicConfidenceThreshold: 0.99,
		},
	})

	res := f.router.Route(context.Background(), utterance(t, "qué hora es"))

	assert.Equal(t, models.PathGenerative, res.Path)
	assert.Equal(t, ruleGenerative, f.sink.last(t).Rule)
}

func TestRoute_NoLLMDegradesToClassic(t *testing.T) {
	st := store.NewInMemoryStore()
	sink := &captureSink{}
	r := New(Deps{
		Matcher:  classic.NewKeywordMatcher(),
		Profiles: profile.NewStaticStore(),
		Enricher: enrich.NewEnricher(0.3),
		Memory:   memory.New(st),
		Builder:  prompt.NewBuilder(),
		Sink:     sink,
	}, Opts{})

	res := r.Route(context.Background(), utterance(t, "cuéntame un cuento"))

	assert.Equal(t, models.PathClassic, res.Path)
	assert.Equal(t, NotUnderstoodResponse, res.ResponseText)
	assert.Equal(t, ruleGenerativeUnavailable, sink.last(t).Rule)
}

func TestRoute_SuccessRecordsMemory(t *testing.T) {
	f := newFixture(t)

	f.router.Route(context.Background(), utterance(t, "dame una receta con garbanzos"))

	n, err := f.store.CountEntries(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type panickingMatcher struct{}

func (panickingMatcher) Match(string) models.ClassicMatchResult { panic("matcher exploded") }

func TestRoute_PanicRecoversToFallback(t *testing.T) {
	sink := &captureSink{}
	r := New(Deps{
		Matcher:  panickingMatcher{},
		Profiles: profile.NewStaticStore(),
		Enricher: enrich.NewEnricher(0.3),
		Memory:   memory.New(store.NewInMemoryStore()),
		Builder:  prompt.NewBuilder(),
		Sink:     sink,
	}, Opts{})

	res := r.Route(context.Background(), utterance(t, "hola"))

	assert.Equal(t, models.PathFallback, res.Path)
	assert.Equal(t, FallbackResponse, res.ResponseText)

	rec := sink.last(t)
	assert.Equal(t, rulePanic, rec.Rule)
	assert.Contains(t, rec.Error, "matcher exploded")
}

func TestRoute_EveryBranchAudits(t *testing.T) {
	f := newFixture(t)

	f.router.Route(context.Background(), utterance(t, "qué hora es"))
	f.router.Route(context.Background(), utterance(t, "háblame de tus recetas favoritas"))
	f.llm.err = errors.New("boom")
	f.router.Route(context.Background(), utterance(t, "otra consulta libre cualquiera"))

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	require.Len(t, f.sink.records, 3)
	for _, rec := range f.sink.records {
		assert.NotEmpty(t, rec.ID)
		assert.NotEmpty(t, rec.Rule)
		assert.Equal(t, "u1", rec.UserID)
	}
}

func TestStats(t *testing.T) {
	f := newFixture(t)

	f.router.Route(context.Background(), utterance(t, "qué hora es"))
	f.router.Route(context.Background(), utterance(t, "recomiéndame una película tranquila"))
	f.llm.err = errors.New("boom")
	f.router.Route(context.Background(), utterance(t, "otra consulta libre cualquiera"))

	s := f.router.Stats()
	assert.Equal(t, int64(3), s.Total)
	assert.Equal(t, int64(1), s.Classic)
	assert.Equal(t, int64(1), s.Generative)
	assert.Equal(t, int64(1), s.Fallback)
}
