// Package router implements routing of user utterances between the
// classic command path and the generative pipeline.
//
// Every utterance resolves through an ordered rule list: user policy
// overrides first, then the classic confidence gate, then generative
// availability. The first matching rule decides the path, and every
// decision is audited, fallbacks included.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/katavoz/KataRoute/internal/audit"
	"github.com/katavoz/KataRoute/internal/classic"
	"github.com/katavoz/KataRoute/internal/enrich"
	"github.com/katavoz/KataRoute/internal/genai"
	"github.com/katavoz/KataRoute/internal/memory"
	"github.com/katavoz/KataRoute/internal/models"
	"github.com/katavoz/KataRoute/internal/profile"
	"github.com/katavoz/KataRoute/internal/prompt"
)

// Safe responses for degraded paths.
const (
	FallbackResponse      = "Lo siento, no pude procesar tu solicitud. ¿Podrías repetirla?"
	NotUnderstoodResponse = "No entendí el comando. ¿Podrías repetirlo?"
)

// Routing rule names recorded in the audit trail.
const (
	ruleNeverGenerative       = "never_generative_override"
	ruleAlwaysClassic         = "always_classic_override"
	ruleClassicConfidence     = "classic_confidence"
	ruleGenerativeDisabled    = "generative_disabled"
	ruleGenerativeUnavailable = "generative_unavailable"
	ruleGenerative            = "generative"
	ruleGenerativeTimeout     = "generative_timeout"
	ruleGenerativeError       = "generative_error"
	rulePanic                 = "panic_recovered"
)

// CompletionService produces a completion for an assembled prompt.
type CompletionService interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Stats is a snapshot of routing counters since process start.
type Stats struct {
	Total      int64 `json:"total"`
	Classic    int64 `json:"classic"`
	Generative int64 `json:"generative"`
	Fallback   int64 `json:"fallback"`
}

// Deps carries the router's collaborators. LLM may be nil when no
// completion backend is configured.
type Deps struct {
	Matcher  classic.Matcher
	Profiles profile.Store
	Enricher *enrich.Enricher
	Memory   *memory.Memory
	Builder  *prompt.Builder
	LLM      CompletionService
	Sink     audit.Sink
}

// Opts holds the router's tunables.
type Opts struct {
	// ClassicConfidenceThreshold gates the classic path when the user
	// profile does not override it.
	ClassicConfidenceThreshold float64
	// CompletionTimeout bounds each generative call.
	CompletionTimeout time.Duration
}

// Router routes utterances and audits every decision.
type Router struct {
	deps      Deps
	threshold float64
	timeout   time.Duration

	total      atomic.Int64
	classic    atomic.Int64
	generative atomic.Int64
	fallback   atomic.Int64

	now func() time.Time
}

// New creates a router. Zero Opts fields get conservative defaults.
func New(deps Deps, opts Opts) *Router {
	if opts.ClassicConfidenceThreshold <= 0 {
		opts.ClassicConfidenceThreshold = 0.85
	}
	if opts.CompletionTimeout <= 0 {
		opts.CompletionTimeout = 8 * time.Second
	}
	if deps.Sink == nil {
		deps.Sink = audit.NopSink{}
	}
	return &Router{
		deps:      deps,
		threshold: opts.ClassicConfidenceThreshold,
		timeout:   opts.CompletionTimeout,
		now:       time.Now,
	}
}

// Route resolves one utterance to a response. It never returns an
// error to the caller: every failure degrades to the fallback response
// and is recorded in the audit trail.
func (r *Router) Route(ctx context.Context, utt models.Utterance) (result models.RoutingResult) {
	start := r.now()
	r.total.Add(1)

	rec := models.DecisionRecord{
		ID:           uuid.NewString(),
		UserID:       utt.UserID,
		InputPreview: models.PreviewText(utt.Text),
		ReceivedAt:   utt.ReceivedAt,
	}

	defer func() {
		if p := recover(); p != nil {
			slog.Error("Router.Route: panic recovered", "panic", p, "userID", utt.UserID)
			result = models.RoutingResult{ResponseText: FallbackResponse, Path: models.PathFallback}
			rec.Path = models.PathFallback
			rec.Rule = rulePanic
			rec.Error = fmt.Sprint(p)
		}
		r.count(result.Path)
		rec.LatencyMS = r.now().Sub(start).Milliseconds()
		r.deps.Sink.Record(rec)
		slog.Info("Router.Route: decided", "userID", utt.UserID, "path", result.Path,
			"rule", rec.Rule, "latencyMS", rec.LatencyMS)
	}()

	match := r.deps.Matcher.Match(utt.Text)
	rec.ClassicIntent = match.Intent
	rec.ClassicConfidence = match.Confidence

	prof, err := r.deps.Profiles.Get(utt.UserID)
	if err != nil {
		slog.Warn("Router.Route: profile load failed, using default", "error", err, "userID", utt.UserID)
		prof = profile.DefaultProfile(utt.UserID)
	}
	threshold := r.threshold
	if prof.Policy.ClassicConfidenceThreshold > 0 {
		threshold = prof.Policy.ClassicConfidenceThreshold
	}

	switch {
	case match.Intent != "" && prof.Policy.IsNeverGenerative(match.Intent):
		rec.Rule = ruleNeverGenerative
		return r.classicResult(&rec, match)
	case match.Intent != "" && prof.Policy.IsAlwaysClassic(match.Intent):
		rec.Rule = ruleAlwaysClassic
		return r.classicResult(&rec, match)
	case match.Confidence >= threshold:
		rec.Rule = ruleClassicConfidence
		return r.classicResult(&rec, match)
	case !prof.Policy.GenerativeEnabled:
		rec.Rule = ruleGenerativeDisabled
		return r.classicResult(&rec, match)
	case r.deps.LLM == nil:
		rec.Rule = ruleGenerativeUnavailable
		return r.classicResult(&rec, match)
	}

	return r.generativeResult(ctx, &rec, utt, prof)
}

// classicResult answers through the deterministic path. An unmatched
// intent degrades to the not-understood response, still on the classic
// path.
func (r *Router) classicResult(rec *models.DecisionRecord, match models.ClassicMatchResult) models.RoutingResult {
	rec.Path = models.PathClassic
	text := match.Response
	if text == "" {
		text = r.renderIntent(match.Intent)
	}
	return models.RoutingResult{
		ResponseText: text,
		Path:         models.PathClassic,
		Intent:       match.Intent,
		Confidence:   match.Confidence,
	}
}

// generativeResult runs the full pipeline: enrichment, the memory
// cascade, prompt assembly, and the bounded completion call.
func (r *Router) generativeResult(ctx context.Context, rec *models.DecisionRecord, utt models.Utterance, prof models.UserProfile) models.RoutingResult {
	qc := r.deps.Enricher.Enrich(utt.Text, r.now())
	rec.Domain = qc.Domain

	decision := r.deps.Memory.ShouldIncludeMemory(ctx, utt.UserID, qc, utt.Text)
	rec.MemoryReason = decision.Reason

	spec := r.deps.Builder.Build(prompt.Input{
		Query:   utt.Text,
		Context: qc,
		Profile: prof,
		Memory:  decision,
	})

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	response, err := r.deps.LLM.Generate(callCtx, spec.Text)
	if err != nil {
		if errors.Is(err, genai.ErrTimeout) {
			rec.Rule = ruleGenerativeTimeout
		} else {
			rec.Rule = ruleGenerativeError
		}
		rec.Path = models.PathFallback
		rec.Error = err.Error()
		slog.Warn("Router.generativeResult: completion failed", "error", err, "userID", utt.UserID, "rule", rec.Rule)
		return models.RoutingResult{
			ResponseText: FallbackResponse,
			Path:         models.PathFallback,
			Domain:       qc.Domain,
		}
	}

	// Only successful generative turns enter conversational memory.
	if err := r.deps.Memory.Record(ctx, utt.UserID, utt.Text, response, qc.Domain); err != nil {
		slog.Warn("Router.generativeResult: memory record failed", "error", err, "userID", utt.UserID)
	}

	rec.Rule = ruleGenerative
	rec.Path = models.PathGenerative
	return models.RoutingResult{
		ResponseText: response,
		Path:         models.PathGenerative,
		Domain:       qc.Domain,
		Confidence:   qc.DomainConfidence,
	}
}

var spanishMonths = []string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var spanishWeekdays = []string{
	"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
}

// renderIntent produces the spoken response for intents with no
// prebuilt text. Actuation of reminders, messages, and plugs happens
// downstream; here only the acknowledgment is produced.
func (r *Router) renderIntent(intent string) string {
	now := r.now()
	switch intent {
	case "hora":
		return fmt.Sprintf("Son las %s.", now.Format("15:04"))
	case "fecha":
		return fmt.Sprintf("Hoy es %s, %d de %s.",
			spanishWeekdays[int(now.Weekday())], now.Day(), spanishMonths[int(now.Month())-1])
	case "recordatorio":
		return "De acuerdo, anoto el recordatorio."
	case "leer_mensajes":
		return "Voy a leer tus mensajes pendientes."
	case "enchufe":
		return "Hecho, ya me ocupo del enchufe."
	case "":
		return NotUnderstoodResponse
	default:
		return fmt.Sprintf("Entendido, me ocupo de: %s.", strings.ReplaceAll(intent, "_", " "))
	}
}

func (r *Router) count(p models.Path) {
	switch p {
	case models.PathClassic:
		r.classic.Add(1)
	case models.PathGenerative:
		r.generative.Add(1)
	default:
		r.fallback.Add(1)
	}
}

// Stats returns a snapshot of the routing counters.
func (r *Router) Stats() Stats {
	return Stats{
		Total:      r.total.Load(),
		Classic:    r.classic.Load(),
		Generative: r.generative.Load(),
		Fallback:   r.fallback.Load(),
	}
}
