package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katavoz/KataRoute/internal/models"
)

func testInput() Input {
	return Input{
		Query: "¿Cuándo riego la sábila?",
		Context: models.QueryContext{
			Domain:           "plants",
			DomainConfidence: 0.8,
			Period:           models.PeriodMorning,
			Greeting:         "Buenos días",
			QuestionType:     models.QuestionWhen,
			Tone:             models.ToneNeutral,
		},
		Profile: models.UserProfile{
			ID:          "maria",
			DisplayName: "María",
			City:        "Sevilla",
			KnownPlants: []string{"sábila", "romero"},
			Comm:        models.CommunicationPrefs{MaxResponseWords: 40, Register: "cercano_respetuoso"},
		},
		Memory: models.MemoryDecision{Include: false, Reason: models.ReasonNone},
	}
}

func TestBuild_LayerOrderWithoutMemory(t *testing.T) {
	spec := NewBuilder().Build(testInput())

	var names []string
	for _, l := range spec.Layers {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"persona", "domain", "adaptation", "context", "query"}, names)
}

func TestBuild_MemoryLayerPosition(t *testing.T) {
	in := testInput()
	in.Memory = models.MemoryDecision{
		Include: true,
		Reason:  models.ReasonStrictWindow,
		Entry: &models.MemoryEntry{
			Query:    "¿qué planta aguanta el sol?",
			Response: "La sábila aguanta muy bien el sol directo.",
		},
	}
	spec := NewBuilder().Build(in)

	var names []string
	for _, l := range spec.Layers {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"persona", "domain", "adaptation", "context", "memory", "query"}, names)
	assert.Contains(t, spec.Text, "¿qué planta aguanta el sol?")
	assert.Contains(t, spec.Text, "La sábila aguanta muy bien el sol directo.")
}

func TestBuild_PersonaUsesProfile(t *testing.T) {
	spec := NewBuilder().Build(testInput())

	assert.Contains(t, spec.Text, "María")
	assert.Contains(t, spec.Text, "40 palabras")
	assert.Contains(t, spec.Text, "profesional")
}

func TestBuild_DomainTemplateSubstitution(t *testing.T) {
	spec := NewBuilder().Build(testInput())

	assert.Contains(t, spec.Text, "sábila, romero")
	assert.Contains(t, spec.Text, "Sevilla")
}

func TestBuild_MissingVariableUsesDefault(t *testing.T) {
	in := testInput()
	in.Profile.KnownPlants = nil
	in.Profile.City = ""
	spec := NewBuilder().Build(in)

	assert.Contains(t, spec.Text, missingVarDefault)
	assert.NotContains(t, spec.Text, "{known_plants}")
	assert.NotContains(t, spec.Text, "{city}")
}

func TestBuild_UnknownDomainFallsBack(t *testing.T) {
	in := testInput()
	in.Context.Domain = "astrology"
	spec := NewBuilder().Build(in)

	assert.Contains(t, spec.Text, "información general")
}

func TestBuild_QueryIsLastSection(t *testing.T) {
	spec := NewBuilder().Build(testInput())

	sections := strings.Split(spec.Text, "\n\n")
	require.NotEmpty(t, sections)
	assert.Equal(t, "Consulta del usuario: ¿Cuándo riego la sábila?", sections[len(sections)-1])
}

func TestBuild_Deterministic(t *testing.T) {
	in := testInput()
	b := NewBuilder()
	first := b.Build(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first.Text, b.Build(in).Text)
	}
}

type failingLayer struct{}

func (failingLayer) Name() string                 { return "failing" }
func (failingLayer) Render(Input) (string, error) { return "", errors.New("render exploded") }

func TestBuild_FailedLayerIsSkipped(t *testing.T) {
	b := NewBuilder()
	b.layers = append([]Layer{failingLayer{}}, b.layers...)

	spec := b.Build(testInput())
	for _, l := range spec.Layers {
		assert.NotEqual(t, "failing", l.Name)
	}
	assert.Contains(t, spec.Text, "Consulta del usuario")
}

func TestBuild_ToneDirectives(t *testing.T) {
	in := testInput()
	in.Context.Tone = models.ToneUrgent
	spec := NewBuilder().Build(in)
	assert.Contains(t, spec.Text, "directo a la respuesta")

	in.Context.Tone = models.ToneNegative
	spec = NewBuilder().Build(in)
	assert.Contains(t, spec.Text, "empática")
}
