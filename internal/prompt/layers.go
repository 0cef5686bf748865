package prompt

import (
	"fmt"
	"strings"

	"github.com/katavoz/KataRoute/internal/models"
)

// Layer renders one section of the generative prompt. A layer may
// return an empty string to be omitted from the final prompt.
type Layer interface {
	Name() string
	Render(in Input) (string, error)
}

// Input is everything the layers may consume for one utterance.
type Input struct {
	Query   string
	Context models.QueryContext
	Profile models.UserProfile
	Memory  models.MemoryDecision
}

// personaLayer sets the assistant identity and the hard behavioral
// directives that apply regardless of domain.
type personaLayer struct{}

func (personaLayer) Name() string { return "persona" }

func (personaLayer) Render(in Input) (string, error) {
	var b strings.Builder
	b.WriteString("Eres Kata, una asistente de voz en español para personas mayores. ")
	b.WriteString("Hablas con frases cortas, claras y amables.")
	if name := in.Profile.DisplayName; name != "" {
		fmt.Fprintf(&b, " Te diriges al usuario como %s.", name)
	}
	if max := in.Profile.Comm.MaxResponseWords; max > 0 {
		fmt.Fprintf(&b, " Responde en como máximo %d palabras.", max)
	}
	b.WriteString(" Nunca des consejo médico; ante temas de salud, recomienda hablar con un profesional.")
	return b.String(), nil
}

// domainLayer renders the domain template with the profile variables.
type domainLayer struct{}

func (domainLayer) Name() string { return "domain" }

func (domainLayer) Render(in Input) (string, error) {
	tmpl, ok := domainTemplates[in.Context.Domain]
	if !ok {
		tmpl = domainTemplateFallback
	}
	vars := map[string]string{
		"display_name":    in.Profile.DisplayName,
		"city":            in.Profile.City,
		"known_plants":    joinList(in.Profile.KnownPlants),
		"favorite_dishes": joinList(in.Profile.FavoriteDishes),
		"pet_names":       joinList(in.Profile.PetNames),
		"entertainment":   joinList(in.Profile.Entertainment),
		"favorite_topics": joinList(in.Profile.FavoriteTopics),
	}
	return renderTemplate(tmpl, vars), nil
}

// adaptationLayer turns communication preferences and the detected tone
// into style directives.
type adaptationLayer struct{}

func (adaptationLayer) Name() string { return "adaptation" }

func (adaptationLayer) Render(in Input) (string, error) {
	var b strings.Builder
	switch in.Profile.Comm.Register {
	case "formal":
		b.WriteString("Usa un registro formal y trata al usuario de usted.")
	case "cercano_respetuoso", "":
		b.WriteString("Usa un registro cercano pero respetuoso.")
	default:
		fmt.Fprintf(&b, "Usa un registro %s.", in.Profile.Comm.Register)
	}
	if in.Profile.Comm.UseEmojis {
		b.WriteString(" Puedes usar algún emoji con moderación.")
	} else {
		b.WriteString(" No uses emojis.")
	}
	switch in.Context.Tone {
	case models.ToneUrgent:
		b.WriteString(" El usuario suena apurado: ve directo a la respuesta.")
	case models.ToneNegative:
		b.WriteString(" El usuario suena molesto o triste: empieza con una frase empática.")
	case models.TonePositive:
		b.WriteString(" El usuario suena contento: acompaña ese ánimo.")
	}
	if in.Profile.Religious && in.Context.Domain == "religion" {
		b.WriteString(" El usuario es creyente; respeta ese marco.")
	}
	return b.String(), nil
}

// contextLayer surfaces the enriched query context: greeting, temporal
// period, and question type.
type contextLayer struct{}

func (contextLayer) Name() string { return "context" }

var periodLabels = map[models.TemporalPeriod]string{
	models.PeriodMorning:   "la mañana",
	models.PeriodAfternoon: "la tarde",
	models.PeriodEvening:   "la noche",
	models.PeriodNight:     "la madrugada",
}

var questionLabels = map[models.QuestionType]string{
	models.QuestionWhat:  "qué",
	models.QuestionHow:   "cómo",
	models.QuestionWhen:  "cuándo",
	models.QuestionWhere: "dónde",
	models.QuestionWho:   "quién",
}

func (contextLayer) Render(in Input) (string, error) {
	var lines []string
	if in.Context.Greeting != "" {
		lines = append(lines, fmt.Sprintf("Saludo apropiado para la hora: %s.", in.Context.Greeting))
	}
	if label, ok := periodLabels[in.Context.Period]; ok {
		lines = append(lines, fmt.Sprintf("Momento del día: %s.", label))
	}
	if label, ok := questionLabels[in.Context.QuestionType]; ok {
		lines = append(lines, fmt.Sprintf("El usuario pregunta %s.", label))
	}
	return strings.Join(lines, "\n"), nil
}

// memoryLayer injects the previous turn when the inclusion cascade
// decided to keep it. It renders empty otherwise so the section is
// omitted entirely.
type memoryLayer struct{}

func (memoryLayer) Name() string { return "memory" }

func (memoryLayer) Render(in Input) (string, error) {
	if !in.Memory.Include || in.Memory.Entry == nil {
		return "", nil
	}
	e := in.Memory.Entry
	var b strings.Builder
	b.WriteString("Contexto de la conversación anterior:\n")
	fmt.Fprintf(&b, "Usuario dijo: %s\n", e.Query)
	fmt.Fprintf(&b, "Tú respondiste: %s\n", e.Response)
	b.WriteString("Si la consulta se refiere a ese intercambio, mantén la coherencia con él.")
	return b.String(), nil
}

// queryLayer is always last: the raw utterance to answer.
type queryLayer struct{}

func (queryLayer) Name() string { return "query" }

func (queryLayer) Render(in Input) (string, error) {
	return fmt.Sprintf("Consulta del usuario: %s", in.Query), nil
}
