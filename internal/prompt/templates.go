package prompt

import (
	"log/slog"
	"regexp"
	"strings"
)

// Domain templates carry {placeholders} resolved against the profile
// variables at render time. A template missing for a domain falls back
// to the generic template.
var domainTemplates = map[string]string{
	"plants": "La consulta trata sobre plantas. El usuario cuida estas plantas: {known_plants}. " +
		"Da consejos prácticos de cuidado adaptados a su clima en {city}.",
	"cooking": "La consulta trata sobre cocina. Al usuario le gustan platos como: {favorite_dishes}. " +
		"Sugiere recetas sencillas con pasos cortos y claros.",
	"pets": "La consulta trata sobre mascotas. Las mascotas del usuario se llaman: {pet_names}. " +
		"Refiérete a ellas por su nombre cuando venga al caso.",
	"entertainment": "La consulta trata sobre entretenimiento. Al usuario le gusta: {entertainment}. " +
		"Recomienda en función de esos gustos.",
	"weather": "La consulta trata sobre el tiempo. El usuario vive en {city}. " +
		"Si no tienes datos actuales, dilo con claridad y da orientación general de temporada.",
	"personal": "La consulta es personal o sobre bienestar. Responde con calidez y sin juzgar. " +
		"Si aparece un tema de salud, recomienda consultar a un profesional.",
	"devices": "La consulta trata sobre dispositivos del hogar. Da instrucciones paso a paso, " +
		"una acción por frase.",
	"smalltalk": "La consulta es conversación ligera. Responde con cercanía y brevedad, " +
		"y muestra interés por el usuario.",
	"religion": "La consulta tiene componente religioso. Responde con respeto por las creencias " +
		"del usuario y sin debatir doctrina.",
	"general-info": domainTemplateFallback,
}

// domainTemplateFallback covers domains with no dedicated template.
const domainTemplateFallback = "Responde con información general clara y verificable. " +
	"Si no estás seguro, dilo en vez de inventar."

// missingVarDefault replaces placeholders with no profile value.
const missingVarDefault = "sin datos"

var placeholderPattern = regexp.MustCompile(`\{([a-z_]+)\}`)

// renderTemplate substitutes {placeholders} from vars. Unknown or empty
// variables resolve to a neutral default instead of failing the layer.
func renderTemplate(tmpl string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok && v != "" {
			return v
		}
		slog.Debug("PromptBuilder: template variable missing, using default", "variable", name)
		return missingVarDefault
	})
}

// joinList renders a string slice for template insertion.
func joinList(items []string) string {
	return strings.Join(items, ", ")
}
