package enrich

// Domain identifiers form a fixed, closed set. New domains are added
// here and given a template in the prompt package; classification code
// does not change.
const (
	DomainPlants        = "plants"
	DomainCooking       = "cooking"
	DomainPets          = "pets"
	DomainEntertainment = "entertainment"
	DomainWeather       = "weather"
	DomainPersonal      = "personal"
	DomainDevices       = "devices"
	DomainSmalltalk     = "smalltalk"
	DomainReligion      = "religion"
	DomainGeneralInfo   = "general-info"
)

// domainOrder fixes the evaluation order so score ties break
// deterministically.
var domainOrder = []string{
	DomainPlants,
	DomainCooking,
	DomainPets,
	DomainEntertainment,
	DomainWeather,
	DomainPersonal,
	DomainDevices,
	DomainSmalltalk,
	DomainReligion,
	DomainGeneralInfo,
}

// domainKeywords holds the Spanish trigger vocabulary per domain.
// Multi-word entries match as phrases, single words as whole tokens.
var domainKeywords = map[string][]string{
	DomainPlants: {
		"planta", "plantas", "sábila", "toronjil", "hierbaluisa", "orégano",
		"perejil", "regar", "riego", "jardín", "hierba", "maceta",
		"remedio casero", "medicina natural",
	},
	DomainCooking: {
		"cocina", "receta", "comida", "cocinar", "preparar", "sopa", "locro",
		"caldo", "merienda", "almuerzo", "desayuno", "cena", "ingredientes",
		"arroz", "empanadas", "humitas", "quimbolitos", "sancocho",
	},
	DomainPets: {
		"perro", "perros", "gato", "gata", "mascota", "mascotas",
		"alimentar", "pasear", "veterinario",
	},
	DomainEntertainment: {
		"telenovela", "telenovelas", "noticias", "música", "canción",
		"chiste", "cuento", "historia", "boleros", "baladas", "pasillos",
		"naipes", "jugar",
	},
	DomainWeather: {
		"clima", "lluvia", "llover", "sol", "calor", "frío", "temperatura",
		"viento", "nublado", "despejado", "pronóstico",
	},
	DomainPersonal: {
		"nombre", "cómo te llamas", "quién eres", "familia", "nietos",
		"juventud", "sobre ti", "acerca de ti",
	},
	DomainDevices: {
		"enchufe", "luz", "dispositivo", "encender", "apagar", "activar",
		"desactivar", "control",
	},
	DomainSmalltalk: {
		"hola", "buenos días", "buenas tardes", "buenas noches",
		"cómo está", "cómo estás", "qué tal", "saludos", "gracias",
	},
	DomainReligion: {
		"dios", "iglesia", "misa", "oración", "rezar", "bendición",
		"católica", "religión", "fe", "santo",
	},
	DomainGeneralInfo: {
		"qué es", "cómo se", "por qué", "explica", "información",
		"cuéntame", "dime", "pregunta",
	},
}
