// Package prompt assembles the generative prompt from ordered layers.
//
// The builder renders persona, domain, adaptation, query context,
// conversational memory, and the raw query, in that fixed order.
// Output is deterministic: the same input always yields byte-identical
// prompt text.
package prompt

import (
	"log/slog"
	"strings"

	"github.com/katavoz/KataRoute/internal/models"
)

// Builder renders prompts through its ordered layer list.
type Builder struct {
	layers []Layer
}

// NewBuilder creates a builder with the standard six layers.
func NewBuilder() *Builder {
	return &Builder{
		layers: []Layer{
			personaLayer{},
			domainLayer{},
			adaptationLayer{},
			contextLayer{},
			memoryLayer{},
			queryLayer{},
		},
	}
}

// Build renders every layer in order. A layer that fails or renders
// empty is skipped; the remaining layers still produce a usable prompt.
func (b *Builder) Build(in Input) models.PromptSpec {
	var spec models.PromptSpec
	sections := make([]string, 0, len(b.layers))
	for _, layer := range b.layers {
		text, err := layer.Render(in)
		if err != nil {
			slog.Warn("Builder.Build: layer failed, skipping", "layer", layer.Name(), "error", err)
			continue
		}
		if text == "" {
			continue
		}
		spec.Layers = append(spec.Layers, models.PromptLayer{Name: layer.Name(), Text: text})
		sections = append(sections, text)
	}
	spec.Text = strings.Join(sections, "\n\n")
	return spec
}
