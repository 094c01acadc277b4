package extraction

import (
	"strings"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

const systemPrompt = `You are a furniture and home decor cataloguer.
Look at the image and describe the main product the user is interested in, using Brazilian Portuguese catalog vocabulary.

Return ONLY a JSON object with:
- categoryGuess: {value, confidence} with a room-level category such as "Sala de Estar", "Quarto", "Escritório", "Sala de Jantar", "Cozinha".
- typeGuess: {value, confidence} with the product type such as "Sofá", "Poltrona", "Mesa de Centro", "Cama", "Luminária".
- keywords: 3 to 8 short search terms that would appear in a product title or description.
- attributes: {style[], material[], color[]}.
- intent (optional): priceMin, priceMax, preferredWidth, preferredHeight, preferredDepth in BRL and centimeters, only when the user states them.
Confidences are numbers between 0 and 1. No prose, no markdown.`

const defaultPrompt = "Identify the product in the image."

func buildPrompt(userPrompt string) string {
	userPrompt = strings.TrimSpace(userPrompt)
	if userPrompt == "" {
		return defaultPrompt
	}
	return defaultPrompt + "\nUser request: " + userPrompt
}

func ptr(v float64) *float64 { return &v }

func guessSchema() *domain.Schema {
	return &domain.Schema{
		Type: domain.SchemaObject,
		Properties: map[string]*domain.Schema{
			"value":      {Type: domain.SchemaString},
			"confidence": {Type: domain.SchemaNumber, Minimum: ptr(0), Maximum: ptr(1)},
		},
		Required: []string{"value", "confidence"},
	}
}

func stringList() *domain.Schema {
	return &domain.Schema{Type: domain.SchemaArray, Items: &domain.Schema{Type: domain.SchemaString}}
}

// signalsSchema mirrors domain.ImageSignals.
var signalsSchema = &domain.Schema{
	Type: domain.SchemaObject,
	Properties: map[string]*domain.Schema{
		"categoryGuess": guessSchema(),
		"typeGuess":     guessSchema(),
		"keywords":      stringList(),
		"attributes": {
			Type: domain.SchemaObject,
			Properties: map[string]*domain.Schema{
				"style":    stringList(),
				"material": stringList(),
				"color":    stringList(),
			},
			Required: []string{"style", "material", "color"},
		},
		"intent": {
			Type: domain.SchemaObject,
			Properties: map[string]*domain.Schema{
				"priceMin":        {Type: domain.SchemaNumber},
				"priceMax":        {Type: domain.SchemaNumber},
				"preferredWidth":  {Type: domain.SchemaNumber},
				"preferredHeight": {Type: domain.SchemaNumber},
				"preferredDepth":  {Type: domain.SchemaNumber},
			},
		},
	},
	Required: []string{"categoryGuess", "typeGuess", "keywords", "attributes"},
}

const signalsSchemaName = "image_signals"
