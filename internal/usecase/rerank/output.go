package rerank

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

// outputSchema is the structured output requested from the model.
var outputSchema = &domain.Schema{
	Type: domain.SchemaObject,
	Properties: map[string]*domain.Schema{
		"ranking": {
			Type:        domain.SchemaArray,
			Description: "Candidates ordered from most to least relevant",
			Items: &domain.Schema{
				Type: domain.SchemaObject,
				Properties: map[string]*domain.Schema{
					"id":      {Type: domain.SchemaString},
					"reasons": {Type: domain.SchemaArray, Items: &domain.Schema{Type: domain.SchemaString}},
				},
				Required: []string{"id", "reasons"},
			},
		},
	},
	Required: []string{"ranking"},
}

const outputSchemaName = "rerank_result"

type rankedItem struct {
	ID      string   `json:"id"`
	Reasons []string `json:"reasons"`
}

type rankingEnvelope struct {
	Ranking *[]rankedItem `json:"ranking"`
}

var errEmptyOutput = errors.New("empty model output")

// parseOutput decodes model output into the ranking. It accepts the object envelope or a bare
// array, optionally wrapped in a markdown code fence, and rejects entries without an id.
func parseOutput(raw string) ([]rankedItem, error) {
	text := stripCodeFence(raw)
	if text == "" {
		return nil, errEmptyOutput
	}

	var items []rankedItem
	if strings.HasPrefix(text, "[") {
		if err := json.Unmarshal([]byte(text), &items); err != nil {
			return nil, fmt.Errorf("decode ranking array: %w", err)
		}
	} else {
		var env rankingEnvelope
		if err := json.Unmarshal([]byte(text), &env); err != nil {
			return nil, fmt.Errorf("decode ranking object: %w", err)
		}
		if env.Ranking == nil {
			return nil, errors.New(`schema: missing "ranking" array`)
		}
		items = *env.Ranking
	}

	for i, it := range items {
		if strings.TrimSpace(it.ID) == "" {
			return nil, fmt.Errorf("schema: ranking[%d] has no id", i)
		}
	}
	return items, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
