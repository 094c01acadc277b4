package rerank

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

// maxDescriptionRunes bounds the product description sent to the model.
const maxDescriptionRunes = 200

const defaultUserIntent = "Find products similar to the image."

const systemPrompt = `You are an expert personal shopper and interior design consultant.
Rank candidate furniture products by relevance to a set of visual signals extracted from an image and to the user's intent.

Inputs:
- Image signals: category, type, keywords, style, material, color and an optional numeric intent.
- User intent: optional free text from the user.
- Candidates: catalog products with id, title, category, type, price and a short description.

Task:
1. Compare each candidate against the signals and the intent.
2. Order the candidates from most to least relevant.
3. Give one or two short reasons for the top matches (e.g. "Same velvet upholstery").

Constraints:
- Use ONLY ids from the candidate list. Never invent products.
- Return ONLY a JSON object of the form {"ranking":[{"id":"...","reasons":["..."]}]}. No prose, no markdown.`

const repairSystemPrompt = `You fix malformed JSON produced by another model.
Return ONLY a JSON object of the form {"ranking":[{"id":"...","reasons":["..."]}]}.
Keep the order of the original answer. Keep only ids from the allowed list. Never add prose or markdown.`

// promptCandidate is the trimmed view of a candidate sent to the model.
type promptCandidate struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Type     string  `json:"type"`
	Price    float64 `json:"price"`
	Desc     string  `json:"desc"`
}

func buildUserPrompt(signals domain.ImageSignals, candidates []domain.ScoredCandidate, userPrompt string) (string, error) {
	sig, err := json.MarshalIndent(signals, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal signals: %w", err)
	}

	trimmed := make([]promptCandidate, 0, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		trimmed = append(trimmed, promptCandidate{
			ID:       c.ID,
			Title:    c.Title,
			Category: c.Category,
			Type:     c.Type,
			Price:    c.Price,
			Desc:     truncateRunes(c.Description, maxDescriptionRunes),
		})
	}
	cands, err := json.MarshalIndent(trimmed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidates: %w", err)
	}

	intent := strings.TrimSpace(userPrompt)
	if intent == "" {
		intent = defaultUserIntent
	}

	var b strings.Builder
	b.WriteString("--- IMAGE SIGNALS ---\n")
	b.Write(sig)
	b.WriteString("\n\n--- USER INTENT ---\n")
	b.WriteString(intent)
	b.WriteString("\n\n--- CANDIDATES ---\n")
	b.Write(cands)
	b.WriteString("\n")
	return b.String(), nil
}

func buildRepairPrompt(raw string, parseErr error, allowed []string) string {
	var b strings.Builder
	b.WriteString("--- ERROR ---\n")
	b.WriteString(parseErr.Error())
	b.WriteString("\n\n--- ALLOWED IDS ---\n")
	b.WriteString(strings.Join(allowed, "\n"))
	b.WriteString("\n\n--- ORIGINAL ANSWER ---\n")
	b.WriteString(raw)
	b.WriteString("\n")
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
