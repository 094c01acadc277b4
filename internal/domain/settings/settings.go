// Package settings defines the runtime-tunable ranking configuration.
//
// Weights are deliberately not normalized: the total score is Σ(sub-score × weight), so absolute
// magnitudes are only meaningful relative to the configured match-band thresholds.
package settings

import (
	"fmt"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

// Weights are the multipliers applied to each scorer sub-score.
type Weights struct {
	Text       float64 `json:"text" validate:"gte=0,lte=1"`
	Category   float64 `json:"category" validate:"gte=0,lte=1"`
	Type       float64 `json:"type" validate:"gte=0,lte=1"`
	Attributes float64 `json:"attributes" validate:"gte=0,lte=1"`
	Price      float64 `json:"price" validate:"gte=0,lte=1"`
	Dimensions float64 `json:"dimensions" validate:"gte=0,lte=1"`
}

// MatchBands are the score thresholds for HIGH and MEDIUM.
type MatchBands struct {
	High   float64 `json:"high" validate:"gte=0,lte=2"`
	Medium float64 `json:"medium" validate:"gte=0,lte=2"`
}

// Timeouts are per-stage budgets in milliseconds.
type Timeouts struct {
	Stage1    int `json:"stage1" validate:"gte=100,lte=120000"`
	Retrieval int `json:"retrieval" validate:"gte=50,lte=60000"`
	Stage2    int `json:"stage2" validate:"gte=100,lte=120000"`
	Total     int `json:"total" validate:"gte=100,lte=300000"`
}

// AdminConfig is the full runtime tuning structure. Values are copied on read and replaced as a
// whole on update.
type AdminConfig struct {
	Weights               Weights    `json:"weights"`
	MatchBands            MatchBands `json:"matchBands"`
	CandidateTopN         int        `json:"candidateTopN" validate:"gte=1,lte=200"`
	// MinCandidates is the ladder short-circuit threshold. At 1 the most precise non-empty step wins.
	MinCandidates         int        `json:"minCandidates" validate:"gte=1,lte=200"`
	MinCategoryConfidence float64    `json:"minCategoryConfidence" validate:"gte=0,lte=1"`
	LLMRerankTopM         int        `json:"llmRerankTopM" validate:"gte=1,lte=100"`
	EnableLLMRerank       bool       `json:"enableLLMRerank"`
	UseCategoryFilter     bool       `json:"useCategoryFilter"`
	TimeoutsMs            Timeouts   `json:"timeoutsMs"`
}

// Defaults returns the shipped tuning.
func Defaults() AdminConfig {
	return AdminConfig{
		Weights: Weights{
			Text:       0.35,
			Category:   0.15,
			Type:       0.2,
			Attributes: 0.15,
			Price:      0.1,
			Dimensions: 0.05,
		},
		MatchBands: MatchBands{
			High:   0.7,
			Medium: 0.4,
		},
		CandidateTopN:         50,
		MinCandidates:         1,
		MinCategoryConfidence: 0.5,
		LLMRerankTopM:         10,
		EnableLLMRerank:       true,
		UseCategoryFilter:     true,
		TimeoutsMs: Timeouts{
			Stage1:    15000,
			Retrieval: 3000,
			Stage2:    10000,
			Total:     30000,
		},
	}
}

// Validate checks field bounds and cross-field constraints.
func (c *AdminConfig) Validate() error {
	if err := domain.ValidateStruct(c); err != nil {
		return err
	}
	if c.MatchBands.Medium > c.MatchBands.High {
		return fmt.Errorf("%w: matchBands.medium (%g) must not exceed matchBands.high (%g)",
			domain.ErrValidation, c.MatchBands.Medium, c.MatchBands.High)
	}
	if c.LLMRerankTopM > c.CandidateTopN {
		return fmt.Errorf("%w: llmRerankTopM (%d) must not exceed candidateTopN (%d)",
			domain.ErrValidation, c.LLMRerankTopM, c.CandidateTopN)
	}
	if c.TimeoutsMs.Total < c.TimeoutsMs.Stage1 {
		return fmt.Errorf("%w: timeoutsMs.total must be at least timeoutsMs.stage1", domain.ErrValidation)
	}
	return nil
}

// Patch is a partial update. Nil fields keep the current value.
type Patch struct {
	Weights               *WeightsPatch    `json:"weights,omitempty"`
	MatchBands            *MatchBandsPatch `json:"matchBands,omitempty"`
	CandidateTopN         *int             `json:"candidateTopN,omitempty"`
	MinCandidates         *int             `json:"minCandidates,omitempty"`
	MinCategoryConfidence *float64         `json:"minCategoryConfidence,omitempty"`
	LLMRerankTopM         *int             `json:"llmRerankTopM,omitempty"`
	EnableLLMRerank       *bool            `json:"enableLLMRerank,omitempty"`
	UseCategoryFilter     *bool            `json:"useCategoryFilter,omitempty"`
	TimeoutsMs            *TimeoutsPatch   `json:"timeoutsMs,omitempty"`
}

// WeightsPatch is a partial Weights update.
type WeightsPatch struct {
	Text       *float64 `json:"text,omitempty"`
	Category   *float64 `json:"category,omitempty"`
	Type       *float64 `json:"type,omitempty"`
	Attributes *float64 `json:"attributes,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	Dimensions *float64 `json:"dimensions,omitempty"`
}

// MatchBandsPatch is a partial MatchBands update.
type MatchBandsPatch struct {
	High   *float64 `json:"high,omitempty"`
	Medium *float64 `json:"medium,omitempty"`
}

// TimeoutsPatch is a partial Timeouts update.
type TimeoutsPatch struct {
	Stage1    *int `json:"stage1,omitempty"`
	Retrieval *int `json:"retrieval,omitempty"`
	Stage2    *int `json:"stage2,omitempty"`
	Total     *int `json:"total,omitempty"`
}

// Apply returns a copy of c with the patch merged on top. The receiver is not modified.
func (c AdminConfig) Apply(p Patch) AdminConfig {
	out := c
	if w := p.Weights; w != nil {
		set(&out.Weights.Text, w.Text)
		set(&out.Weights.Category, w.Category)
		set(&out.Weights.Type, w.Type)
		set(&out.Weights.Attributes, w.Attributes)
		set(&out.Weights.Price, w.Price)
		set(&out.Weights.Dimensions, w.Dimensions)
	}
	if b := p.MatchBands; b != nil {
		set(&out.MatchBands.High, b.High)
		set(&out.MatchBands.Medium, b.Medium)
	}
	set(&out.CandidateTopN, p.CandidateTopN)
	set(&out.MinCandidates, p.MinCandidates)
	set(&out.MinCategoryConfidence, p.MinCategoryConfidence)
	set(&out.LLMRerankTopM, p.LLMRerankTopM)
	set(&out.EnableLLMRerank, p.EnableLLMRerank)
	set(&out.UseCategoryFilter, p.UseCategoryFilter)
	if t := p.TimeoutsMs; t != nil {
		set(&out.TimeoutsMs.Stage1, t.Stage1)
		set(&out.TimeoutsMs.Retrieval, t.Retrieval)
		set(&out.TimeoutsMs.Stage2, t.Stage2)
		set(&out.TimeoutsMs.Total, t.Total)
	}
	return out
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
