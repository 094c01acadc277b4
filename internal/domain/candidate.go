package domain

// MatchBand is the coarse relevance tier derived from score thresholds.
type MatchBand string

// Match bands, highest first.
const (
	MatchHigh   MatchBand = "HIGH"
	MatchMedium MatchBand = "MEDIUM"
	MatchLow    MatchBand = "LOW"
)

// MaxReasons caps the human-readable reasons attached to a candidate.
const MaxReasons = 3

// ScoredCandidate is a retrieved product annotated by the scorer and, optionally, the reranker.
type ScoredCandidate struct {
	Product
	Score     float64   `json:"score"`
	MatchBand MatchBand `json:"matchBand"`
	Reasons   []string  `json:"reasons"`
}

// AddReasons appends reasons not already present, keeping at most MaxReasons.
func (c *ScoredCandidate) AddReasons(reasons ...string) {
	for _, r := range reasons {
		if len(c.Reasons) >= MaxReasons {
			return
		}
		if r == "" || containsString(c.Reasons, r) {
			continue
		}
		c.Reasons = append(c.Reasons, r)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// RetrievalPlan identifies the ladder step that produced a candidate set.
type RetrievalPlan string

// Retrieval plans, most precise first.
const (
	PlanText RetrievalPlan = "TEXT"
	PlanA    RetrievalPlan = "A"
	PlanB    RetrievalPlan = "B"
	PlanC    RetrievalPlan = "C"
	PlanD    RetrievalPlan = "D"
)

// IsBroad reports whether the plan ignores at least one of the category/type signals.
func (p RetrievalPlan) IsBroad() bool {
	return p == PlanC || p == PlanD
}

// RerankOptions tune a single rerank call. A nil Temperature or a zero MaxTokens uses the
// reranker default.
type RerankOptions struct {
	Temperature *float32
	MaxTokens   int
}

// RerankResult is a model-judged order. RankedIDs is always a permutation of the input ids.
type RerankResult struct {
	RankedIDs      []string
	Reasons        map[string][]string
	RepairAttempts int
}
