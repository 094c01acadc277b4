package imagesearch

import "github.com/kailas-cloud/shopsight/internal/domain"

// Notice codes surfaced in the response meta.
const (
	NoticeVisionFallback = "VISION_FALLBACK"
	NoticeRerankFallback = "RERANK_FALLBACK"
	NoticeBroadRetrieval = "BROAD_RETRIEVAL"
)

// Input is one image search request.
type Input struct {
	Image     domain.Image
	Prompt    string
	RequestID string
	// FallbackSignals are used when extraction fails. Nil makes extraction failures terminal.
	FallbackSignals *domain.ImageSignals
}

// Notice is a non-fatal condition the caller may want to show.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Query echoes what the search ran with.
type Query struct {
	Prompt  string              `json:"prompt,omitempty"`
	Signals domain.ImageSignals `json:"signals"`
}

// Meta describes how the search ran.
type Meta struct {
	RequestID     string               `json:"requestId"`
	Timings       domain.Timings       `json:"timings"`
	Notices       []Notice             `json:"notices"`
	RetrievalPlan domain.RetrievalPlan `json:"retrievalPlan"`
}

// Output is the ranked response.
type Output struct {
	Query   Query                    `json:"query"`
	Results []domain.ScoredCandidate `json:"results"`
	Meta    Meta                     `json:"meta"`
}
