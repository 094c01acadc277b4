package domain

import "time"

// Timings are per-stage durations of one search, in milliseconds.
type Timings struct {
	TotalMs     int64 `json:"totalMs"`
	Stage1Ms    int64 `json:"stage1Ms"`
	RetrievalMs int64 `json:"retrievalMs"`
	Stage2Ms    int64 `json:"stage2Ms"`
}

// Counts track candidates through the pipeline.
type Counts struct {
	Retrieved int `json:"retrieved"`
	Reranked  int `json:"reranked"`
	Returned  int `json:"returned"`
}

// Fallbacks flag degraded paths taken by a search.
type Fallbacks struct {
	VisionFallback bool `json:"visionFallback"`
	RerankFallback bool `json:"rerankFallback"`
	BroadRetrieval bool `json:"broadRetrieval"`
}

// Rating is end-user feedback on one result.
type Rating string

// Feedback ratings.
const (
	RatingUp   Rating = "thumbs_up"
	RatingDown Rating = "thumbs_down"
)

// Valid reports whether r is a known rating.
func (r Rating) Valid() bool { return r == RatingUp || r == RatingDown }

// Feedback is a rating attached to a recorded search.
type Feedback struct {
	ProductID string    `json:"productId"`
	Rating    Rating    `json:"rating"`
	At        time.Time `json:"at"`
}

// TelemetryError describes a failed search. Detail may hold provider payloads and is never
// returned to search callers, only to admins.
type TelemetryError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// TelemetryEvent is the record of one search execution.
type TelemetryEvent struct {
	RequestID     string          `json:"requestId"`
	Timestamp     time.Time       `json:"timestamp"`
	Timings       Timings         `json:"timings"`
	Counts        Counts          `json:"counts"`
	Fallbacks     Fallbacks       `json:"fallbacks"`
	RetrievalPlan RetrievalPlan   `json:"retrievalPlan,omitempty"`
	Error         *TelemetryError `json:"error"`
	Feedback      []Feedback      `json:"feedback,omitempty"`
}

// Clone returns a deep copy.
func (e TelemetryEvent) Clone() TelemetryEvent {
	if e.Error != nil {
		errCopy := *e.Error
		e.Error = &errCopy
	}
	if e.Feedback != nil {
		e.Feedback = append([]Feedback(nil), e.Feedback...)
	}
	return e
}
