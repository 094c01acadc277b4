// Package evaluation measures search quality against a golden set with Hit@K and MRR.
package evaluation

import (
	"fmt"
	"io"
	"strings"
)

// Case is one golden-set scenario.
type Case struct {
	ID               string `json:"id"`
	Label            string `json:"label"`
	ImagePath        string `json:"imagePath"`
	Prompt           string `json:"prompt,omitempty"`
	ExpectedCategory string `json:"expectedCategory"`
	ExpectedType     string `json:"expectedType"`
}

// Outcome is the result of running one case. Rank is 1-based; 0 means not found.
type Outcome struct {
	Case       Case
	Rank       int
	DurationMs int64
	Skipped    bool
	Err        error
}

// HitAt reports whether the expected product ranked within the top k.
func (o Outcome) HitAt(k int) bool {
	return o.Rank > 0 && o.Rank <= k
}

// ReciprocalRank is 1/rank, or 0 when not found.
func (o Outcome) ReciprocalRank() float64 {
	if o.Rank <= 0 {
		return 0
	}
	return 1 / float64(o.Rank)
}

// Report aggregates outcomes. Skipped and failed cases do not count towards Total.
type Report struct {
	Total   int
	Skipped int
	Failed  int
	HitAt1  float64
	HitAt3  float64
	HitAt5  float64
	MRR     float64
}

// Summarize computes the aggregate metrics.
func Summarize(outcomes []Outcome) Report {
	var r Report
	var h1, h3, h5 int
	var rr float64
	for _, o := range outcomes {
		switch {
		case o.Skipped:
			r.Skipped++
			continue
		case o.Err != nil:
			r.Failed++
			continue
		}
		r.Total++
		if o.HitAt(1) {
			h1++
		}
		if o.HitAt(3) {
			h3++
		}
		if o.HitAt(5) {
			h5++
		}
		rr += o.ReciprocalRank()
	}
	if r.Total == 0 {
		return r
	}
	n := float64(r.Total)
	r.HitAt1 = float64(h1) / n
	r.HitAt3 = float64(h3) / n
	r.HitAt5 = float64(h5) / n
	r.MRR = rr / n
	return r
}

// Write prints the report in a fixed-width text layout.
func (r Report) Write(w io.Writer) error {
	line := strings.Repeat("=", 40)
	_, err := fmt.Fprintf(w, "%s\n       EVALUATION REPORT\n%s\n"+
		"Total Scenarios:  %d\n"+
		"Skipped:          %d\n"+
		"Failed:           %d\n"+
		"Hit@1 Precision:  %.1f%%\n"+
		"Hit@3 Coverage:   %.1f%%\n"+
		"Hit@5 Coverage:   %.1f%%\n"+
		"Mean MRR:         %.4f\n%s\n",
		line, line, r.Total, r.Skipped, r.Failed,
		r.HitAt1*100, r.HitAt3*100, r.HitAt5*100, r.MRR, line)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
