package shopsight

import (
	"time"

	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/usecase/imagesearch"
)

// Product is a catalog item.
type Product struct {
	ID          string
	Title       string
	Description string
	Category    string
	Type        string
	Price       float64
	// Dimensions in centimeters. Nil when unknown.
	Width  *float64
	Height *float64
	Depth  *float64
}

// Image is an inline image with its MIME type.
type Image struct {
	Data     []byte
	MimeType string
}

// Guess is a classifier value with its confidence in [0,1].
type Guess struct {
	Value      string
	Confidence float64
}

// Intent is a numeric preference stated in the prompt or read from the image.
type Intent struct {
	PriceMin        *float64
	PriceMax        *float64
	PreferredWidth  *float64
	PreferredHeight *float64
	PreferredDepth  *float64
}

// Signals describe what the vision model saw in the image.
type Signals struct {
	Category Guess
	Type     Guess
	Keywords []string
	Style    []string
	Material []string
	Color    []string
	Intent   *Intent
}

// MatchBand is the coarse relevance tier of a result.
type MatchBand string

// Match bands, highest first.
const (
	MatchHigh   MatchBand = "HIGH"
	MatchMedium MatchBand = "MEDIUM"
	MatchLow    MatchBand = "LOW"
)

// Result is one ranked product.
type Result struct {
	Product
	Score     float64
	MatchBand MatchBand
	Reasons   []string
}

// Notice is a non-fatal condition of a search (fallbacks, broad retrieval).
type Notice struct {
	Code    string
	Message string
}

// Timings are stage durations of one search.
type Timings struct {
	Total     time.Duration
	Stage1    time.Duration
	Retrieval time.Duration
	Stage2    time.Duration
}

// SearchResponse is the ranked answer to an image search.
type SearchResponse struct {
	RequestID string
	Prompt    string
	Signals   Signals
	Results   []Result
	Notices   []Notice
	// RetrievalPlan is the ladder step ("A".."D") that produced the candidates.
	RetrievalPlan string
	Timings       Timings
}

func toDomainProduct(p Product) domain.Product {
	return domain.Product{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Type:        p.Type,
		Price:       p.Price,
		Width:       p.Width,
		Height:      p.Height,
		Depth:       p.Depth,
	}
}

func fromDomainProduct(p domain.Product) Product {
	return Product{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Type:        p.Type,
		Price:       p.Price,
		Width:       p.Width,
		Height:      p.Height,
		Depth:       p.Depth,
	}
}

func toDomainSignals(s Signals) domain.ImageSignals {
	out := domain.ImageSignals{
		CategoryGuess: domain.Guess{Value: s.Category.Value, Confidence: s.Category.Confidence},
		TypeGuess:     domain.Guess{Value: s.Type.Value, Confidence: s.Type.Confidence},
		Keywords:      s.Keywords,
		Attributes: domain.Attributes{
			Style:    s.Style,
			Material: s.Material,
			Color:    s.Color,
		},
	}
	if in := s.Intent; in != nil {
		out.Intent = &domain.Intent{
			PriceMin:        in.PriceMin,
			PriceMax:        in.PriceMax,
			PreferredWidth:  in.PreferredWidth,
			PreferredHeight: in.PreferredHeight,
			PreferredDepth:  in.PreferredDepth,
		}
	}
	return out
}

func fromDomainSignals(s domain.ImageSignals) Signals {
	out := Signals{
		Category: Guess{Value: s.CategoryGuess.Value, Confidence: s.CategoryGuess.Confidence},
		Type:     Guess{Value: s.TypeGuess.Value, Confidence: s.TypeGuess.Confidence},
		Keywords: s.Keywords,
		Style:    s.Attributes.Style,
		Material: s.Attributes.Material,
		Color:    s.Attributes.Color,
	}
	if in := s.Intent; in != nil {
		out.Intent = &Intent{
			PriceMin:        in.PriceMin,
			PriceMax:        in.PriceMax,
			PreferredWidth:  in.PreferredWidth,
			PreferredHeight: in.PreferredHeight,
			PreferredDepth:  in.PreferredDepth,
		}
	}
	return out
}

func fromOutput(out *imagesearch.Output) *SearchResponse {
	results := make([]Result, len(out.Results))
	for i, c := range out.Results {
		results[i] = Result{
			Product:   fromDomainProduct(c.Product),
			Score:     c.Score,
			MatchBand: MatchBand(c.MatchBand),
			Reasons:   c.Reasons,
		}
	}
	notices := make([]Notice, len(out.Meta.Notices))
	for i, n := range out.Meta.Notices {
		notices[i] = Notice{Code: n.Code, Message: n.Message}
	}
	t := out.Meta.Timings
	return &SearchResponse{
		RequestID:     out.Meta.RequestID,
		Prompt:        out.Query.Prompt,
		Signals:       fromDomainSignals(out.Query.Signals),
		Results:       results,
		Notices:       notices,
		RetrievalPlan: string(out.Meta.RetrievalPlan),
		Timings: Timings{
			Total:     time.Duration(t.TotalMs) * time.Millisecond,
			Stage1:    time.Duration(t.Stage1Ms) * time.Millisecond,
			Retrieval: time.Duration(t.RetrievalMs) * time.Millisecond,
			Stage2:    time.Duration(t.Stage2Ms) * time.Millisecond,
		},
	}
}
