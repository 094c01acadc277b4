// Package ranking scores retrieved products against image signals.
//
// The total score is the weighted sum of the sub-scores. Weights are not normalized, so totals are
// comparable only under the same configuration and are interpreted through the match bands.
package ranking

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/domain/settings"
	"github.com/kailas-cloud/shopsight/internal/logger"
)

// Reasons attached by the scorer, in emission order.
const (
	ReasonKeywords   = "Keyword match"
	ReasonCategory   = "Category match"
	ReasonType       = "Type match"
	ReasonAttributes = "Visual attributes match"
	ReasonPrice      = "Price matches preference"
	ReasonDimensions = "Dimensions match preference"
)

// neutralDimensionScore is used when the intent has preferred dimensions but the product has none
// of them.
const neutralDimensionScore = 0.5

// Breakdown holds the individual sub-scores of one candidate. Price and Dimensions are nil when
// the intent did not ask for them.
type Breakdown struct {
	Text       float64
	Category   float64
	Type       float64
	Attributes float64
	Price      *float64
	Dimensions *float64
}

// Score scores p against signals. Pure and deterministic.
func Score(p domain.Product, signals domain.ImageSignals, cfg settings.AdminConfig) domain.ScoredCandidate {
	c, _ := score(p, signals, cfg)
	return c
}

func score(
	p domain.Product, signals domain.ImageSignals, cfg settings.AdminConfig,
) (domain.ScoredCandidate, Breakdown) {
	content := Tokenize(p.Title + " " + p.Description)
	w := cfg.Weights

	var b Breakdown
	var reasons []string

	b.Text = overlap(tokenizeAll(signals.Keywords), content)
	total := b.Text * w.Text
	if b.Text > 0.6 {
		reasons = append(reasons, ReasonKeywords)
	}

	if StemMatch(p.Category, signals.CategoryGuess.Value) {
		b.Category = 1
		total += w.Category
		reasons = append(reasons, ReasonCategory)
	}

	if typeMatch(p.Type, signals.TypeGuess.Value) {
		b.Type = 1
		total += w.Type
		reasons = append(reasons, ReasonType)
	}

	b.Attributes = overlap(tokenizeAll(signals.Attributes.All()), content)
	total += b.Attributes * w.Attributes
	if b.Attributes > 0.5 {
		reasons = append(reasons, ReasonAttributes)
	}

	if signals.Intent.HasPrice() {
		ps := priceScore(p.Price, signals.Intent)
		b.Price = &ps
		total += ps * w.Price
		if ps > 0.8 {
			reasons = append(reasons, ReasonPrice)
		}
	}

	if signals.Intent.HasDimensions() {
		ds := dimensionScore(p, signals.Intent)
		b.Dimensions = &ds
		total += ds * w.Dimensions
		if ds > 0.8 {
			reasons = append(reasons, ReasonDimensions)
		}
	}

	out := domain.ScoredCandidate{
		Product:   p,
		Score:     round4(total),
		MatchBand: Band(total, cfg.MatchBands),
		Reasons:   []string{},
	}
	out.AddReasons(reasons...)
	return out, b
}

// Band maps a score onto its match band.
func Band(score float64, bands settings.MatchBands) domain.MatchBand {
	switch {
	case score >= bands.High:
		return domain.MatchHigh
	case score >= bands.Medium:
		return domain.MatchMedium
	default:
		return domain.MatchLow
	}
}

// priceScore is 1 inside [min,max], otherwise 1 minus the relative overshoot, floored at 0.
func priceScore(price float64, in *domain.Intent) float64 {
	if in.PriceMax != nil && *in.PriceMax > 0 && price > *in.PriceMax {
		maxPrice := *in.PriceMax
		return math.Max(0, 1-(price-maxPrice)/maxPrice)
	}
	if in.PriceMin != nil && *in.PriceMin > 0 && price < *in.PriceMin {
		minPrice := *in.PriceMin
		return math.Max(0, 1-(minPrice-price)/minPrice)
	}
	return 1
}

// dimensionScore averages max(0, 1 - 2|diff|/preferred) over dimensions present on both sides.
func dimensionScore(p domain.Product, in *domain.Intent) float64 {
	pairs := [][2]*float64{
		{in.PreferredWidth, p.Width},
		{in.PreferredHeight, p.Height},
		{in.PreferredDepth, p.Depth},
	}

	var sum float64
	var n int
	for _, pair := range pairs {
		want, have := pair[0], pair[1]
		if want == nil || *want <= 0 || have == nil {
			continue
		}
		diff := math.Abs(*have-*want) / *want
		sum += math.Max(0, 1-2*diff)
		n++
	}
	if n == 0 {
		return neutralDimensionScore
	}
	return sum / float64(n)
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// ScoreAll scores every product and sorts by score descending. Equal scores keep id order so the
// output is deterministic.
func ScoreAll(
	ctx context.Context, products []domain.Product, signals domain.ImageSignals, cfg settings.AdminConfig,
) []domain.ScoredCandidate {
	log := logger.FromContext(ctx)

	out := make([]domain.ScoredCandidate, 0, len(products))
	for i := range products {
		c, b := score(products[i], signals, cfg)
		if ce := log.Check(zap.DebugLevel, "scored candidate"); ce != nil {
			ce.Write(
				zap.String("id", c.ID),
				zap.String("title", c.Title),
				zap.Float64("text", b.Text),
				zap.Float64("attributes", b.Attributes),
				zap.Float64("score", c.Score),
				zap.String("band", string(c.MatchBand)),
			)
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}
