// Package rerank asks a language model to reorder heuristically scored candidates.
//
// Model output goes through a small state machine: a parseable answer is Ok, a malformed one
// NeedsRepair and is sent to a repair model at most MaxRepairAttempts times, and provider errors or
// an answer still malformed after the last repair are Fatal.
package rerank

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/logger"
	"github.com/kailas-cloud/shopsight/internal/metrics"
)

// MaxRepairAttempts bounds the repair passes over malformed output.
const MaxRepairAttempts = 2

// Defaults for the rerank call.
const (
	DefaultTemperature float32 = 0.1
	DefaultMaxTokens           = 2000
)

// Service reranks candidates with a primary generator and repairs malformed output with a
// (possibly different, more tolerant) repair generator.
type Service struct {
	primary domain.Generator
	repair  domain.Generator
}

// New creates a reranker. A nil repair generator reuses the primary one.
func New(primary, repair domain.Generator) *Service {
	if repair == nil {
		repair = primary
	}
	return &Service{primary: primary, repair: repair}
}

type state int

const (
	stateOK state = iota
	stateNeedsRepair
	stateFatal
)

// outcome is the result of one model call plus parse.
type outcome struct {
	state   state
	ranking []rankedItem
	raw     string
	err     error
}

// Rerank orders candidates by model judgement. Zero candidates return an empty result without a
// model call. Errors are classified domain errors; callers are expected to fall back to the
// heuristic order.
func (s *Service) Rerank(
	ctx context.Context,
	signals domain.ImageSignals,
	candidates []domain.ScoredCandidate,
	userPrompt string,
	opts *domain.RerankOptions,
) (domain.RerankResult, error) {
	if len(candidates) == 0 {
		return domain.RerankResult{RankedIDs: []string{}, Reasons: map[string][]string{}}, nil
	}

	temperature := DefaultTemperature
	o := domain.RerankOptions{Temperature: &temperature, MaxTokens: DefaultMaxTokens}
	if opts != nil {
		if opts.Temperature != nil {
			o.Temperature = opts.Temperature
		}
		if opts.MaxTokens > 0 {
			o.MaxTokens = opts.MaxTokens
		}
	}

	prompt, err := buildUserPrompt(signals, candidates, userPrompt)
	if err != nil {
		return domain.RerankResult{}, domain.NewError(domain.ErrInternal, "failed to build rerank prompt", err)
	}

	ids := make([]string, len(candidates))
	for i := range candidates {
		ids[i] = candidates[i].ID
	}

	log := logger.FromContext(ctx)

	out := s.call(ctx, s.primary, domain.GenerateRequest{
		Operation:   "rerank",
		System:      systemPrompt,
		Prompt:      prompt,
		Temperature: *o.Temperature,
		MaxTokens:   o.MaxTokens,
		SchemaName:  outputSchemaName,
		Schema:      outputSchema,
	})

	// Every repair pass works on the primary answer; only the parse error moves forward.
	original := out.raw
	attempts := 0
	for out.state == stateNeedsRepair {
		if attempts >= MaxRepairAttempts {
			out = outcome{
				state: stateFatal,
				err: domain.NewError(domain.ErrProviderInvalidResponse,
					"reranker returned an invalid response", out.err),
			}
			break
		}
		attempts++
		log.Warn("rerank output malformed, repairing",
			zap.Int("attempt", attempts),
			zap.Error(out.err),
		)
		out = s.call(ctx, s.repair, domain.GenerateRequest{
			Operation:   "repair",
			System:      repairSystemPrompt,
			Prompt:      buildRepairPrompt(original, out.err, ids),
			Temperature: 0,
			MaxTokens:   o.MaxTokens,
			SchemaName:  outputSchemaName,
			Schema:      outputSchema,
		})
		metrics.RerankRepairAttemptsTotal.WithLabelValues(repairLabel(out.state)).Inc()
	}

	if out.state == stateFatal {
		return domain.RerankResult{RepairAttempts: attempts}, out.err
	}

	res := normalize(out.ranking, ids)
	res.RepairAttempts = attempts
	return res, nil
}

func (s *Service) call(ctx context.Context, gen domain.Generator, req domain.GenerateRequest) outcome {
	g, err := gen.Generate(ctx, req)
	if err != nil {
		return outcome{state: stateFatal, err: classify(err)}
	}
	ranking, err := parseOutput(g.Text)
	if err != nil {
		return outcome{state: stateNeedsRepair, raw: g.Text, err: err}
	}
	return outcome{state: stateOK, ranking: ranking}
}

// classify keeps classified provider errors and turns anything else into ErrInternal.
func classify(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if domain.CodeOf(err) != domain.CodeInternal {
		return err
	}
	return domain.NewError(domain.ErrInternal, "rerank request failed", err)
}

func repairLabel(st state) string {
	switch st {
	case stateOK:
		return "ok"
	case stateNeedsRepair:
		return "invalid"
	default:
		return "error"
	}
}

// normalize drops unknown and duplicate ids, appends missing ids in their original order and
// collects per-id reasons.
func normalize(ranking []rankedItem, ids []string) domain.RerankResult {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}

	res := domain.RerankResult{
		RankedIDs: make([]string, 0, len(ids)),
		Reasons:   make(map[string][]string),
	}
	seen := make(map[string]bool, len(ids))
	for _, it := range ranking {
		id := strings.TrimSpace(it.ID)
		if !known[id] || seen[id] {
			continue
		}
		seen[id] = true
		res.RankedIDs = append(res.RankedIDs, id)
		if reasons := cleanReasons(it.Reasons); len(reasons) > 0 {
			res.Reasons[id] = reasons
		}
	}
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			res.RankedIDs = append(res.RankedIDs, id)
		}
	}
	return res
}

func cleanReasons(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
