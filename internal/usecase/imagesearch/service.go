// Package imagesearch composes extraction, retrieval, scoring and reranking into one search.
package imagesearch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shopsight/internal/domain"
	"github.com/kailas-cloud/shopsight/internal/domain/settings"
	"github.com/kailas-cloud/shopsight/internal/logger"
	"github.com/kailas-cloud/shopsight/internal/metrics"
	"github.com/kailas-cloud/shopsight/internal/usecase/ranking"
)

// Service runs the image search pipeline.
type Service struct {
	extractor Extractor
	retriever Retriever
	reranker  Reranker
	config    ConfigProvider
	telemetry Recorder
}

// New creates the pipeline. A nil reranker disables stage 2 regardless of configuration.
func New(
	extractor Extractor, retriever Retriever, reranker Reranker,
	config ConfigProvider, telemetry Recorder,
) *Service {
	return &Service{
		extractor: extractor,
		retriever: retriever,
		reranker:  reranker,
		config:    config,
		telemetry: telemetry,
	}
}

// run carries the per-request state that ends up in telemetry.
type run struct {
	event   domain.TelemetryEvent
	notices []Notice
}

func (r *run) notice(code, msg string) {
	r.notices = append(r.notices, Notice{Code: code, Message: msg})
}

// Search executes one image search under the configured stage budgets. A telemetry event is
// recorded whether the search succeeds or fails.
func (s *Service) Search(ctx context.Context, in Input) (*Output, error) {
	start := time.Now()
	cfg := s.config.Get()
	log := logger.FromContext(ctx)

	ctx, cancel := context.WithTimeout(ctx, ms(cfg.TimeoutsMs.Total))
	defer cancel()

	r := &run{event: domain.TelemetryEvent{RequestID: in.RequestID}}

	out, err := s.search(ctx, in, cfg, r)

	r.event.Timings.TotalMs = time.Since(start).Milliseconds()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())

	if err != nil {
		err = classify(err)
		r.event.Error = &domain.TelemetryError{
			Code:    domain.CodeOf(err),
			Message: domain.PublicMessage(err),
			Detail:  err.Error(),
		}
		metrics.SearchRequestsTotal.WithLabelValues(string(domain.CodeOf(err))).Inc()
		s.telemetry.Record(r.event)
		log.Warn("image search failed",
			zap.String("request_id", in.RequestID),
			zap.String("code", string(domain.CodeOf(err))),
			zap.Error(err),
		)
		return nil, err
	}

	metrics.SearchRequestsTotal.WithLabelValues("OK").Inc()
	s.telemetry.Record(r.event)

	out.Meta.Timings = r.event.Timings
	return out, nil
}

func (s *Service) search(ctx context.Context, in Input, cfg settings.AdminConfig, r *run) (*Output, error) {
	log := logger.FromContext(ctx)

	// Stage 1: image -> signals.
	signals, err := s.extract(ctx, in, cfg, r)
	if err != nil {
		return nil, err
	}

	// Retrieval.
	criteria := Criteria(signals, cfg)
	t := time.Now()
	rctx, rcancel := context.WithTimeout(ctx, ms(cfg.TimeoutsMs.Retrieval))
	products, plan, err := s.retriever.FindCandidates(rctx, criteria)
	rcancel()
	r.event.Timings.RetrievalMs = time.Since(t).Milliseconds()
	metrics.StageDuration.WithLabelValues("retrieval").Observe(time.Since(t).Seconds())
	if err != nil {
		return nil, domain.NewError(domain.ErrInternal, "catalog search failed", err)
	}
	metrics.RetrievalPlanTotal.WithLabelValues(string(plan)).Inc()
	r.event.RetrievalPlan = plan
	r.event.Counts.Retrieved = len(products)
	if plan.IsBroad() {
		r.event.Fallbacks.BroadRetrieval = true
		r.notice(NoticeBroadRetrieval, "No close matches for the detected category and type; showing broader results.")
	}

	log.Debug("candidates retrieved",
		zap.String("plan", string(plan)),
		zap.Int("count", len(products)),
		zap.String("category", criteria.Category),
		zap.String("type", criteria.Type),
	)

	// Heuristic scoring.
	scored := ranking.ScoreAll(ctx, products, signals, cfg)

	// Stage 2: optional model rerank of the head.
	if s.reranker != nil && cfg.EnableLLMRerank && len(scored) > 1 {
		scored = s.rerank(ctx, in, signals, scored, cfg, r)
	}

	r.event.Counts.Returned = len(scored)

	notices := r.notices
	if notices == nil {
		notices = []Notice{}
	}
	return &Output{
		Query:   Query{Prompt: in.Prompt, Signals: signals},
		Results: scored,
		Meta: Meta{
			RequestID:     in.RequestID,
			Notices:       notices,
			RetrievalPlan: plan,
		},
	}, nil
}

func (s *Service) extract(ctx context.Context, in Input, cfg settings.AdminConfig, r *run) (domain.ImageSignals, error) {
	t := time.Now()
	ectx, cancel := context.WithTimeout(ctx, ms(cfg.TimeoutsMs.Stage1))
	signals, err := s.extractor.Extract(ectx, in.Image, in.Prompt)
	cancel()
	r.event.Timings.Stage1Ms = time.Since(t).Milliseconds()
	metrics.StageDuration.WithLabelValues("stage1").Observe(time.Since(t).Seconds())

	if err == nil {
		return signals, nil
	}
	if in.FallbackSignals == nil {
		return domain.ImageSignals{}, err
	}

	fallback := *in.FallbackSignals
	if verr := fallback.Validate(); verr != nil {
		return domain.ImageSignals{}, domain.NewError(domain.ErrValidation, "fallback signals are invalid", verr)
	}
	logger.FromContext(ctx).Warn("extraction failed, using fallback signals", zap.Error(err))
	r.event.Fallbacks.VisionFallback = true
	r.notice(NoticeVisionFallback, "Image analysis was unavailable; results are based on the supplied description.")
	return fallback, nil
}

func (s *Service) rerank(
	ctx context.Context, in Input, signals domain.ImageSignals,
	scored []domain.ScoredCandidate, cfg settings.AdminConfig, r *run,
) []domain.ScoredCandidate {
	topM := min(cfg.LLMRerankTopM, len(scored))
	head := scored[:topM]

	t := time.Now()
	sctx, cancel := context.WithTimeout(ctx, ms(cfg.TimeoutsMs.Stage2))
	res, err := s.reranker.Rerank(sctx, signals, head, in.Prompt, nil)
	cancel()
	r.event.Timings.Stage2Ms = time.Since(t).Milliseconds()
	metrics.StageDuration.WithLabelValues("stage2").Observe(time.Since(t).Seconds())

	if err != nil {
		logger.FromContext(ctx).Warn("rerank failed, keeping heuristic order",
			zap.String("code", string(domain.CodeOf(err))),
			zap.Error(err),
		)
		metrics.RerankFallbackTotal.Inc()
		r.event.Fallbacks.RerankFallback = true
		r.notice(NoticeRerankFallback, "AI re-ranking was unavailable; results use heuristic order.")
		return scored
	}

	r.event.Counts.Reranked = topM
	return Apply(scored, topM, res)
}

// Apply reorders the first topM candidates by res.RankedIDs and appends model reasons. Ids not in
// the head are ignored, head candidates the model left out keep their relative order after the
// ranked ones, and the tail is untouched.
func Apply(scored []domain.ScoredCandidate, topM int, res domain.RerankResult) []domain.ScoredCandidate {
	head := scored[:topM]
	byID := make(map[string]int, len(head))
	for i := range head {
		byID[head[i].ID] = i
	}

	out := make([]domain.ScoredCandidate, 0, len(scored))
	used := make([]bool, len(head))
	for _, id := range res.RankedIDs {
		i, ok := byID[id]
		if !ok || used[i] {
			continue
		}
		used[i] = true
		c := head[i]
		c.Reasons = append([]string(nil), c.Reasons...)
		c.AddReasons(res.Reasons[id]...)
		out = append(out, c)
	}
	for i := range head {
		if !used[i] {
			out = append(out, head[i])
		}
	}
	return append(out, scored[topM:]...)
}

// Criteria projects signals onto store criteria. Category and type are used only when their
// confidence reaches minCategoryConfidence; the category additionally requires useCategoryFilter.
func Criteria(signals domain.ImageSignals, cfg settings.AdminConfig) domain.SearchCriteria {
	c := domain.SearchCriteria{
		Keywords:      signals.Keywords,
		MinCandidates: cfg.MinCandidates,
		Limit:         cfg.CandidateTopN,
	}
	if cfg.UseCategoryFilter && signals.CategoryGuess.Confidence >= cfg.MinCategoryConfidence {
		c.Category = signals.CategoryGuess.Value
	}
	if signals.TypeGuess.Confidence >= cfg.MinCategoryConfidence {
		c.Type = signals.TypeGuess.Value
	}
	return c
}

// classify maps deadline errors and unclassified failures onto domain errors.
func classify(err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.ErrInternal, "search timed out", err)
	}
	if domain.CodeOf(err) != domain.CodeInternal {
		return err
	}
	return domain.NewError(domain.ErrInternal, "search failed", err)
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
