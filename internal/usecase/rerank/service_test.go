package rerank

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

// scriptedGenerator replays canned answers in order.
type scriptedGenerator struct {
	answers []string
	errs    []error
	reqs    []domain.GenerateRequest
}

func (g *scriptedGenerator) Generate(_ context.Context, req domain.GenerateRequest) (domain.Generation, error) {
	i := len(g.reqs)
	g.reqs = append(g.reqs, req)
	if i < len(g.errs) && g.errs[i] != nil {
		return domain.Generation{}, g.errs[i]
	}
	if i >= len(g.answers) {
		return domain.Generation{}, errors.New("unexpected call")
	}
	return domain.Generation{Text: g.answers[i]}, nil
}

func candidates(ids ...string) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, len(ids))
	for i, id := range ids {
		out[i] = domain.ScoredCandidate{Product: domain.Product{
			ID: id, Title: "Produto " + id, Category: "Sala de Estar", Type: "Sofá",
			Description: strings.Repeat("á", 300),
		}}
	}
	return out
}

func signals() domain.ImageSignals {
	return domain.ImageSignals{
		CategoryGuess: domain.Guess{Value: "Sala de Estar", Confidence: 0.9},
		TypeGuess:     domain.Guess{Value: "Sofá", Confidence: 0.9},
		Keywords:      []string{"veludo"},
	}
}

func TestRerank_NoCandidatesSkipsModel(t *testing.T) {
	gen := &scriptedGenerator{}
	res, err := New(gen, nil).Rerank(context.Background(), signals(), nil, "", nil)

	require.NoError(t, err)
	assert.Empty(t, res.RankedIDs)
	assert.Empty(t, gen.reqs)
}

func TestRerank_HappyPath(t *testing.T) {
	gen := &scriptedGenerator{answers: []string{
		`{"ranking":[{"id":"c","reasons":["Same velvet"]},{"id":"a","reasons":[]}]}`,
	}}

	res, err := New(gen, nil).Rerank(context.Background(), signals(), candidates("a", "b", "c"), "verde", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, res.RankedIDs)
	assert.Equal(t, map[string][]string{"c": {"Same velvet"}}, res.Reasons)
	assert.Zero(t, res.RepairAttempts)

	require.Len(t, gen.reqs, 1)
	req := gen.reqs[0]
	assert.Equal(t, "rerank", req.Operation)
	assert.Equal(t, DefaultTemperature, req.Temperature)
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	assert.NotNil(t, req.Schema)
	assert.Contains(t, req.Prompt, "verde")
	assert.Contains(t, req.Prompt, strings.Repeat("á", maxDescriptionRunes))
	assert.NotContains(t, req.Prompt, strings.Repeat("á", maxDescriptionRunes+1))
}

func TestRerank_DropsUnknownAndDuplicateIDs(t *testing.T) {
	gen := &scriptedGenerator{answers: []string{
		"```json\n[{\"id\":\"ghost\",\"reasons\":[\"x\"]},{\"id\":\"b\",\"reasons\":[]},{\"id\":\"b\",\"reasons\":[]}]\n```",
	}}

	res, err := New(gen, nil).Rerank(context.Background(), signals(), candidates("a", "b"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, res.RankedIDs)
	assert.NotContains(t, res.Reasons, "ghost")
}

func TestRerank_RepairsMalformedOutput(t *testing.T) {
	primary := &scriptedGenerator{answers: []string{`{"ranking":[{"id":"b","reasons":["ok"]`}}
	repair := &scriptedGenerator{answers: []string{`{"ranking":[{"id":"b","reasons":["ok"]},{"id":"zzz","reasons":[]}]}`}}

	res, err := New(primary, repair).Rerank(context.Background(), signals(), candidates("a", "b"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, res.RankedIDs)
	assert.Equal(t, 1, res.RepairAttempts)

	require.Len(t, repair.reqs, 1)
	assert.Equal(t, "repair", repair.reqs[0].Operation)
	assert.Contains(t, repair.reqs[0].Prompt, `{"ranking":[{"id":"b","reasons":["ok"]`)
	assert.Contains(t, repair.reqs[0].Prompt, "a\nb")
}

func TestRerank_RepairBounded(t *testing.T) {
	primary := &scriptedGenerator{answers: []string{"not json"}}
	repair := &scriptedGenerator{answers: []string{"still not json", `{"rankedIds":["a"]}`, `{"ranking":[]}`}}

	_, err := New(primary, repair).Rerank(context.Background(), signals(), candidates("a", "b"), "", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProviderInvalidResponse)
	assert.Equal(t, domain.CodeProviderInvalidResponse, domain.CodeOf(err))
	assert.Len(t, repair.reqs, MaxRepairAttempts)
}

func TestRerank_EveryRepairSeesPrimaryAnswer(t *testing.T) {
	primary := &scriptedGenerator{answers: []string{"primary: not json"}}
	repair := &scriptedGenerator{answers: []string{"repair: still broken", `{"ranking":[{"id":"a","reasons":[]}]}`}}

	res, err := New(primary, repair).Rerank(context.Background(), signals(), candidates("a", "b"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.RepairAttempts)

	require.Len(t, repair.reqs, 2)
	for i, req := range repair.reqs {
		assert.Contains(t, req.Prompt, "primary: not json", "attempt %d", i+1)
		assert.NotContains(t, req.Prompt, "repair: still broken", "attempt %d", i+1)
	}
}

func TestRerank_SchemaViolationNeedsRepair(t *testing.T) {
	primary := &scriptedGenerator{answers: []string{`{"ranking":[{"reasons":["no id"]}]}`}}
	repair := &scriptedGenerator{answers: []string{`{"ranking":[{"id":"a","reasons":[]}]}`}}

	res, err := New(primary, repair).Rerank(context.Background(), signals(), candidates("a", "b"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.RankedIDs)
	assert.Equal(t, 1, res.RepairAttempts)
}

func TestRerank_ProviderErrorsAreFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code domain.Code
	}{
		{"auth", domain.NewError(domain.ErrProviderAuth, "invalid provider credentials", errors.New("401")), domain.CodeProviderAuth},
		{"rate limit", domain.NewError(domain.ErrProviderRateLimit, "quota exceeded", nil), domain.CodeProviderRateLimit},
		{"unclassified", errors.New("dial tcp: i/o timeout"), domain.CodeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gen := &scriptedGenerator{errs: []error{tc.err}}
			_, err := New(gen, nil).Rerank(context.Background(), signals(), candidates("a"), "", nil)
			require.Error(t, err)
			assert.Equal(t, tc.code, domain.CodeOf(err))
			assert.Len(t, gen.reqs, 1, "provider errors are not repaired")
		})
	}
}

func TestRerank_RepairProviderErrorIsFatal(t *testing.T) {
	primary := &scriptedGenerator{answers: []string{"{"}}
	repair := &scriptedGenerator{errs: []error{domain.NewError(domain.ErrProviderRateLimit, "quota exceeded", nil)}}

	_, err := New(primary, repair).Rerank(context.Background(), signals(), candidates("a"), "", nil)
	assert.ErrorIs(t, err, domain.ErrProviderRateLimit)
}

func TestRerank_Options(t *testing.T) {
	gen := &scriptedGenerator{answers: []string{`{"ranking":[]}`}}

	res, err := New(gen, nil).Rerank(context.Background(), signals(), candidates("a", "b"), "",
		&domain.RerankOptions{Temperature: ptr(float32(0.3)), MaxTokens: 500})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.RankedIDs, "empty ranking keeps input order")
	assert.Equal(t, float32(0.3), gen.reqs[0].Temperature)
	assert.Equal(t, 500, gen.reqs[0].MaxTokens)
}

func TestRerank_ZeroTemperatureIsHonored(t *testing.T) {
	gen := &scriptedGenerator{answers: []string{`{"ranking":[]}`}}

	_, err := New(gen, nil).Rerank(context.Background(), signals(), candidates("a", "b"), "",
		&domain.RerankOptions{Temperature: ptr(float32(0))})
	require.NoError(t, err)
	assert.Zero(t, gen.reqs[0].Temperature)
	assert.Equal(t, DefaultMaxTokens, gen.reqs[0].MaxTokens)
}

func ptr[T any](v T) *T { return &v }

func TestNormalize_IsPermutation(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	rankings := [][]rankedItem{
		nil,
		{{ID: "d"}, {ID: "c"}, {ID: "b"}, {ID: "a"}},
		{{ID: "x"}, {ID: "y"}},
		{{ID: "b"}, {ID: "b"}, {ID: " c "}},
	}
	for _, r := range rankings {
		res := normalize(r, ids)
		assert.Len(t, res.RankedIDs, len(ids))
		assert.ElementsMatch(t, ids, res.RankedIDs)
	}
}
