package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

// fakeCatalog answers per plan, identified by the query shape.
type fakeCatalog struct {
	text    []domain.Product
	textErr error
	byPlan  map[domain.RetrievalPlan][]domain.Product
	errs    map[domain.RetrievalPlan]error
	calls   []domain.RetrievalPlan
}

func (f *fakeCatalog) SearchText(_ context.Context, _ []string, limit int) ([]domain.Product, error) {
	f.calls = append(f.calls, domain.PlanText)
	if f.textErr != nil {
		return nil, f.textErr
	}
	return capped(f.text, limit), nil
}

func (f *fakeCatalog) Find(_ context.Context, q domain.ProductQuery) ([]domain.Product, error) {
	plan := planOf(q)
	f.calls = append(f.calls, plan)
	if err := f.errs[plan]; err != nil {
		return nil, err
	}
	return capped(f.byPlan[plan], q.Limit), nil
}

func planOf(q domain.ProductQuery) domain.RetrievalPlan {
	switch {
	case len(q.Filter.Should()) > 0:
		return domain.PlanD
	case len(q.Filter.Must()) == 2:
		return domain.PlanA
	case len(q.Filter.Must()) == 1:
		return domain.PlanB
	default:
		return domain.PlanC
	}
}

func capped(list []domain.Product, limit int) []domain.Product {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

func products(n int) []domain.Product {
	out := make([]domain.Product, n)
	for i := range out {
		out[i] = domain.Product{ID: fmt.Sprintf("p%d", i), Title: "x", Category: "c", Type: "t"}
	}
	return out
}

func fullCriteria() domain.SearchCriteria {
	return domain.SearchCriteria{
		Category:      "Sala de Estar",
		Type:          "Sofá",
		Keywords:      []string{"veludo"},
		MinCandidates: 3,
	}
}

func TestFindCandidates_TextShortCircuits(t *testing.T) {
	cat := &fakeCatalog{text: products(5)}

	got, plan, err := New(cat).FindCandidates(context.Background(), fullCriteria())
	require.NoError(t, err)
	assert.Equal(t, domain.PlanText, plan)
	assert.Len(t, got, 5)
	assert.Equal(t, []domain.RetrievalPlan{domain.PlanText}, cat.calls)
}

func TestFindCandidates_TextUnavailableIsSkipped(t *testing.T) {
	cat := &fakeCatalog{
		textErr: domain.ErrTextSearchUnavailable,
		byPlan:  map[domain.RetrievalPlan][]domain.Product{domain.PlanA: products(3)},
	}

	got, plan, err := New(cat).FindCandidates(context.Background(), fullCriteria())
	require.NoError(t, err)
	assert.Equal(t, domain.PlanA, plan)
	assert.Len(t, got, 3)
	assert.Equal(t, []domain.RetrievalPlan{domain.PlanText, domain.PlanA}, cat.calls)
}

func TestFindCandidates_WalksToBroaderSteps(t *testing.T) {
	cat := &fakeCatalog{
		byPlan: map[domain.RetrievalPlan][]domain.Product{
			domain.PlanA: products(1),
			domain.PlanB: products(2),
			domain.PlanC: products(4),
		},
	}

	got, plan, err := New(cat).FindCandidates(context.Background(), fullCriteria())
	require.NoError(t, err)
	assert.Equal(t, domain.PlanC, plan)
	assert.Len(t, got, 4)
	assert.NotContains(t, cat.calls, domain.PlanD, "D must not run once C reached the threshold")
}

func TestFindCandidates_KeepsLargestPartial(t *testing.T) {
	cat := &fakeCatalog{
		byPlan: map[domain.RetrievalPlan][]domain.Product{
			domain.PlanA: products(1),
			domain.PlanB: products(2),
			domain.PlanC: products(2),
			domain.PlanD: products(1),
		},
	}

	got, plan, err := New(cat).FindCandidates(context.Background(), fullCriteria())
	require.NoError(t, err)
	assert.Equal(t, domain.PlanB, plan, "ties keep the more precise step")
	assert.Len(t, got, 2)
	assert.Equal(t,
		[]domain.RetrievalPlan{domain.PlanText, domain.PlanA, domain.PlanB, domain.PlanC, domain.PlanD},
		cat.calls)
}

func TestFindCandidates_NothingMatches(t *testing.T) {
	cat := &fakeCatalog{}

	got, plan, err := New(cat).FindCandidates(context.Background(), domain.SearchCriteria{
		Keywords: []string{"zzzz"},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanD, plan)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestFindCandidates_EmptyCriteria(t *testing.T) {
	cat := &fakeCatalog{}

	got, plan, err := New(cat).FindCandidates(context.Background(), domain.SearchCriteria{})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanD, plan)
	assert.Empty(t, got)
	assert.Empty(t, cat.calls)
}

func TestFindCandidates_OnlyCategoryGoesToD(t *testing.T) {
	cat := &fakeCatalog{byPlan: map[domain.RetrievalPlan][]domain.Product{domain.PlanD: products(2)}}

	got, plan, err := New(cat).FindCandidates(context.Background(), domain.SearchCriteria{
		Category: "Quarto",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanD, plan)
	assert.Len(t, got, 2)
	assert.Equal(t, []domain.RetrievalPlan{domain.PlanD}, cat.calls)
}

func TestFindCandidates_FailingStepIsRecovered(t *testing.T) {
	cat := &fakeCatalog{
		byPlan: map[domain.RetrievalPlan][]domain.Product{domain.PlanB: products(3)},
		errs:   map[domain.RetrievalPlan]error{domain.PlanA: errors.New("connection reset")},
	}

	got, plan, err := New(cat).FindCandidates(context.Background(), fullCriteria())
	require.NoError(t, err)
	assert.Equal(t, domain.PlanB, plan)
	assert.Len(t, got, 3)
}

func TestFindCandidates_AllStepsFail(t *testing.T) {
	storeErr := errors.New("connection refused")
	cat := &fakeCatalog{
		textErr: storeErr,
		errs: map[domain.RetrievalPlan]error{
			domain.PlanA: storeErr,
			domain.PlanB: storeErr,
			domain.PlanC: storeErr,
			domain.PlanD: storeErr,
		},
	}

	_, _, err := New(cat).FindCandidates(context.Background(), fullCriteria())
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
}

func TestFindCandidates_LimitApplied(t *testing.T) {
	cat := &fakeCatalog{text: products(80)}

	crit := fullCriteria()
	crit.MinCandidates = 0
	got, _, err := New(cat).FindCandidates(context.Background(), crit)
	require.NoError(t, err)
	assert.Len(t, got, DefaultLimit)
}

func TestFindCandidates_PlanTagIsAttempted(t *testing.T) {
	criteria := []domain.SearchCriteria{
		{},
		{Keywords: []string{"a"}},
		{Category: "c"},
		{Type: "t"},
		{Category: "c", Keywords: []string{"a"}},
		fullCriteria(),
	}
	for i, c := range criteria {
		cat := &fakeCatalog{byPlan: map[domain.RetrievalPlan][]domain.Product{
			domain.PlanB: products(1),
			domain.PlanD: products(1),
		}}
		got, plan, err := New(cat).FindCandidates(context.Background(), c)
		require.NoError(t, err, "criteria %d", i)
		if len(got) > 0 {
			assert.Contains(t, cat.calls, plan, "criteria %d", i)
		} else {
			assert.Equal(t, domain.PlanD, plan, "criteria %d", i)
		}
	}
}

func TestFindCandidates_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := New(&fakeCatalog{}).FindCandidates(ctx, fullCriteria())
	assert.ErrorIs(t, err, context.Canceled)
}
