package shopsight

import (
	"context"

	"github.com/kailas-cloud/shopsight/internal/domain"
	healthuc "github.com/kailas-cloud/shopsight/internal/usecase/health"
	"github.com/kailas-cloud/shopsight/internal/usecase/imagesearch"
)

// --- Extractor mock ---

type mockExtractor struct {
	fn func(ctx context.Context, image Image, prompt string) (Signals, error)
}

func (m *mockExtractor) Extract(ctx context.Context, image Image, prompt string) (Signals, error) {
	return m.fn(ctx, image, prompt)
}

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn func(ctx context.Context, in imagesearch.Input) (*imagesearch.Output, error)
}

func (m *mockSearchUC) Search(ctx context.Context, in imagesearch.Input) (*imagesearch.Output, error) {
	return m.searchFn(ctx, in)
}

// --- feedbackUseCase mock ---

type mockFeedbackUC struct {
	addFn func(requestID string, fb domain.Feedback) error
}

func (m *mockFeedbackUC) AddFeedback(requestID string, fb domain.Feedback) error {
	return m.addFn(requestID, fb)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	checkFn func(ctx context.Context) healthuc.Report
}

func (m *mockHealthUC) Check(ctx context.Context) healthuc.Report {
	return m.checkFn(ctx)
}

// --- catalogStore mock ---

type mockCatalog struct {
	countFn      func(ctx context.Context) (int, error)
	upsertFn     func(ctx context.Context, p domain.Product) error
	upsertManyFn func(ctx context.Context, products []domain.Product) error
	findFn       func(ctx context.Context, id string) (domain.Product, error)
}

func (m *mockCatalog) Count(ctx context.Context) (int, error) { return m.countFn(ctx) }

func (m *mockCatalog) EnsureIndex(context.Context) (bool, error) { return false, nil }

func (m *mockCatalog) Upsert(ctx context.Context, p domain.Product) error { return m.upsertFn(ctx, p) }

func (m *mockCatalog) UpsertMany(ctx context.Context, products []domain.Product) error {
	return m.upsertManyFn(ctx, products)
}

func (m *mockCatalog) FindByID(ctx context.Context, id string) (domain.Product, error) {
	return m.findFn(ctx, id)
}
