package shopsight

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/shopsight/internal/catalogseed"
	"github.com/kailas-cloud/shopsight/internal/domain"
)

func TestCatalogService_UpsertDerivesID(t *testing.T) {
	var stored domain.Product
	svc := &CatalogService{repo: &mockCatalog{
		upsertFn: func(_ context.Context, p domain.Product) error {
			stored = p
			return nil
		},
	}}

	w := 200.0
	err := svc.Upsert(context.Background(), Product{
		Title: "Sofá Retrátil", Category: "Sala de Estar", Type: "Sofá", Price: 1999, Width: &w,
	})
	if err != nil {
		t.Fatal(err)
	}
	if stored.ID != catalogseed.ProductID("Sofá Retrátil") {
		t.Errorf("id = %q", stored.ID)
	}
	if stored.Width == nil || *stored.Width != 200 {
		t.Errorf("width = %v", stored.Width)
	}
}

func TestCatalogService_UpsertRejectsInvalid(t *testing.T) {
	svc := &CatalogService{repo: &mockCatalog{
		upsertFn: func(context.Context, domain.Product) error {
			t.Fatal("invalid product must not be stored")
			return nil
		},
	}}
	err := svc.Upsert(context.Background(), Product{Title: "Sem categoria", Price: 10})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
}

func TestCatalogService_GetNotFound(t *testing.T) {
	svc := &CatalogService{repo: &mockCatalog{
		findFn: func(context.Context, string) (domain.Product, error) {
			return domain.Product{}, domain.ErrNotFound
		},
	}}
	_, err := svc.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestCatalogService_SeedForce(t *testing.T) {
	var written int
	svc := &CatalogService{repo: &mockCatalog{
		countFn: func(context.Context) (int, error) { return 3, nil },
		upsertManyFn: func(_ context.Context, products []domain.Product) error {
			for _, p := range products {
				if p.ID == "" {
					t.Errorf("product %q has no id", p.Title)
				}
			}
			written += len(products)
			return nil
		},
	}}

	products := []Product{
		{Title: "Mesa Lateral", Category: "Sala de Estar", Type: "Mesa", Price: 150},
		{ID: "fixed", Title: "Puff", Category: "Sala de Estar", Type: "Puff", Price: 90},
	}

	res, err := svc.Seed(context.Background(), products, false)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped || written != 0 {
		t.Fatalf("without force: %+v, written %d", res, written)
	}

	res, err = svc.Seed(context.Background(), products, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped || res.Written != 2 || written != 2 {
		t.Errorf("with force: %+v, written %d", res, written)
	}
}
