package db

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/shopsight/internal/domain/filter"
)

func TestIndexBuilder_CatalogShape(t *testing.T) {
	idx := NewIndex("shopsight:catalog:idx").
		Prefix("shopsight:product:").
		Language("portuguese").
		WeightedText("title", 2).
		Text("description").
		Tag("category").
		Tag("type").
		Numeric("price").
		MustBuild()

	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Fields) != 5 {
		t.Fatalf("fields count = %d, want 5", len(idx.Fields))
	}
	if !idx.HasTextFields() {
		t.Error("expected HasTextFields() = true")
	}
	if idx.Fields[0].TextWeight != 2 {
		t.Errorf("title weight = %v, want 2", idx.Fields[0].TextWeight)
	}
	if !idx.Fields[4].Sortable {
		t.Error("numeric fields are sortable")
	}
}

func TestIndexBuilder_TagOptions(t *testing.T) {
	idx := NewIndex("tag-idx").
		Prefix("t:").
		TagWithOpts("tags", "|", true).
		MustBuild()

	f := idx.Fields[0]
	if f.TagSeparator != "|" {
		t.Errorf("separator = %q, want |", f.TagSeparator)
	}
	if !f.TagCaseSensitive {
		t.Error("expected TagCaseSensitive=true")
	}
	if idx.HasTextFields() {
		t.Error("expected HasTextFields() = false")
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder func() (*IndexDefinition, error)
		wantErr string
	}{
		{
			name: "empty name",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("").Tag("x").Build()
			},
			wantErr: "index name is required",
		},
		{
			name: "no fields",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Build()
			},
			wantErr: "at least one field",
		},
		{
			name: "negative weight",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").WeightedText("title", -1).Build()
			},
			wantErr: "weight",
		},
		{
			name: "invalid characters",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx with spaces").Tag("x").Build()
			},
			wantErr: "invalid characters",
		},
		{
			name: "duplicate field",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Tag("type").Numeric("type").Build()
			},
			wantErr: "duplicate field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx := NewIndex("my-idx").
		Prefix("doc:").
		Language("portuguese").
		WeightedText("title", 1.5).
		Tag("cat").
		MustBuild()

	s := idx.String()
	if !strings.HasPrefix(s, "FT.CREATE my-idx ON HASH") {
		t.Errorf("unexpected prefix: %q", s)
	}
	for _, want := range []string{"LANGUAGE portuguese", "title TEXT WEIGHT 1.5", "cat TAG"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestTextQuery_HasText(t *testing.T) {
	if (&TextQuery{}).HasText() {
		t.Error("empty query has no text")
	}
	if (&TextQuery{Terms: []string{"", ""}}).HasText() {
		t.Error("blank terms have no text")
	}
	if !(&TextQuery{Terms: []string{"", "veludo"}}).HasText() {
		t.Error("expected text from terms")
	}
	if !(&TextQuery{Query: "sofa"}).HasText() {
		t.Error("expected text from query")
	}
}

func TestProject(t *testing.T) {
	fields := map[string]string{"title": "Sofá", "price": "2499", "category": "Sala"}
	got := Project(fields, []string{"title", "missing"})
	if len(got) != 1 || got["title"] != "Sofá" {
		t.Errorf("Project() = %v", got)
	}
	if all := Project(fields, nil); len(all) != 3 {
		t.Errorf("Project(nil) = %v", all)
	}
}

func TestFilterQuery_CarriesExpression(t *testing.T) {
	m, _ := filter.NewMatch("type", "Sofá")
	expr, _ := filter.NewExpression([]filter.Condition{m}, nil, nil)
	q := &FilterQuery{IndexName: "idx", KeyPrefix: "p:", Filters: expr, Limit: 10}
	if q.Filters.IsEmpty() {
		t.Error("expected non-empty filter")
	}
}
