package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/shopsight/internal/domain"
)

// Hash field names of a stored product.
const (
	fieldID          = "id"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldCategory    = "category"
	fieldType        = "type"
	fieldPrice       = "price"
	fieldWidth       = "width"
	fieldHeight      = "height"
	fieldDepth       = "depth"
)

// returnFields is the projection used by every product query.
var returnFields = []string{
	fieldID, fieldTitle, fieldDescription, fieldCategory, fieldType,
	fieldPrice, fieldWidth, fieldHeight, fieldDepth,
}

// productToHash converts a Product to a map for HSET. Absent dimensions are omitted.
func productToHash(p domain.Product) map[string]string {
	m := map[string]string{
		fieldID:          p.ID,
		fieldTitle:       p.Title,
		fieldDescription: p.Description,
		fieldCategory:    p.Category,
		fieldType:        p.Type,
		fieldPrice:       formatFloat(p.Price),
	}
	putDim(m, fieldWidth, p.Width)
	putDim(m, fieldHeight, p.Height)
	putDim(m, fieldDepth, p.Depth)
	return m
}

// productFromHash hydrates a Product from a hash. fallbackID is used when the hash lacks an id
// field (documents written by older tooling). The result is not validated.
func productFromHash(m map[string]string, fallbackID string) (domain.Product, error) {
	p := domain.Product{
		ID:          strings.TrimSpace(m[fieldID]),
		Title:       strings.TrimSpace(m[fieldTitle]),
		Description: m[fieldDescription],
		Category:    strings.TrimSpace(m[fieldCategory]),
		Type:        strings.TrimSpace(m[fieldType]),
	}
	if p.ID == "" {
		p.ID = fallbackID
	}

	if raw := m[fieldPrice]; raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Product{}, fmt.Errorf("invalid price %q: %w", raw, err)
		}
		p.Price = price
	}

	var err error
	if p.Width, err = parseDim(m, fieldWidth); err != nil {
		return domain.Product{}, err
	}
	if p.Height, err = parseDim(m, fieldHeight); err != nil {
		return domain.Product{}, err
	}
	if p.Depth, err = parseDim(m, fieldDepth); err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

func putDim(m map[string]string, name string, v *float64) {
	if v != nil {
		m[name] = formatFloat(*v)
	}
}

func parseDim(m map[string]string, name string) (*float64, error) {
	raw, ok := m[name]
	if !ok || raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return &v, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
