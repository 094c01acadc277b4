package domain

// Guess is a classifier value with its confidence in [0,1].
type Guess struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Attributes are the visual descriptors extracted from the image.
type Attributes struct {
	Style    []string `json:"style"`
	Material []string `json:"material"`
	Color    []string `json:"color"`
}

// All returns style, material and color values in that order.
func (a Attributes) All() []string {
	out := make([]string, 0, len(a.Style)+len(a.Material)+len(a.Color))
	out = append(out, a.Style...)
	out = append(out, a.Material...)
	return append(out, a.Color...)
}

// Intent is the optional numeric preference stated in the prompt or inferred from the image.
type Intent struct {
	PriceMin        *float64 `json:"priceMin,omitempty" validate:"omitempty,gte=0"`
	PriceMax        *float64 `json:"priceMax,omitempty" validate:"omitempty,gte=0"`
	PreferredWidth  *float64 `json:"preferredWidth,omitempty" validate:"omitempty,gt=0"`
	PreferredHeight *float64 `json:"preferredHeight,omitempty" validate:"omitempty,gt=0"`
	PreferredDepth  *float64 `json:"preferredDepth,omitempty" validate:"omitempty,gt=0"`
}

// HasPrice reports whether a positive price bound is present.
func (i *Intent) HasPrice() bool {
	return i != nil && (positive(i.PriceMin) || positive(i.PriceMax))
}

// HasDimensions reports whether any positive preferred dimension is present.
func (i *Intent) HasDimensions() bool {
	return i != nil && (positive(i.PreferredWidth) || positive(i.PreferredHeight) || positive(i.PreferredDepth))
}

func positive(v *float64) bool { return v != nil && *v > 0 }

// ImageSignals is the structured output of image understanding. Immutable once produced.
type ImageSignals struct {
	CategoryGuess Guess      `json:"categoryGuess"`
	TypeGuess     Guess      `json:"typeGuess"`
	Keywords      []string   `json:"keywords" validate:"dive,required"`
	Attributes    Attributes `json:"attributes"`
	Intent        *Intent    `json:"intent,omitempty"`
}

// Validate checks confidences, keyword entries and intent bounds.
func (s *ImageSignals) Validate() error {
	return ValidateStruct(s)
}

// SearchCriteria is the store-facing projection of ImageSignals for one request.
type SearchCriteria struct {
	Category      string
	Type          string
	Keywords      []string
	MinCandidates int
	Limit         int
}

// IsEmpty reports whether no criterion can constrain a query.
func (c SearchCriteria) IsEmpty() bool {
	return c.Category == "" && c.Type == "" && len(c.Keywords) == 0
}
