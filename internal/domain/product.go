package domain

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Product is a catalog entity. It is owned by the store and read-only to the ranking pipeline.
type Product struct {
	ID          string   `json:"id" validate:"required"`
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Category    string   `json:"category" validate:"required"`
	Type        string   `json:"type" validate:"required"`
	Price       float64  `json:"price" validate:"gte=0"`
	Width       *float64 `json:"width,omitempty" validate:"omitempty,gt=0"`
	Height      *float64 `json:"height,omitempty" validate:"omitempty,gt=0"`
	Depth       *float64 `json:"depth,omitempty" validate:"omitempty,gt=0"`
}

// Validate checks the product shape. Documents failing it never reach the scorer.
func (p *Product) Validate() error {
	return ValidateStruct(p)
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateStruct runs tag validation and flattens the failures into one ErrValidation.
func ValidateStruct(s any) error {
	err := validatorInstance().Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the concrete type
	if !ok {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}
