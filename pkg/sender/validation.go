package sender

import (
	"context"
	"fmt"

	"github.com/beevik/etree"
	"github.com/sirosfoundation/go-as4sender/pkg/message"
)

// PayloadValidator checks a business payload before it is wrapped. A
// returned error means validation could not run; findings go in the results.
type PayloadValidator interface {
	Validate(ctx context.Context, docType message.Identifier, payload *etree.Element) ([]ValidationResult, error)
}

// PayloadValidatorFunc adapts a function to PayloadValidator
type PayloadValidatorFunc func(ctx context.Context, docType message.Identifier, payload *etree.Element) ([]ValidationResult, error)

// Validate implements PayloadValidator
func (f PayloadValidatorFunc) Validate(ctx context.Context, docType message.Identifier, payload *etree.Element) ([]ValidationResult, error) {
	return f(ctx, docType, payload)
}

// ValidationHandler decides what happens with validation results. OnErrors
// returning nil lets the send continue despite errors; a nil OnErrors raises
// like RaisingValidationHandler.
type ValidationHandler struct {
	OnSuccess func(results []ValidationResult)
	OnErrors  func(results []ValidationResult) error
}

// RaisingValidationHandler fails the send with a ValidationError whenever
// a result has LevelError. It is the default.
func RaisingValidationHandler() ValidationHandler {
	return ValidationHandler{
		OnErrors: func(results []ValidationResult) error {
			return &ValidationError{Results: results}
		},
	}
}

// RequiredPathsValidator reports an error for every etree path that selects
// nothing in the payload. Paths are relative to the payload root element.
type RequiredPathsValidator struct {
	paths []etree.Path
	raw   []string
}

// NewRequiredPathsValidator compiles paths such as "./cbc:ID"
func NewRequiredPathsValidator(paths ...string) (*RequiredPathsValidator, error) {
	v := &RequiredPathsValidator{raw: paths}
	for _, p := range paths {
		compiled, err := etree.CompilePath(p)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", p, err)
		}
		v.paths = append(v.paths, compiled)
	}
	return v, nil
}

// Validate implements PayloadValidator
func (v *RequiredPathsValidator) Validate(_ context.Context, _ message.Identifier, payload *etree.Element) ([]ValidationResult, error) {
	var results []ValidationResult
	for i, p := range v.paths {
		if payload.FindElementPath(p) == nil {
			results = append(results, ValidationResult{
				Level:    LevelError,
				Location: v.raw[i],
				Text:     "required element is missing",
			})
		}
	}
	return results, nil
}
