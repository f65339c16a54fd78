package dto

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// maxPasswordBytes is the most bcrypt will hash.
const maxPasswordBytes = 72

// RulePasswordBytes rejects passwords longer than bcrypt accepts. The stock
// max rule counts runes, not bytes.
const RulePasswordBytes = "bcryptmax"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation(RulePasswordBytes, func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= maxPasswordBytes
	})
	return v
}

type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError is the failure branch of Validate; it lists every field
// that did not pass.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field+" ("+f.Rule+")")
	}
	return "validation failed: " + strings.Join(names, ", ")
}

// Validate checks the struct tags of input. It returns nil or a
// *ValidationError; any other error means input was not a struct.
func Validate(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field: lowerFirst(fe.Field()),
			Rule:  fe.Tag(),
		})
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
