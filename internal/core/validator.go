package core

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"tokenpoint/internal/types"
)

// Validator wraps go-playground/validator and translates its failures into
// the platform's structured validation errors.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the platform's custom tags
// registered.
func NewValidator() *Validator {
	v := validator.New()

	// token_type accepts the known utility token types.
	_ = v.RegisterValidation("token_type", func(fl validator.FieldLevel) bool {
		return types.TokenType(fl.Field().String()).Valid()
	})

	return &Validator{validate: v}
}

// ValidateStruct checks the struct's validate tags and returns a
// field-keyed AppError on failure.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return types.NewAppError(types.ErrCodeValidationInvalidField, "request validation failed", err)
	}

	fields := make(map[string]any, len(verrs))
	code := types.ErrCodeValidationInvalidField
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			code = types.ErrCodeValidationMissingField
			fields[name] = "is required"
		case "token_type":
			fields[name] = "must be one of electricity, water, gas, solar"
		case "gt", "gte", "min":
			fields[name] = "must be at least " + fe.Param()
		default:
			fields[name] = "failed " + fe.Tag() + " validation"
		}
	}

	return types.NewAppErrorWithDetails(code, "request validation failed", nil, fields)
}
