package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"aigrowth/internal/types"
)

// Validator wraps go-playground/validator and reports failures as
// validation AppErrors keyed by JSON field name.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator reports field paths by their json names.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct returns nil or an AppError whose details map each failing
// field to the rule it broke.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.logger.Error("validator misuse", "error", err)
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation failed", err)
	}

	root := reflect.TypeOf(s)
	if root.Kind() == reflect.Pointer {
		root = root.Elem()
	}
	details := make(map[string]any, len(fieldErrs))
	code := types.ErrCodeValidationInvalidPayload
	for _, fe := range fieldErrs {
		field := strings.TrimPrefix(fe.Namespace(), root.Name()+".")
		details[field] = fe.Tag()
		switch fe.Tag() {
		case "email":
			code = types.ErrCodeValidationInvalidEmail
		case "required":
			if code == types.ErrCodeValidationInvalidPayload {
				code = types.ErrCodeValidationMissingField
			}
		}
	}
	return types.NewAppErrorWithDetails(code, "invalid request", err, details)
}
