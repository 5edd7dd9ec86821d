package core

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ToFood/tofood-zip/internal/types"
)

// Validator wraps go-playground/validator and reports failures as
// validation AppErrors keyed by JSON field name.
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

// NewValidator builds a Validator that names fields by their json tag.
func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{validate: v, logger: logger}
}

// ValidateStruct validates s. The first failing field decides the error
// code; every failing field is listed in the details.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		if v.logger != nil {
			v.logger.Error("struct validation could not run", "error", err)
		}
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	fields := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}

	first := fieldErrs[0]
	code := types.ErrCodeValidationInvalidField
	msg := "invalid value for field " + first.Field()
	if first.Tag() == "required" {
		code = types.ErrCodeValidationMissingField
		msg = first.Field() + " is required"
	}
	return types.NewAppError(code, msg, err).WithDetails(map[string]any{"fields": fields})
}
