package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "gatehouse/pkg/domain-errors"
	s "gatehouse/pkg/string"
)

var (
	// Mainland mobile numbers or E.164-style international numbers.
	phonePattern    = regexp.MustCompile(`^(1[3-9]\d{9}|\+\d{1,3}\d{10,14})$`)
	personNameChars = regexp.MustCompile(`^[\p{Han}a-zA-Z\s]+$`)
)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNameChars.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks req's struct tags and returns a CodeValidation domain
// error describing the first failing field.
func Validate(req any) error {
	if err := defaultValidator.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeValidation, ErrorMessage(err))
	}
	return nil
}

// FieldErrors maps every failing field (snake_case) to its messages.
func FieldErrors(err error) map[string][]string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}
	out := make(map[string][]string, len(validationErrs))
	for _, fe := range validationErrs {
		field := fieldName(fe)
		out[field] = append(out[field], describe(fe))
	}
	return out
}

// ValidateFields is Validate but also returns per-field messages for forms.
func ValidateFields(req any) (map[string][]string, error) {
	err := defaultValidator.Struct(req)
	if err == nil {
		return nil, nil
	}
	return FieldErrors(err), dErrors.New(dErrors.CodeValidation, ErrorMessage(err))
}

// ErrorMessage converts a validator error into a human-readable message.
func ErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "invalid request body"
	}
	return describe(validationErrs[0])
}

func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		name = fe.StructField()
	}
	return s.ToSnakeCase(name)
}

func describe(fe validator.FieldError) string {
	field := fieldName(fe)
	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "url":
		return fmt.Sprintf("%s must be a valid url", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", field)
	case "personname":
		return fmt.Sprintf("%s may only contain letters and spaces", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
