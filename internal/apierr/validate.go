package apierr

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their json names.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FromValidation turns the first validator failure into an INVALID_ARGUMENT error.
func FromValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return Invalid("%v", err)
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return Invalid("%s is required", fe.Field())
	case "oneof":
		return Invalid("%s must be one of [%s]", fe.Field(), fe.Param())
	case "max":
		return Invalid("%s exceeds maximum of %s", fe.Field(), fe.Param())
	case "datetime":
		return Invalid("%s must be formatted as %s", fe.Field(), fe.Param())
	default:
		return Invalid("%s is invalid", fe.Field())
	}
}
