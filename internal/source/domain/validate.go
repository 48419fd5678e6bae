package domain

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
)

const (
	msgRequired     = "This field is required."
	msgInvalidSlug  = "Enter a valid slug consisting of letters, numbers, underscores or hyphens."
	msgInvalidMode  = "Not a valid choice."
	msgInvalidValue = "Invalid value."
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slug.IsSlug(fl.Field().String())
	})
	_ = v.RegisterValidation("user_matching_mode", func(fl validator.FieldLevel) bool {
		return UserMatchingMode(fl.Field().String()).Valid()
	})
	return v
}

// Validate applies the required-field policy to src. It returns a
// *ValidationError naming every failing field.
func Validate(src Source) error {
	err := validate.Struct(src)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range fieldErrs {
		field := fe.Field()
		if i := strings.IndexByte(field, '['); i > 0 {
			field = field[:i]
		}
		out.Add(field, message(fe.Tag()))
	}
	return out
}

func message(tag string) string {
	switch tag {
	case "required", "min":
		return msgRequired
	case "slug":
		return msgInvalidSlug
	case "user_matching_mode":
		return msgInvalidMode
	default:
		return msgInvalidValue
	}
}
