package validators

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// category names start with a letter or digit and carry no control characters
var categoryNamePattern = regexp.MustCompile(`^[\p{L}\p{N}][^\p{Cc}]*$`)

// ValidateNameFormat checks if the provided name follows the category naming rule.
func ValidateNameFormat(name string) bool {
	return categoryNamePattern.MatchString(strings.TrimSpace(name))
}

// New returns a validator with the catalog's custom tags registered.
func New() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("category_name", func(fl validator.FieldLevel) bool {
		return ValidateNameFormat(fl.Field().String())
	})
	return v
}
