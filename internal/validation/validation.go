package validation

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct validates a request struct against its validate tags.
func Struct(s interface{}) error {
	return validate.Struct(s)
}

// FirstError returns the first field error message, or the raw error text
// when the error is not a validator error.
func FirstError(err error) string {
	if err == nil {
		return ""
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return verrs[0].Error()
	}
	return err.Error()
}
