package httpx

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// Invalid converts a payload validation error into a 400 Failure listing the offending
// fields and the rule each one broke.
func Invalid(err error, message string) *Failure {
	f := Fail(ErrValidation, "BAD_PAYLOAD", message)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return f
	}
	fields := make(map[string]string, len(verrs))
	for _, fieldErr := range verrs {
		fields[fieldErr.Field()] = fieldErr.Tag()
	}
	return f.With("fields", fields)
}
