package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the `validate` tags of a request DTO. The error lists the
// offending JSON field names, e.g. "invalid fields: email, password".
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, jsonName(fe.Field()))
	}
	return fmt.Errorf("invalid fields: %s", strings.Join(fields, ", "))
}

// jsonName converts the Go field name reported by the validator into the
// snake_case name used on the wire.
func jsonName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
