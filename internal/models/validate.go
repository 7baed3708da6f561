package models

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that also understands the "notblank" tag:
// the string must contain something other than whitespace.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}
