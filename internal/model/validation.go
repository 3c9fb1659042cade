package model

import (
	"github.com/go-playground/validator/v10"
)

// RegisterValidations adds the closed-enum checks to gin's binding
// validator so bad values are rejected at bind time.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return Role(fl.Field().String()).Valid()
	})
}
