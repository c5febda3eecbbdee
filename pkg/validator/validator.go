package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/lalabot/delivery-api/pkg/errors"
)

// Validator wraps go-playground/validator for struct validation outside of
// gin's request binding (config structs, service inputs).
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate checks the struct's `validate` tags and converts the first
// failure into a ValidationError with a readable field message.
func (va *Validator) Validate(obj interface{}) error {
	err := va.v.Struct(obj)
	if err == nil {
		return nil
	}

	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		first := errs[0]
		return apperrors.Validation(fmt.Sprintf("field %s failed on %s", first.Field(), first.Tag()))
	}
	return apperrors.Validation(err.Error())
}

// Var validates a single value against a rule string.
func (va *Validator) Var(value interface{}, rule string) error {
	if err := va.v.Var(value, rule); err != nil {
		return apperrors.Validation(fmt.Sprintf("value failed on %s", rule))
	}
	return nil
}
