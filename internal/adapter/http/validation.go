package http

import (
	"github.com/go-playground/validator/v10"

	"collateral-lending/pkg/units"
)

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error   string       `json:"error"`
	Reason  string       `json:"reason,omitempty"`
	Details []FieldError `json:"details,omitempty"`
}

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// ether amount as a decimal string, at most 18 places, non-negative
	_ = v.RegisterValidation("ether", func(fl validator.FieldLevel) bool {
		_, err := units.ParseEther(fl.Field().String())
		return err == nil
	})
	// ether amount strictly above zero
	_ = v.RegisterValidation("ether_positive", func(fl validator.FieldLevel) bool {
		wei, err := units.ParseEther(fl.Field().String())
		return err == nil && !wei.IsZero()
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Field()
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "ether":
			out = append(out, FieldError{Field: field, Message: "must be a non-negative ether amount with at most 18 decimal places"})
		case "ether_positive":
			out = append(out, FieldError{Field: field, Message: "must be an ether amount greater than zero"})
		case "eth_addr":
			out = append(out, FieldError{Field: field, Message: "must be a 0x-prefixed 20-byte hex address"})
		case "gt":
			out = append(out, FieldError{Field: field, Message: "must be greater than " + e.Param()})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}
