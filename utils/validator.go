package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStruct validates a struct's `validate` tags and returns a
// ValidationError with human-readable field messages.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var msgs []string
	for _, err := range err.(validator.ValidationErrors) {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, field+" must be at least "+param)
		case "max":
			msgs = append(msgs, field+" must be at most "+param)
		case "oneof":
			msgs = append(msgs, field+" must be one of: "+param)
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "e164":
			msgs = append(msgs, field+" must be an E.164 phone number")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}

	return &ValidationError{Msg: strings.Join(msgs, ", ")}
}
