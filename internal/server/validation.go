package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrMissingParameter is returned when a required query parameter is absent
var ErrMissingParameter = errors.New("missing required parameter")

func newValidator() *validator.Validate {
	validate := validator.New()

	// Opaque tokens from emailed links: URL-safe base64 and JWT characters only
	validate.RegisterValidation("token", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return false
		}
		for _, char := range value {
			if !((char >= 'a' && char <= 'z') ||
				(char >= 'A' && char <= 'Z') ||
				(char >= '0' && char <= '9') ||
				char == '-' ||
				char == '_' ||
				char == '.') {
				return false
			}
		}
		return true
	})

	return validate
}

// requireToken validates a token taken from the query string
func (s *Server) requireToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: token", ErrMissingParameter)
	}
	if err := s.validator.Var(token, "token"); err != nil {
		return fmt.Errorf("invalid token: %w", err)
	}
	return nil
}

// validationMessage turns validator errors into a short user facing message
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Please check the form and try again."
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, "enter a valid email address")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "eqfield":
			parts = append(parts, "passwords do not match")
		default:
			parts = append(parts, field+" is invalid")
		}
	}

	msg := strings.Join(parts, "; ")
	return strings.ToUpper(msg[:1]) + msg[1:] + "."
}
