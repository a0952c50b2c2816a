package core

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxTextLength bounds a text message in characters.
const MaxTextLength = 5000

var validate = validator.New()

// Payload is the content of a message being sent.
// Exactly one of Text and Image must be set. Image is either a stored
// reference or raw upload data understood by the configured MediaStore.
type Payload struct {
	Text  string `json:"text,omitempty" validate:"required_without=Image,excluded_with=Image,max=5000"`
	Image string `json:"image,omitempty" validate:"required_without=Text,excluded_with=Text"`
}

// Normalize trims surrounding whitespace from the text.
func (p Payload) Normalize() Payload {
	p.Text = strings.TrimSpace(p.Text)
	p.Image = strings.TrimSpace(p.Image)
	return p
}

// ValidatePayload enforces the exactly-one-of rule on a normalized payload.
func ValidatePayload(p Payload) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return validationError("%v", err)
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required_without":
		return validationError("message must contain text or an image")
	case "excluded_with":
		return validationError("message must contain either text or an image, not both")
	case "max":
		return validationError("text exceeds %d characters", MaxTextLength)
	default:
		return validationError("invalid %s", strings.ToLower(fe.Field()))
	}
}
