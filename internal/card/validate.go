package card

import "strings"

// Length bounds for free-text fields.
const (
	MaxTitleLen       = 100
	MaxDescriptionLen = 500
)

// FieldError is a per-field validation failure. Field matches one of the
// Field* constants so callers can route focus and inline messages.
type FieldError struct {
	Field   string
	Message string
}

// Validate checks a draft against the field rules and returns one error per
// failing field, in field order. An empty result means the draft is
// submittable. Whitespace-only required fields count as absent.
func Validate(d Draft) []FieldError {
	var errs []FieldError

	title := strings.TrimSpace(d.Title)
	switch {
	case title == "":
		errs = append(errs, FieldError{FieldTitle, "Title is required"})
	case len([]rune(title)) > MaxTitleLen:
		errs = append(errs, FieldError{FieldTitle, "Title must be at most 100 characters"})
	}

	if strings.TrimSpace(d.CardType) == "" {
		errs = append(errs, FieldError{FieldType, "Type is required"})
	}
	if strings.TrimSpace(d.Subtype) == "" {
		errs = append(errs, FieldError{FieldSubtype, "Subtype is required"})
	}

	if len([]rune(d.Description)) > MaxDescriptionLen {
		errs = append(errs, FieldError{FieldDescription, "Description must be at most 500 characters"})
	}

	return errs
}
