package ir

import (
	"errors"
	"fmt"
)

// validateAnnotationFn is injectable for testing error type handling.
var validateAnnotationFn = ValidateAnnotation

// ValidationError represents a validation error with context.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// newValidationError creates a new ValidationError.
func newValidationError(path, message string) error {
	return &ValidationError{Path: path, Message: message}
}

// ValidateDocument validates every annotation of a document and returns all
// validation errors. Span canonical form is checked separately by ValidateSpans.
func ValidateDocument(d *Document) []error {
	var errs []error

	for _, a := range d.Annotations() {
		annPath := fmt.Sprintf("annotations[%d]", a.ID)
		for _, err := range validateAnnotationFn(d, a) {
			var ve *ValidationError
			if errors.As(err, &ve) {
				errs = append(errs, newValidationError(
					fmt.Sprintf("%s.%s", annPath, ve.Path), ve.Message))
			} else {
				errs = append(errs, newValidationError(annPath, err.Error()))
			}
		}
	}

	return errs
}

// ValidateAnnotation validates one annotation against its document and returns
// all validation errors.
func ValidateAnnotation(d *Document, a *Annotation) []error {
	var errs []error

	if a.Type == "" {
		errs = append(errs, newValidationError("type", "Type is required"))
	}

	if len(a.Spans) == 0 {
		errs = append(errs, newValidationError("spans", "at least one span is required"))
	}

	for i, s := range a.Spans {
		spanPath := fmt.Sprintf("spans[%d]", i)
		if !s.Valid() {
			errs = append(errs, newValidationError(spanPath,
				fmt.Sprintf("invalid span %s: start must be non-negative and before end", s)))
			continue
		}
		if s.End > len(d.Text) {
			errs = append(errs, newValidationError(spanPath,
				fmt.Sprintf("span %s exceeds text length %d", s, len(d.Text))))
		}
		if i > 0 && CompareSpans(a.Spans[i-1], s) >= 0 {
			errs = append(errs, newValidationError(spanPath,
				fmt.Sprintf("span %s is not after %s", s, a.Spans[i-1])))
		}
	}

	for i, slot := range a.Slots {
		slotPath := fmt.Sprintf("slots[%d]", i)
		if slot.Name == "" {
			errs = append(errs, newValidationError(slotPath, "Name is required"))
		}
		seen := make(map[AnnotationID]bool, len(slot.Members))
		for _, id := range slot.Members {
			switch {
			case id == a.ID:
				errs = append(errs, newValidationError(slotPath,
					"annotation cannot be a member of its own slot"))
			case d.Get(id) == nil:
				errs = append(errs, newValidationError(slotPath,
					fmt.Sprintf("member %d does not exist", id)))
			case seen[id]:
				errs = append(errs, newValidationError(slotPath,
					fmt.Sprintf("member %d listed twice", id)))
			}
			seen[id] = true
		}
	}

	return errs
}
