// Package errors provides standardized error types and helpers for the annotconv codebase.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
	// ErrStructuralFormat indicates input that violates the structure of its format
	ErrStructuralFormat = errors.New("structural format error")
	// ErrSpanValidation indicates annotations whose spans are not canonical
	ErrSpanValidation = errors.New("span validation error")
	// ErrChainIntegrity indicates a chain invariant broken at write time
	ErrChainIntegrity = errors.New("chain integrity error")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "codec", "annotation", "document")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "JSON", "CoNLL-U")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// StructuralFormatError reports input that cannot be interpreted in its format:
// an unmatched bracket, an unknown bracket shape, or missing token structure.
// It aborts the current document.
type StructuralFormatError struct {
	Format  string // Format being read or written (e.g., "CoNLL-Coref")
	Line    int    // 1-based input line, 0 if not applicable
	Token   string // Offending token or field
	ChainID string // Chain identifier involved, if any
	Message string
}

func (e *StructuralFormatError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Format)
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.ChainID != "" {
		fmt.Fprintf(&sb, " (chain %s)", e.ChainID)
	}
	if e.Token != "" {
		fmt.Fprintf(&sb, " at token %q", e.Token)
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, " on line %d", e.Line)
	}
	return sb.String()
}

func (e *StructuralFormatError) Unwrap() error {
	return ErrStructuralFormat
}

// SpanIssue describes one annotation whose span list is not canonical.
type SpanIssue struct {
	AnnotationID int
	Type         string
	Original     string // Original spans, formatted
	Consolidated string // Spans after consolidation, formatted
	Overlap      bool   // True if at least two spans overlapped
}

func (i SpanIssue) String() string {
	reason := "contiguous spans"
	if i.Overlap {
		reason = "overlapping spans"
	}
	return fmt.Sprintf("annotation %d (%s): %s %s -> %s", i.AnnotationID, i.Type, reason, i.Original, i.Consolidated)
}

// SpanValidationError collects every annotation found with overlapping or
// contiguous discontinuous spans so that all of them can be reported at once.
type SpanValidationError struct {
	Document string
	Issues   []SpanIssue
}

func (e *SpanValidationError) Error() string {
	var sb strings.Builder
	if e.Document != "" {
		fmt.Fprintf(&sb, "%s: ", e.Document)
	}
	fmt.Fprintf(&sb, "%d annotation(s) with invalid spans", len(e.Issues))
	for _, issue := range e.Issues {
		sb.WriteString("\n  ")
		sb.WriteString(issue.String())
	}
	return sb.String()
}

func (e *SpanValidationError) Unwrap() error {
	return ErrSpanValidation
}

// ChainIntegrityError reports a contradiction discovered while encoding chains,
// such as two mentions of one chain occupying exactly the same tokens.
type ChainIntegrityError struct {
	ChainID string
	Token   string
	Message string
}

func (e *ChainIntegrityError) Error() string {
	if e.Token != "" {
		return fmt.Sprintf("chain %s: %s at token %q", e.ChainID, e.Message, e.Token)
	}
	return fmt.Sprintf("chain %s: %s", e.ChainID, e.Message)
}

func (e *ChainIntegrityError) Unwrap() error {
	return ErrChainIntegrity
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// NewStructural creates a StructuralFormatError
func NewStructural(format string, line int, token, message string) *StructuralFormatError {
	return &StructuralFormatError{
		Format:  format,
		Line:    line,
		Token:   token,
		Message: message,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
