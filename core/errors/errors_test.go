package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		wantMsg  string
		wantBase error
	}{
		{
			name:     "with ID",
			err:      &NotFoundError{Resource: "codec", ID: "brat"},
			wantMsg:  "codec not found: brat",
			wantBase: ErrNotFound,
		},
		{
			name:     "without ID",
			err:      &NotFoundError{Resource: "annotation"},
			wantMsg:  "annotation not found",
			wantBase: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.Unwrap(); !errors.Is(got, tt.wantBase) {
				t.Errorf("Unwrap() = %v, want %v", got, tt.wantBase)
			}
		})
	}

	t.Run("with underlying error", func(t *testing.T) {
		underlyingErr := fmt.Errorf("disk error")
		err := &NotFoundError{Resource: "file", ID: "doc.txt", Err: underlyingErr}
		if got := err.Unwrap(); got != underlyingErr {
			t.Errorf("Unwrap() = %v, want %v", got, underlyingErr)
		}
	})
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ValidationError
		wantMsg string
	}{
		{
			name:    "with field",
			err:     &ValidationError{Field: "spans", Message: "must not be empty"},
			wantMsg: "validation failed for spans: must not be empty",
		},
		{
			name:    "without field",
			err:     &ValidationError{Message: "invalid format"},
			wantMsg: "validation failed: invalid format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, ErrInvalidInput) {
				t.Errorf("expected ValidationError to match ErrInvalidInput")
			}
		})
	}
}

func TestIOError(t *testing.T) {
	base := fmt.Errorf("permission denied")
	err := NewIO("read", "/tmp/doc.txt", base)
	if got, want := err.Error(), "failed to read /tmp/doc.txt: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, base) {
		t.Error("IOError should unwrap to its cause")
	}

	noPath := &IOError{Operation: "write", Err: base}
	if got, want := noPath.Error(), "failed to write: permission denied"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestParseError(t *testing.T) {
	err := NewParse("JSON", "doc.json", "unexpected EOF")
	if got, want := err.Error(), "failed to parse JSON at doc.json: unexpected EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ParseError should match ErrInvalidInput")
	}
}

func TestUnsupportedError(t *testing.T) {
	err := NewUnsupported("format", "conllu cannot be written")
	if got, want := err.Error(), "unsupported format: conllu cannot be written"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrUnsupported) {
		t.Error("UnsupportedError should match ErrUnsupported")
	}
}

func TestStructuralFormatError(t *testing.T) {
	err := &StructuralFormatError{
		Format:  "CoNLL-Coref",
		Line:    12,
		Token:   "9)",
		ChainID: "9",
		Message: "closing bracket without matching open",
	}
	want := `CoNLL-Coref: closing bracket without matching open (chain 9) at token "9)" on line 12`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrStructuralFormat) {
		t.Error("StructuralFormatError should match ErrStructuralFormat")
	}

	short := NewStructural("CoNLL-Coref", 0, "", "no sentence annotations")
	if got, want := short.Error(), "CoNLL-Coref: no sentence annotations"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestSpanValidationError(t *testing.T) {
	err := &SpanValidationError{
		Document: "11532192",
		Issues: []SpanIssue{
			{AnnotationID: 3, Type: "Noun phrase", Original: "[4,9) [10,15)", Consolidated: "[4,15)"},
			{AnnotationID: 7, Type: "Noun phrase", Original: "[0,5) [3,8)", Consolidated: "[0,8)", Overlap: true},
		},
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "11532192: 2 annotation(s) with invalid spans") {
		t.Errorf("unexpected message header: %q", msg)
	}
	if !strings.Contains(msg, "annotation 3 (Noun phrase): contiguous spans [4,9) [10,15) -> [4,15)") {
		t.Errorf("missing contiguous issue in %q", msg)
	}
	if !strings.Contains(msg, "annotation 7 (Noun phrase): overlapping spans") {
		t.Errorf("missing overlap issue in %q", msg)
	}
	if !errors.Is(err, ErrSpanValidation) {
		t.Error("SpanValidationError should match ErrSpanValidation")
	}
}

func TestChainIntegrityError(t *testing.T) {
	err := &ChainIntegrityError{ChainID: "4", Token: "pressure", Message: "duplicate mention"}
	if got, want := err.Error(), `chain 4: duplicate mention at token "pressure"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrChainIntegrity) {
		t.Error("ChainIntegrityError should match ErrChainIntegrity")
	}
}

func TestWrap(t *testing.T) {
	t.Run("wraps error", func(t *testing.T) {
		baseErr := fmt.Errorf("base error")
		wrapped := Wrap(baseErr, "context message")
		if !errors.Is(wrapped, baseErr) {
			t.Errorf("Wrap() error does not unwrap to base error")
		}
		if got, want := wrapped.Error(), "context message: base error"; got != want {
			t.Errorf("Wrap() = %q, want %q", got, want)
		}
	})

	t.Run("nil error returns nil", func(t *testing.T) {
		if got := Wrap(nil, "context"); got != nil {
			t.Errorf("Wrap(nil) = %v, want nil", got)
		}
		if got := Wrapf(nil, "context %s", "x"); got != nil {
			t.Errorf("Wrapf(nil) = %v, want nil", got)
		}
	})

	t.Run("wrapf formats", func(t *testing.T) {
		wrapped := Wrapf(&StructuralFormatError{Format: "CoNLL-Coref", Message: "x"}, "document %s", "d1")
		if !Is(wrapped, ErrStructuralFormat) {
			t.Error("Wrapf() lost the sentinel chain")
		}
		var sfe *StructuralFormatError
		if !As(wrapped, &sfe) {
			t.Error("As() failed to find StructuralFormatError")
		}
	})
}
