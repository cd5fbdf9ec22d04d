package ir

import (
	"unicode"

	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/internal/logging"
)

// ConsolidateSpans returns the canonical form of a discontinuous span list.
// Spans are sorted; overlapping neighbours are replaced by their union, and
// neighbours separated only by whitespace in text are spliced into one span.
// overlap reports whether any union was taken.
//
// The input slice is not modified.
func ConsolidateSpans(spans []Span, text string) (out []Span, overlap bool) {
	if len(spans) == 0 {
		return nil, false
	}
	sorted := append([]Span(nil), spans...)
	SortSpans(sorted)

	out = make([]Span, 0, len(sorted))
	cur := sorted[0]
	for _, next := range sorted[1:] {
		switch {
		case cur.End > next.Start:
			overlap = true
			if next.End > cur.End {
				cur.End = next.End
			}
		case whitespaceOnly(text, cur.End, next.Start):
			cur.End = next.End
		default:
			out = append(out, cur)
			cur = next
		}
	}
	return append(out, cur), overlap
}

// whitespaceOnly reports whether text[from:to] contains no non-whitespace
// character. A gap that falls outside the text cannot be checked and is
// treated as content.
func whitespaceOnly(text string, from, to int) bool {
	if from < 0 || to > len(text) || from > to {
		return false
	}
	for _, r := range text[from:to] {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// CheckSpans runs ConsolidateSpans over every multi-span annotation of the
// document and returns one issue per annotation whose spans would change.
// The document is not modified.
func CheckSpans(d *Document) []errors.SpanIssue {
	var issues []errors.SpanIssue
	for _, a := range d.Annotations() {
		if len(a.Spans) < 2 {
			continue
		}
		consolidated, overlap := ConsolidateSpans(a.Spans, d.Text)
		if CompareSpanLists(consolidated, a.Spans) == 0 {
			continue
		}
		issues = append(issues, errors.SpanIssue{
			AnnotationID: int(a.ID),
			Type:         a.Type,
			Original:     FormatSpans(a.Spans),
			Consolidated: FormatSpans(consolidated),
			Overlap:      overlap,
		})
	}
	return issues
}

// ValidateSpans returns a *errors.SpanValidationError listing every
// annotation with non-canonical spans, or nil if there are none.
func ValidateSpans(d *Document) error {
	issues := CheckSpans(d)
	if len(issues) == 0 {
		return nil
	}
	return &errors.SpanValidationError{Document: d.SourceID, Issues: issues}
}

// RepairSpans replaces the spans of every non-canonical multi-span annotation
// with their consolidated form and returns the issues that were repaired.
func RepairSpans(d *Document) []errors.SpanIssue {
	issues := CheckSpans(d)
	for _, issue := range issues {
		a := d.Get(AnnotationID(issue.AnnotationID))
		consolidated, overlap := ConsolidateSpans(a.Spans, d.Text)
		if overlap {
			logging.Warn("overlapping spans merged",
				"document", d.SourceID,
				"annotation", issue.AnnotationID,
				"type", a.Type)
		}
		logging.SpanRepair(d.SourceID, issue.AnnotationID, issue.Original, issue.Consolidated)
		a.Spans = consolidated
	}
	return issues
}
