package ir

import (
	"fmt"
	"sort"
	"strings"
)

// Span is a half-open byte offset range [Start, End) over the document text.
type Span struct {
	Start int
	End   int
}

// Valid reports whether the span is non-empty and starts at a non-negative offset.
func (s Span) Valid() bool {
	return s.Start >= 0 && s.Start < s.End
}

// Len returns the length of the span in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether the two spans share at least one offset.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Contains reports whether offset lies inside the span.
func (s Span) Contains(offset int) bool {
	return offset >= s.Start && offset < s.End
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// CompareSpans orders spans by start offset, then by end offset.
func CompareSpans(a, b Span) int {
	switch {
	case a.Start < b.Start:
		return -1
	case a.Start > b.Start:
		return 1
	case a.End < b.End:
		return -1
	case a.End > b.End:
		return 1
	}
	return 0
}

// CompareSpanLists orders span lists lexicographically using CompareSpans.
// A list that is a prefix of another sorts first.
func CompareSpanLists(a, b []Span) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := CompareSpans(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// SortSpans sorts spans in place in ascending order.
func SortSpans(spans []Span) {
	sort.Slice(spans, func(i, j int) bool {
		return CompareSpans(spans[i], spans[j]) < 0
	})
}

// FormatSpans renders a span list as "[s,e) [s,e)".
func FormatSpans(spans []Span) string {
	parts := make([]string, len(spans))
	for i, s := range spans {
		parts[i] = s.String()
	}
	return strings.Join(parts, " ")
}

// SpanKey returns a string that is equal for equal span lists.
func SpanKey(spans []Span) string {
	var sb strings.Builder
	for i, s := range spans {
		if i > 0 {
			sb.WriteByte(';')
		}
		fmt.Fprintf(&sb, "%d-%d", s.Start, s.End)
	}
	return sb.String()
}

// Cover returns the smallest single span that contains every span in the list.
func Cover(spans []Span) Span {
	if len(spans) == 0 {
		return Span{}
	}
	out := spans[0]
	for _, s := range spans[1:] {
		if s.Start < out.Start {
			out.Start = s.Start
		}
		if s.End > out.End {
			out.End = s.End
		}
	}
	return out
}
