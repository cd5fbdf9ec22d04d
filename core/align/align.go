// Package align maps annotation span boundaries onto token boundaries.
//
// Annotation spans are drawn independently of tokenization, so a boundary may
// fall inside a token. The aligner resolves such boundaries to the token that
// overlaps the offset and reports the mismatch as a warning.
package align

import (
	"sort"

	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/internal/logging"
)

// Boundary names the side of a span being aligned.
type Boundary string

const (
	BoundaryStart Boundary = "start"
	BoundaryEnd   Boundary = "end"
)

// Warning records one boundary that did not coincide with a token boundary.
type Warning struct {
	Boundary Boundary
	Offset   int
	Token    ir.Span
}

// Aligner answers start and end lookups over a fixed token sequence.
type Aligner struct {
	documentID string
	tokens     []ir.Span
	warnings   []Warning
}

// New returns an aligner over tokens. The slice is copied and sorted.
func New(documentID string, tokens []ir.Span) *Aligner {
	sorted := append([]ir.Span(nil), tokens...)
	ir.SortSpans(sorted)
	return &Aligner{documentID: documentID, tokens: sorted}
}

// Len returns the number of tokens.
func (a *Aligner) Len() int {
	return len(a.tokens)
}

// Token returns the i-th token span in offset order.
func (a *Aligner) Token(i int) ir.Span {
	return a.tokens[i]
}

// Warnings returns every mismatch recorded so far.
func (a *Aligner) Warnings() []Warning {
	return a.warnings
}

// StartToken returns the index of the token that begins at offset or, if none
// does, the last token beginning before it. An offset before the first token
// resolves to the first token.
func (a *Aligner) StartToken(offset int) int {
	if len(a.tokens) == 0 {
		return -1
	}
	// first token beginning after offset
	i := sort.Search(len(a.tokens), func(i int) bool { return a.tokens[i].Start > offset })
	if i > 0 {
		i--
	}
	if a.tokens[i].Start != offset {
		a.warn(BoundaryStart, offset, a.tokens[i])
	}
	return i
}

// EndToken returns the index of the first token whose end is at or after
// offset. An offset beyond every token resolves to the last token.
func (a *Aligner) EndToken(offset int) int {
	if len(a.tokens) == 0 {
		return -1
	}
	i := sort.Search(len(a.tokens), func(i int) bool { return a.tokens[i].End >= offset })
	if i == len(a.tokens) {
		i--
	}
	if a.tokens[i].End != offset {
		a.warn(BoundaryEnd, offset, a.tokens[i])
	}
	return i
}

// Align returns the first and last token indices covered by s.
func (a *Aligner) Align(s ir.Span) (first, last int, err error) {
	if len(a.tokens) == 0 {
		return -1, -1, errors.NewStructural("align", 0, "", "no tokens to align span "+s.String())
	}
	first = a.StartToken(s.Start)
	last = a.EndToken(s.End)
	if last < first {
		last = first
	}
	return first, last, nil
}

func (a *Aligner) warn(b Boundary, offset int, tok ir.Span) {
	a.warnings = append(a.warnings, Warning{Boundary: b, Offset: offset, Token: tok})
	logging.AlignmentWarning(a.documentID, string(b), offset, tok.Start, tok.End)
}
