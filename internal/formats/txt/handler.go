// Package txt reads and writes plain document text. Reading splits the text
// into whitespace-delimited tokens and one sentence per non-blank line, which
// is enough structure to start annotating; writing keeps only the text.
package txt

import (
	"bytes"
	"io"
	"sort"
	"unicode"

	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/core/plugins"
)

// FormatName is the registry tag of this format.
const FormatName = "text"

// Handler implements the codec registry interfaces for plain text.
type Handler struct{}

// Register registers this codec with the embedded registry.
func Register() {
	plugins.RegisterCodec(&plugins.Codec{
		Name:        FormatName,
		Description: "Plain text, whitespace tokens and one sentence per line",
		Extensions:  []string{".txt", ".text"},
		Reader:      &Handler{},
		Writer:      &Handler{},
	})
}

func init() {
	Register()
}

// Read implements plugins.FormatReader. opts.Text, when set, must equal the
// input.
func (h *Handler) Read(r io.Reader, opts plugins.ReadOptions) (*ir.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIO("read", FormatName, err)
	}
	text := string(bytes.TrimPrefix(data, []byte{0xef, 0xbb, 0xbf}))
	if opts.Text != "" && opts.Text != text {
		return nil, errors.NewValidation("text", "document text differs from the plain text input")
	}

	d := ir.NewDocument(opts.DocumentID, opts.SourceDB, text)
	for _, line := range Lines(text) {
		tokens := Tokenize(text, line)
		if len(tokens) == 0 {
			continue
		}
		for _, t := range tokens {
			d.Add(ir.TypeToken, t)
		}
		d.Add(ir.TypeSentence, ir.Span{Start: tokens[0].Start, End: tokens[len(tokens)-1].End})
	}
	return d, nil
}

// Write implements plugins.FormatWriter. Every annotation is lost.
func (h *Handler) Write(w io.Writer, d *ir.Document, opts plugins.WriteOptions) (*ir.LossReport, error) {
	if _, err := io.WriteString(w, d.Text); err != nil {
		return nil, errors.NewIO("write", FormatName, err)
	}
	report := ir.NewLossReport(FormatName, ir.LossL0)
	counts := d.CountByType()
	types := make([]string, 0, len(counts))
	for typ := range counts {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		report.LoseType(typ, counts[typ], ir.LossL4, "cannot be written as plain text")
	}
	return report, nil
}

// Lines returns the span of every line of text, without its terminator.
func Lines(text string) []ir.Span {
	var lines []ir.Span
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, ir.Span{Start: start, End: i})
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, ir.Span{Start: start, End: len(text)})
	}
	return lines
}

// Tokenize returns the maximal runs of non-space characters within s.
func Tokenize(text string, s ir.Span) []ir.Span {
	var tokens []ir.Span
	begin := -1
	for i, r := range text[s.Start:s.End] {
		off := s.Start + i
		if unicode.IsSpace(r) {
			if begin >= 0 {
				tokens = append(tokens, ir.Span{Start: begin, End: off})
				begin = -1
			}
		} else if begin < 0 {
			begin = off
		}
	}
	if begin >= 0 {
		tokens = append(tokens, ir.Span{Start: begin, End: s.End})
	}
	return tokens
}
