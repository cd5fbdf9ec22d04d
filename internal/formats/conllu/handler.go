// Package conllu reads CoNLL-U files for their tokenization: each token line
// becomes a token annotation and each sentence a sentence annotation, so a
// document from another format can be given token boundaries before it is
// written as CoNLL-Coref. Dependency columns are not interpreted.
package conllu

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/core/plugins"
)

// FormatName is the registry tag of this format.
const FormatName = "conllu"

const columnCount = 10

// Handler reads CoNLL-U. It has no writer.
type Handler struct{}

// Register registers this codec with the embedded registry.
func Register() {
	plugins.RegisterCodec(&plugins.Codec{
		Name:        FormatName,
		Description: "CoNLL-U tokens and sentences (read only)",
		Extensions:  []string{".conllu"},
		Reader:      &Handler{},
	})
}

// init automatically registers this codec when the package is imported.
func init() {
	Register()
}

type token struct {
	form       string
	upos       string
	spaceAfter bool
	line       int
}

// Read implements plugins.FormatReader.
func (h *Handler) Read(r io.Reader, opts plugins.ReadOptions) (*ir.Document, error) {
	sentences, docID, err := parse(r)
	if err != nil {
		return nil, err
	}
	if opts.DocumentID != "" {
		docID = opts.DocumentID
	}

	text := opts.Text
	var spans [][]ir.Span
	if text == "" {
		text, spans = synthesize(sentences)
	} else if spans, err = locate(sentences, text); err != nil {
		return nil, err
	}

	d := ir.NewDocument(docID, opts.SourceDB, text)
	for si, sentence := range sentences {
		for ti, tok := range sentence {
			a := d.Add(ir.TypeToken, spans[si][ti])
			if tok.upos != "" && tok.upos != "_" {
				a.SetAttribute(ir.AttrUPOS, tok.upos)
			}
		}
		first, last := spans[si][0], spans[si][len(sentence)-1]
		d.Add(ir.TypeSentence, ir.Span{Start: first.Start, End: last.End})
	}
	return d, nil
}

func parse(r io.Reader) ([][]token, string, error) {
	var sentences [][]token
	var current []token
	docID := ""
	flush := func() {
		if len(current) > 0 {
			sentences = append(sentences, current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case strings.TrimSpace(line) == "":
			flush()
			continue
		case strings.HasPrefix(line, "#"):
			if v, ok := commentValue(line, "newdoc id"); ok && docID == "" {
				docID = v
			}
			continue
		}

		cols := strings.Split(line, "\t")
		if len(cols) != columnCount {
			return nil, "", errors.NewStructural(FormatName, lineNo, line,
				fmt.Sprintf("token line has %d columns, want %d", len(cols), columnCount))
		}
		// multiword ranges and empty nodes carry no surface token of their own
		if strings.ContainsAny(cols[0], "-.") {
			continue
		}
		current = append(current, token{
			form:       cols[1],
			upos:       cols[3],
			spaceAfter: !strings.Contains(cols[9], "SpaceAfter=No"),
			line:       lineNo,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, "", errors.NewIO("read", FormatName, err)
	}
	flush()
	return sentences, docID, nil
}

func commentValue(line, key string) (string, bool) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "#"))
	if !strings.HasPrefix(rest, key) {
		return "", false
	}
	rest = strings.TrimSpace(strings.TrimPrefix(rest, key))
	if !strings.HasPrefix(rest, "=") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(rest, "=")), true
}

// synthesize joins forms, honouring SpaceAfter=No, with one sentence per line.
func synthesize(sentences [][]token) (string, [][]ir.Span) {
	var sb strings.Builder
	spans := make([][]ir.Span, len(sentences))
	for si, sentence := range sentences {
		if si > 0 {
			sb.WriteByte('\n')
		}
		spans[si] = make([]ir.Span, len(sentence))
		for ti, tok := range sentence {
			start := sb.Len()
			sb.WriteString(tok.form)
			spans[si][ti] = ir.Span{Start: start, End: sb.Len()}
			if tok.spaceAfter && ti < len(sentence)-1 {
				sb.WriteByte(' ')
			}
		}
	}
	return sb.String(), spans
}

func locate(sentences [][]token, text string) ([][]ir.Span, error) {
	spans := make([][]ir.Span, len(sentences))
	cursor := 0
	for si, sentence := range sentences {
		spans[si] = make([]ir.Span, len(sentence))
		for ti, tok := range sentence {
			i := strings.Index(text[cursor:], tok.form)
			if i < 0 || tok.form == "" {
				return nil, errors.NewStructural(FormatName, tok.line, tok.form, "token not found in document text")
			}
			start := cursor + i
			spans[si][ti] = ir.Span{Start: start, End: start + len(tok.form)}
			cursor = start + len(tok.form)
		}
	}
	return spans, nil
}

// AddTokens copies the token and sentence annotations of src into dst and
// returns how many were added. Nothing is copied when dst already has tokens
// or the texts differ.
func AddTokens(dst, src *ir.Document) (int, error) {
	if len(dst.OfType(ir.TypeToken)) > 0 {
		return 0, nil
	}
	if dst.Text != src.Text {
		return 0, errors.NewValidation("text", "token source text differs from document text")
	}
	n := 0
	for _, a := range src.Annotations() {
		if a.Type != ir.TypeToken && a.Type != ir.TypeSentence {
			continue
		}
		c := dst.Add(a.Type, a.Spans...)
		for _, k := range ir.SortedAttributeKeys(a) {
			c.SetAttribute(k, a.Attributes[k])
		}
		n++
	}
	return n, nil
}
