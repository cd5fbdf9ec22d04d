package conllcoref

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/annotconv/core/chains"
	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/internal/logging"
)

// ReaderOptions configures Read.
type ReaderOptions struct {
	// Text is the document text the tokens are located in. When empty, text
	// is synthesized from the token forms: single spaces between tokens and
	// a newline between sentences.
	Text string
	// DocumentID overrides the id from the document header.
	DocumentID string
	// SourceDB is copied to the document.
	SourceDB string
}

// ReadReport summarizes what Read produced.
type ReadReport struct {
	Tokens      int
	Sentences   int
	NounPhrases int
	Chains      int
	// Degenerate lists chains with a single member. They are kept in the
	// document; callers decide whether to drop them.
	Degenerate []ir.AnnotationID
}

// Read parses a CoNLL-Coref document into token, sentence, noun phrase and
// identity chain annotations.
func Read(r io.Reader, opts ReaderOptions) (*ir.Document, *ReadReport, error) {
	rd, err := ReadRecords(r)
	if err != nil {
		return nil, nil, err
	}
	return FromRecords(rd, opts)
}

// openMention is a mention whose closing bracket has not been seen yet.
type openMention struct {
	start int
	line  int
}

// parserState carries the per-document bracket stacks.
type parserState struct {
	doc *ir.Document
	// open holds one stack per chain key ("12", "12a"); chain ids may reopen
	// in later sentences, so stacks live for the whole document.
	open map[string][]openMention
	// fragments collects the spans of each discontinuous mention by key.
	fragments     map[string][]ir.Span
	fragmentChain map[string]int
	fragmentOrder []string
	chainAnns     map[int]*ir.Annotation
	nounPhrases   map[string]*ir.Annotation
}

func newParserState(doc *ir.Document) *parserState {
	return &parserState{
		doc:           doc,
		open:          make(map[string][]openMention),
		fragments:     make(map[string][]ir.Span),
		fragmentChain: make(map[string]int),
		chainAnns:     make(map[int]*ir.Annotation),
		nounPhrases:   make(map[string]*ir.Annotation),
	}
}

// FromRecords converts record-level content into annotations.
func FromRecords(rd *RecordDocument, opts ReaderOptions) (*ir.Document, *ReadReport, error) {
	docID := rd.ID
	if opts.DocumentID != "" {
		docID = opts.DocumentID
	}

	text := opts.Text
	var spans [][]ir.Span
	var err error
	if text == "" {
		text, spans = synthesizeText(rd)
	} else if spans, err = locateTokens(rd, text); err != nil {
		return nil, nil, err
	}

	doc := ir.NewDocument(docID, opts.SourceDB, text)
	report := &ReadReport{}
	st := newParserState(doc)

	for si, sentence := range rd.Sentences {
		for ti, rec := range sentence {
			tokSpan := spans[si][ti]
			tok := doc.Add(ir.TypeToken, tokSpan)
			if rec.UPOS != "" && rec.UPOS != "-" && rec.UPOS != "_" {
				tok.SetAttribute(ir.AttrUPOS, rec.UPOS)
			}
			report.Tokens++

			brackets, err := ParseCorefField(rec.Coref)
			if err != nil {
				var sfe *errors.StructuralFormatError
				if errors.As(err, &sfe) {
					sfe.Line = rec.Line
				}
				return nil, nil, err
			}
			for _, b := range brackets {
				if err := st.apply(b, tokSpan, rec); err != nil {
					return nil, nil, err
				}
			}
		}
		if len(sentence) > 0 {
			first, last := spans[si][0], spans[si][len(sentence)-1]
			doc.Add(ir.TypeSentence, ir.Span{Start: first.Start, End: last.End})
			report.Sentences++
		}
	}

	if err := st.checkUnclosed(); err != nil {
		return nil, nil, err
	}
	st.flushFragments()

	for _, c := range doc.OfType(ir.TypeIdentityChain) {
		chains.UpdateSpan(doc, c)
	}
	for _, c := range chains.Degenerate(doc) {
		chainID, _ := c.GetAttribute(ir.AttrChainID)
		logging.DegenerateChain(docID, chainID, c.EnsureSlot(ir.SlotCoreferringStrings).Len())
		report.Degenerate = append(report.Degenerate, c.ID)
	}
	report.NounPhrases = len(st.nounPhrases)
	report.Chains = len(st.chainAnns)
	return doc, report, nil
}

// apply processes one bracket on the token at tok.
func (st *parserState) apply(b Bracket, tok ir.Span, rec Record) error {
	key := b.Key()
	switch b.Kind {
	case BracketOpen:
		st.open[key] = append(st.open[key], openMention{start: tok.Start, line: rec.Line})
		return nil
	case BracketSingle:
		st.emit(b, ir.Span{Start: tok.Start, End: tok.End})
		return nil
	}

	stack := st.open[key]
	if len(stack) == 0 {
		return &errors.StructuralFormatError{
			Format:  FormatName,
			Line:    rec.Line,
			Token:   rec.Form,
			ChainID: key,
			Message: "closing bracket without matching open",
		}
	}
	top := stack[len(stack)-1]
	st.open[key] = stack[:len(stack)-1]
	st.emit(b, ir.Span{Start: top.start, End: tok.End})
	return nil
}

// emit records a completed mention. Fragments of a discontinuous mention are
// collected and attached once the whole document has been read.
func (st *parserState) emit(b Bracket, span ir.Span) {
	if b.Fragment != "" {
		key := b.Key()
		if _, ok := st.fragments[key]; !ok {
			st.fragmentOrder = append(st.fragmentOrder, key)
			st.fragmentChain[key] = b.Chain
		}
		st.fragments[key] = append(st.fragments[key], span)
		return
	}
	st.attach(b.Chain, []ir.Span{span})
}

// attach adds the noun phrase over spans to chain, creating either lazily.
// Noun phrases with equal spans are one annotation.
func (st *parserState) attach(chain int, spans []ir.Span) {
	key := ir.SpanKey(spans)
	np, ok := st.nounPhrases[key]
	if !ok {
		np = st.doc.Add(ir.TypeNounPhrase, spans...)
		st.nounPhrases[key] = np
	}
	c, ok := st.chainAnns[chain]
	if !ok {
		c = st.doc.Add(ir.TypeIdentityChain, spans...)
		c.SetAttribute(ir.AttrChainID, strconv.Itoa(chain))
		st.chainAnns[chain] = c
	}
	c.EnsureSlot(ir.SlotCoreferringStrings).Add(np.ID)
}

func (st *parserState) flushFragments() {
	for _, key := range st.fragmentOrder {
		spans := append([]ir.Span(nil), st.fragments[key]...)
		ir.SortSpans(spans)
		st.attach(st.fragmentChain[key], spans)
	}
}

func (st *parserState) checkUnclosed() error {
	keys := make([]string, 0, len(st.open))
	for k, stack := range st.open {
		if len(stack) > 0 {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	stack := st.open[keys[0]]
	return &errors.StructuralFormatError{
		Format:  FormatName,
		Line:    stack[len(stack)-1].line,
		ChainID: keys[0],
		Message: fmt.Sprintf("%d unclosed bracket(s) at end of document", len(stack)),
	}
}

// synthesizeText builds a text from token forms and returns the token spans.
func synthesizeText(rd *RecordDocument) (string, [][]ir.Span) {
	var sb strings.Builder
	spans := make([][]ir.Span, len(rd.Sentences))
	for si, sentence := range rd.Sentences {
		if si > 0 {
			sb.WriteByte('\n')
		}
		spans[si] = make([]ir.Span, len(sentence))
		for ti, rec := range sentence {
			if ti > 0 {
				sb.WriteByte(' ')
			}
			form := UnescapeForm(rec.Form)
			start := sb.Len()
			sb.WriteString(form)
			spans[si][ti] = ir.Span{Start: start, End: sb.Len()}
		}
	}
	return sb.String(), spans
}

// locateTokens finds each token form in text, in order.
func locateTokens(rd *RecordDocument, text string) ([][]ir.Span, error) {
	spans := make([][]ir.Span, len(rd.Sentences))
	cursor := 0
	for si, sentence := range rd.Sentences {
		spans[si] = make([]ir.Span, len(sentence))
		for ti, rec := range sentence {
			s, ok := locate(text, cursor, rec.Form)
			if !ok {
				return nil, &errors.StructuralFormatError{
					Format:  FormatName,
					Line:    rec.Line,
					Token:   rec.Form,
					Message: fmt.Sprintf("token not found in document text after offset %d", cursor),
				}
			}
			spans[si][ti] = s
			cursor = s.End
		}
	}
	return spans, nil
}

func locate(text string, cursor int, form string) (ir.Span, bool) {
	best := ir.Span{Start: -1}
	for _, candidate := range []string{form, UnescapeForm(form)} {
		if candidate == "" {
			continue
		}
		i := strings.Index(text[cursor:], candidate)
		if i < 0 {
			continue
		}
		if start := cursor + i; best.Start < 0 || start < best.Start {
			best = ir.Span{Start: start, End: start + len(candidate)}
		}
	}
	return best, best.Start >= 0
}

var ptbEscapes = map[string]string{
	"-LRB-": "(", "-RRB-": ")",
	"-LSB-": "[", "-RSB-": "]",
	"-LCB-": "{", "-RCB-": "}",
}

// UnescapeForm maps Penn Treebank bracket escapes back to the characters
// they stand for.
func UnescapeForm(form string) string {
	if s, ok := ptbEscapes[form]; ok {
		return s
	}
	return form
}
