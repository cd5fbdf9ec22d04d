package conllcoref

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/FocuswithJustin/annotconv/core/align"
	"github.com/FocuswithJustin/annotconv/core/chains"
	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/internal/logging"
)

// WriterOptions configures Write.
type WriterOptions struct {
	// IncludeAppositions writes APPOS relations as chains over head and
	// attribute mentions.
	IncludeAppositions bool
	// KeepDegenerate writes chains with a single mention instead of
	// dropping them.
	KeepDegenerate bool
	// DocumentID overrides the document's SourceID in the output.
	DocumentID string
	// Part is the header part number; DefaultPart when empty.
	Part string
}

// DefaultWriterOptions returns the options used by the codec registry.
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{IncludeAppositions: true}
}

// WriteReport summarizes what Write produced.
type WriteReport struct {
	Chains            int
	Mentions          int
	Discontinuous     int
	AlignmentWarnings int
	DroppedDegenerate int
	Crossing          int
}

// Write encodes the chains of d as a CoNLL-Coref document.
func Write(w io.Writer, d *ir.Document, opts WriterOptions) (*WriteReport, error) {
	rd, report, err := ToRecords(d, opts)
	if err != nil {
		return nil, err
	}
	if err := WriteRecords(w, rd); err != nil {
		return nil, err
	}
	return report, nil
}

// chainMention is one mention of a numbered chain, with spans snapped to
// token boundaries. Tokens holds the first and last token index of each span.
// Suffix is set for discontinuous mentions.
type chainMention struct {
	spans  []ir.Span
	tokens [][2]int
	suffix string
}

type numberedChain struct {
	id       int
	mentions []chainMention
}

// ToRecords derives the record-level encoding of d.
func ToRecords(d *ir.Document, opts WriterOptions) (*RecordDocument, *WriteReport, error) {
	docID := opts.DocumentID
	if docID == "" {
		docID = d.SourceID
	}
	if docID == "" {
		docID = "document"
	}

	tokens := sortBySpans(d.OfType(ir.TypeToken))
	sentences := sortBySpans(d.OfType(ir.TypeSentence))
	if len(tokens) == 0 || len(sentences) == 0 {
		return nil, nil, &errors.StructuralFormatError{
			Format:  FormatName,
			Message: fmt.Sprintf("document %s has no token or sentence annotations", docID),
		}
	}

	tokenSpans := make([]ir.Span, len(tokens))
	for i, t := range tokens {
		tokenSpans[i] = ir.Cover(t.Spans)
	}
	bySentence, err := assignSentences(d, tokenSpans, sentences)
	if err != nil {
		return nil, nil, err
	}

	report := &WriteReport{}
	aligner := align.New(docID, tokenSpans)
	numbered, err := numberChains(d, docID, aligner, opts, report)
	if err != nil {
		return nil, nil, err
	}

	markers := make([][]Marker, len(tokens))
	intervals := make(map[string][][2]int)

	for _, c := range numbered {
		for _, m := range c.mentions {
			if m.suffix != "" {
				report.Discontinuous++
			}
			report.Mentions++
			key := strconv.Itoa(c.id) + m.suffix
			for _, tr := range m.tokens {
				first, last := tr[0], tr[1]
				intervals[key] = append(intervals[key], [2]int{first, last})

				if first == last {
					markers[first] = append(markers[first], Marker{Kind: MarkerSingle, Chain: c.id, Fragment: m.suffix})
					continue
				}
				markers[first] = append(markers[first], Marker{Kind: MarkerBegin, Chain: c.id, Fragment: m.suffix})
				markers[last] = append(markers[last], Marker{Kind: MarkerEnd, Chain: c.id, Fragment: m.suffix})
			}
		}
	}
	report.Crossing = warnCrossing(docID, intervals)
	report.AlignmentWarnings = len(aligner.Warnings())

	rd := &RecordDocument{ID: docID, Part: opts.Part}
	if rd.Part == "" {
		rd.Part = DefaultPart
	}
	for _, idxs := range bySentence {
		if len(idxs) == 0 {
			continue
		}
		sentence := make([]Record, 0, len(idxs))
		for wi, ti := range idxs {
			upos, _ := tokens[ti].GetAttribute(ir.AttrUPOS)
			sentence = append(sentence, Record{
				DocumentID: docID,
				Part:       "0",
				WordIndex:  wi + 1,
				Form:       d.TextOf(tokenSpans[ti]),
				UPOS:       upos,
				Coref:      EncodeMarkers(markers[ti]),
			})
		}
		rd.Sentences = append(rd.Sentences, sentence)
	}
	return rd, report, nil
}

func sortBySpans(anns []*ir.Annotation) []*ir.Annotation {
	sort.SliceStable(anns, func(i, j int) bool {
		return ir.CompareSpanLists(anns[i].Spans, anns[j].Spans) < 0
	})
	return anns
}

// assignSentences groups token indices by the sentence containing each
// token's start offset.
func assignSentences(d *ir.Document, tokenSpans []ir.Span, sentences []*ir.Annotation) ([][]int, error) {
	out := make([][]int, len(sentences))
	for ti, tok := range tokenSpans {
		si := sort.Search(len(sentences), func(i int) bool {
			return ir.Cover(sentences[i].Spans).End > tok.Start
		})
		if si == len(sentences) || ir.Cover(sentences[si].Spans).Start > tok.Start {
			return nil, &errors.StructuralFormatError{
				Format:  FormatName,
				Token:   d.TextOf(tok),
				Message: fmt.Sprintf("token %s lies outside every sentence", tok),
			}
		}
		out[si] = append(out[si], ti)
	}
	return out, nil
}

// numberChains discovers, consolidates, filters and orders the chains of d
// and assigns ids 1..N by the earliest mention of each chain. Mentions are
// snapped to token boundaries first, so ordering and merging see the spans a
// reader reconstructs from the output.
func numberChains(d *ir.Document, docID string, aligner *align.Aligner, opts WriterOptions, report *WriteReport) ([]numberedChain, error) {
	snappedByRaw := make(map[string]chainMention)
	byKey := make(map[string]chainMention)
	rawKeys := make(map[string]map[string]bool)
	var lists [][]string
	collect := func(members ...[]*ir.Annotation) error {
		var keys []string
		for _, group := range members {
			for _, m := range group {
				spans := append([]ir.Span(nil), m.Spans...)
				ir.SortSpans(spans)
				raw := ir.SpanKey(spans)
				cm, ok := snappedByRaw[raw]
				if !ok {
					var err error
					if cm, err = snapMention(d, aligner, spans); err != nil {
						return err
					}
					snappedByRaw[raw] = cm
				}
				key := ir.SpanKey(cm.spans)
				byKey[key] = cm
				if rawKeys[key] == nil {
					rawKeys[key] = make(map[string]bool)
				}
				rawKeys[key][raw] = true
				keys = append(keys, key)
			}
		}
		if len(keys) > 0 {
			lists = append(lists, keys)
		}
		return nil
	}

	for _, c := range d.OfType(ir.TypeIdentityChain) {
		if err := collect(d.Members(c, ir.SlotCoreferringStrings)); err != nil {
			return nil, err
		}
	}
	if opts.IncludeAppositions {
		for _, a := range d.OfType(ir.TypeApposRelation) {
			if err := collect(d.Members(a, ir.SlotApposHead), d.Members(a, ir.SlotApposAttributes)); err != nil {
				return nil, err
			}
		}
	}

	groups := chains.Consolidate(lists)
	if len(groups) < len(lists) {
		logging.Info("chains consolidated", "document", docID, "before", len(lists), "after", len(groups))
	}

	var kept [][]chainMention
	for _, g := range groups {
		// a colliding group is numbered and then rejected below
		collides := false
		for _, key := range g {
			collides = collides || len(rawKeys[key]) > 1
		}
		if len(g) < 2 && !collides && !opts.KeepDegenerate {
			report.DroppedDegenerate++
			logging.DegenerateChain(docID, g[0], len(g))
			continue
		}
		members := make([]chainMention, len(g))
		for i, key := range g {
			members[i] = byKey[key]
		}
		sort.SliceStable(members, func(i, j int) bool {
			return ir.CompareSpanLists(members[i].spans, members[j].spans) < 0
		})
		kept = append(kept, members)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return ir.CompareSpanLists(kept[i][0].spans, kept[j][0].spans) < 0
	})

	out := make([]numberedChain, len(kept))
	discontinuous := 0
	for i, members := range kept {
		out[i].id = i + 1
		for _, m := range members {
			if len(rawKeys[ir.SpanKey(m.spans)]) > 1 {
				return nil, &errors.ChainIntegrityError{
					ChainID: strconv.Itoa(out[i].id),
					Token:   d.TextOf(aligner.Token(m.tokens[0][0])),
					Message: "two mentions of one chain occupy the same tokens",
				}
			}
			if len(m.spans) > 1 {
				m.suffix = FragmentLetters(discontinuous)
				discontinuous++
			}
			out[i].mentions = append(out[i].mentions, m)
		}
	}
	report.Chains = len(out)
	return out, nil
}

// snapMention widens every span to the tokens it touches and consolidates the
// result. Fragments that meet across whitespace become one span.
func snapMention(d *ir.Document, aligner *align.Aligner, spans []ir.Span) (chainMention, error) {
	snapped := make([]ir.Span, 0, len(spans))
	for _, s := range spans {
		first, last, err := aligner.Align(s)
		if err != nil {
			return chainMention{}, err
		}
		snapped = append(snapped, ir.Span{Start: aligner.Token(first).Start, End: aligner.Token(last).End})
	}
	snapped, _ = ir.ConsolidateSpans(snapped, d.Text)

	m := chainMention{spans: snapped}
	for _, s := range snapped {
		// token-aligned now, so no further warnings
		first, last, err := aligner.Align(s)
		if err != nil {
			return chainMention{}, err
		}
		m.tokens = append(m.tokens, [2]int{first, last})
	}
	return m, nil
}

// warnCrossing logs mentions of one chain that overlap without nesting, which
// brackets cannot encode unambiguously, and returns how many pairs it found.
func warnCrossing(docID string, intervals map[string][][2]int) int {
	keys := make([]string, 0, len(intervals))
	for k := range intervals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	n := 0
	for _, k := range keys {
		iv := intervals[k]
		for i := range iv {
			for j := range iv {
				a, b := iv[i], iv[j]
				if a[0] < b[0] && b[0] <= a[1] && a[1] < b[1] {
					n++
					logging.Warn("crossing mentions in one chain",
						"document", docID, "chain", k,
						"first", fmt.Sprintf("%d-%d", a[0], a[1]),
						"second", fmt.Sprintf("%d-%d", b[0], b[1]))
				}
			}
		}
	}
	return n
}
