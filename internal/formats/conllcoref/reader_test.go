package conllcoref

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/core/ir"
)

func readSample(t *testing.T) (*ir.Document, *ReadReport) {
	t.Helper()
	text, err := os.ReadFile(filepath.Join("testdata", "sample.txt"))
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(filepath.Join("testdata", "sample.conll"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	doc, report, err := Read(f, ReaderOptions{Text: string(text), SourceDB: "test"})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return doc, report
}

func TestReadSampleCorpus(t *testing.T) {
	doc, report := readSample(t)

	if got := doc.Len(); got != 132 {
		t.Errorf("annotations = %d, want 132", got)
	}
	counts := doc.CountByType()
	want := map[string]int{
		ir.TypeToken:         101,
		ir.TypeSentence:      7,
		ir.TypeNounPhrase:    19,
		ir.TypeIdentityChain: 5,
	}
	for typ, n := range want {
		if counts[typ] != n {
			t.Errorf("%s = %d, want %d", typ, counts[typ], n)
		}
	}
	if report.Tokens != 101 || report.Sentences != 7 || report.NounPhrases != 19 || report.Chains != 5 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Degenerate) != 0 {
		t.Errorf("Degenerate = %v, want none", report.Degenerate)
	}
	if doc.SourceID != "iop_survey" || doc.SourceDB != "test" {
		t.Errorf("document ids = (%q, %q)", doc.SourceID, doc.SourceDB)
	}

	var iop *ir.Annotation
	for _, c := range doc.OfType(ir.TypeIdentityChain) {
		if doc.CoveredText(c) == "Intraocular pressure" {
			iop = c
		}
	}
	if iop == nil {
		t.Fatal(`no chain covering "Intraocular pressure"`)
	}
	if got := iop.Slot(ir.SlotCoreferringStrings).Len(); got != 7 {
		t.Errorf("Intraocular pressure chain has %d members, want 7", got)
	}
	if id, _ := iop.GetAttribute(ir.AttrChainID); id != "1" {
		t.Errorf("chain_id = %q, want 1", id)
	}
	if errs := ir.ValidateDocument(doc); len(errs) != 0 {
		t.Errorf("ValidateDocument: %v", errs)
	}
}

func TestReadSampleMentions(t *testing.T) {
	doc, _ := readSample(t)

	texts := make(map[string]bool)
	for _, np := range doc.OfType(ir.TypeNounPhrase) {
		texts[doc.CoveredText(np)] = true
	}
	for _, want := range []string{"30 inbred strains of mice", "mice", "Its readings", "Its", "the pressure values"} {
		if !texts[want] {
			t.Errorf("missing noun phrase %q", want)
		}
	}

	tok := doc.OfType(ir.TypeToken)[0]
	if upos, _ := tok.GetAttribute(ir.AttrUPOS); upos != "ADJ" {
		t.Errorf("first token upos = %q", upos)
	}
}

func TestReadSynthesizedText(t *testing.T) {
	doc, report, err := Read(strings.NewReader(twoSentences), ReaderOptions{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if doc.Text != "Mice sleep .\nThey dream" {
		t.Errorf("Text = %q", doc.Text)
	}
	if report.Chains != 1 || report.NounPhrases != 2 {
		t.Errorf("report = %+v", report)
	}
	chain := doc.OfType(ir.TypeIdentityChain)[0]
	if got := doc.CoveredText(chain); got != "Mice" {
		t.Errorf("chain text = %q, want earliest member", got)
	}
}

func TestReadNestedAndReopened(t *testing.T) {
	input := strings.Join([]string{
		"d\t0\t1\tthe\tDET\t-\t-\t-\t-\t-\t-\t-\t(1|(2",
		"d\t0\t2\tmouse\tNOUN\t-\t-\t-\t-\t-\t-\t-\t(1)|2)",
		"d\t0\t3\teye\tNOUN\t-\t-\t-\t-\t-\t-\t-\t1)",
		"",
		"d\t0\t1\tit\tPRON\t-\t-\t-\t-\t-\t-\t-\t(2)",
		"d\t0\t2\tblinks\tVERB\t-\t-\t-\t-\t-\t-\t-\t-",
	}, "\n")
	doc, report, err := Read(strings.NewReader(input), ReaderOptions{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if report.Chains != 2 || report.NounPhrases != 4 {
		t.Fatalf("report = %+v", report)
	}

	byID := make(map[string][]string)
	for _, c := range doc.OfType(ir.TypeIdentityChain) {
		id, _ := c.GetAttribute(ir.AttrChainID)
		for _, m := range doc.Members(c, ir.SlotCoreferringStrings) {
			byID[id] = append(byID[id], doc.CoveredText(m))
		}
	}
	if got := strings.Join(byID["1"], ","); got != "mouse,the mouse eye" {
		t.Errorf("chain 1 = %q", got)
	}
	if got := strings.Join(byID["2"], ","); got != "the mouse,it" {
		t.Errorf("chain 2 = %q", got)
	}
}

func TestReadDiscontinuousFragments(t *testing.T) {
	input := strings.Join([]string{
		"d\t0\t1\tstrains\tNOUN\t-\t-\t-\t-\t-\t-\t-\t(1a)",
		"d\t0\t2\tA\tPROPN\t-\t-\t-\t-\t-\t-\t-\t-",
		"d\t0\t3\tand\tCCONJ\t-\t-\t-\t-\t-\t-\t-\t-",
		"d\t0\t4\tBUB/BnJ\tPROPN\t-\t-\t-\t-\t-\t-\t-\t(1a)",
		"d\t0\t5\ttheir\tPRON\t-\t-\t-\t-\t-\t-\t-\t(1)",
	}, "\n")
	doc, _, err := Read(strings.NewReader(input), ReaderOptions{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	nps := doc.OfType(ir.TypeNounPhrase)
	if len(nps) != 2 {
		t.Fatalf("noun phrases = %d, want 2", len(nps))
	}
	var disc *ir.Annotation
	for _, np := range nps {
		if np.IsDiscontinuous() {
			disc = np
		}
	}
	if disc == nil {
		t.Fatal("no discontinuous noun phrase")
	}
	if got := doc.CoveredText(disc); got != "strains ... BUB/BnJ" {
		t.Errorf("CoveredText = %q", got)
	}
	chains := doc.OfType(ir.TypeIdentityChain)
	if len(chains) != 1 || chains[0].Slot(ir.SlotCoreferringStrings).Len() != 2 {
		t.Errorf("fragments should join chain 1: %+v", chains)
	}
}

func TestReadSharedMentionAcrossChains(t *testing.T) {
	input := "d\t0\t1\tIOP\tPROPN\t-\t-\t-\t-\t-\t-\t-\t(2)|(1)\n" +
		"d\t0\t2\tit\tPRON\t-\t-\t-\t-\t-\t-\t-\t(1)\n" +
		"d\t0\t3\tIOP\tPROPN\t-\t-\t-\t-\t-\t-\t-\t(2)\n"
	_, report, err := Read(strings.NewReader(input), ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if report.NounPhrases != 3 {
		t.Errorf("NounPhrases = %d, want 3 (first token shared)", report.NounPhrases)
	}
	if report.Chains != 2 {
		t.Errorf("Chains = %d", report.Chains)
	}
}

func TestReadDegenerateKept(t *testing.T) {
	input := "d\t0\t1\tMice\tNOUN\t-\t-\t-\t-\t-\t-\t-\t(4)\n"
	doc, report, err := Read(strings.NewReader(input), ReaderOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Degenerate) != 1 {
		t.Fatalf("Degenerate = %v", report.Degenerate)
	}
	if doc.Get(report.Degenerate[0]) == nil {
		t.Error("reader must keep degenerate chains")
	}
}

func TestReadStructuralErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		text    string
		chainID string
		line    int
	}{
		{
			name:    "close without open",
			input:   "d\t0\t1\tMice\tNOUN\t-\t-\t-\t-\t-\t-\t-\t3)\n",
			chainID: "3",
			line:    1,
		},
		{
			name:    "unclosed at end",
			input:   "d\t0\t1\tMice\tNOUN\t-\t-\t-\t-\t-\t-\t-\t(3\nd\t0\t2\tsleep\tVERB\t-\t-\t-\t-\t-\t-\t-\t-\n",
			chainID: "3",
			line:    1,
		},
		{
			name:  "malformed field",
			input: "#begin document (d); part 000\nd\t0\t1\tMice\tNOUN\t-\t-\t-\t-\t-\t-\t-\t(3(\n",
			line:  2,
		},
		{
			name:  "token missing from text",
			input: "d\t0\t1\tMice\tNOUN\t-\t-\t-\t-\t-\t-\t-\t-\n",
			text:  "Rats sleep.",
			line:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Read(strings.NewReader(tt.input), ReaderOptions{Text: tt.text})
			var sfe *errors.StructuralFormatError
			if !errors.As(err, &sfe) {
				t.Fatalf("error = %v, want StructuralFormatError", err)
			}
			if sfe.ChainID != tt.chainID {
				t.Errorf("ChainID = %q, want %q", sfe.ChainID, tt.chainID)
			}
			if sfe.Line != tt.line {
				t.Errorf("Line = %d, want %d", sfe.Line, tt.line)
			}
		})
	}
}

func TestUnescapeForm(t *testing.T) {
	doc, _, err := Read(strings.NewReader("d\t0\t1\t-LRB-\tPUNCT\t-\t-\t-\t-\t-\t-\t-\t-\nd\t0\t2\tIOP\tPROPN\t-\t-\t-\t-\t-\t-\t-\t-\n"),
		ReaderOptions{Text: "(IOP"})
	if err != nil {
		t.Fatal(err)
	}
	tok := doc.OfType(ir.TypeToken)[0]
	if got := doc.CoveredText(tok); got != "(" {
		t.Errorf("token text = %q", got)
	}
}
