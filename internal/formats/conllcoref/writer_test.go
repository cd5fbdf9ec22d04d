package conllcoref

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/core/ir"
)

// newTokenizedDocument builds a document whose tokens are the
// space-separated words of each sentence.
func newTokenizedDocument(sentences ...string) *ir.Document {
	d := ir.NewDocument("doc", "test", strings.Join(sentences, " "))
	offset := 0
	for _, s := range sentences {
		start := offset
		for _, w := range strings.Split(s, " ") {
			d.Add(ir.TypeToken, ir.Span{Start: offset, End: offset + len(w)})
			offset += len(w) + 1
		}
		d.Add(ir.TypeSentence, ir.Span{Start: start, End: start + len(s)})
	}
	return d
}

// span returns the span of the n-th occurrence of phrase in d.
func span(t *testing.T, d *ir.Document, phrase string, n int) ir.Span {
	t.Helper()
	from := 0
	for {
		i := strings.Index(d.Text[from:], phrase)
		if i < 0 {
			t.Fatalf("phrase %q occurrence %d not found", phrase, n)
		}
		if n == 0 {
			return ir.Span{Start: from + i, End: from + i + len(phrase)}
		}
		n--
		from += i + 1
	}
}

func chainOf(d *ir.Document, members ...ir.Span) *ir.Annotation {
	c := d.Add(ir.TypeIdentityChain, members[0])
	slot := c.EnsureSlot(ir.SlotCoreferringStrings)
	for _, s := range members {
		slot.Add(d.Add(ir.TypeNounPhrase, s).ID)
	}
	return c
}

func corefColumn(t *testing.T, out string) []string {
	t.Helper()
	rd, err := ReadRecords(strings.NewReader(out))
	if err != nil {
		t.Fatalf("ReadRecords: %v", err)
	}
	var col []string
	for _, s := range rd.Sentences {
		for _, r := range s {
			col = append(col, r.Coref)
		}
	}
	return col
}

func TestWriteSampleGolden(t *testing.T) {
	doc, _ := readSample(t)
	want, err := os.ReadFile(filepath.Join("testdata", "sample.conll"))
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	report, err := Write(&buf, doc, DefaultWriterOptions())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if buf.String() != string(want) {
		t.Errorf("Write(Read(sample)) differs from sample.conll:\n%s", buf.String())
	}
	if report.Chains != 5 || report.Mentions != 19 || report.AlignmentWarnings != 0 {
		t.Errorf("report = %+v", report)
	}
}

func TestWriteChainNumbering(t *testing.T) {
	d := newTokenizedDocument("the mouse eye blinks .", "it sees the light .")
	// created last, but its earliest member comes first
	late := span(t, d, "the mouse", 0)
	chainOf(d, span(t, d, "the light", 0), span(t, d, "blinks", 0))
	chainOf(d, span(t, d, "it", 0), late)

	var buf bytes.Buffer
	if _, err := Write(&buf, d, DefaultWriterOptions()); err != nil {
		t.Fatal(err)
	}
	got := corefColumn(t, buf.String())
	want := []string{"(1", "1)", "-", "(2)", "-", "(1)", "-", "(2", "2)", "-"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("coref column = %v, want %v", got, want)
	}
}

func TestWriteMergesSharedMembers(t *testing.T) {
	d := newTokenizedDocument("IOP rose and it fell while pressure held .")
	iop := span(t, d, "IOP", 0)
	chainOf(d, iop, span(t, d, "it", 0))
	chainOf(d, span(t, d, "pressure", 0), iop)

	var buf bytes.Buffer
	report, err := Write(&buf, d, DefaultWriterOptions())
	if err != nil {
		t.Fatal(err)
	}
	if report.Chains != 1 || report.Mentions != 3 {
		t.Errorf("report = %+v, want one chain of three mentions", report)
	}
	got := corefColumn(t, buf.String())
	if got[0] != "(1)" || got[3] != "(1)" || got[6] != "(1)" {
		t.Errorf("coref column = %v", got)
	}
}

func TestWriteDegenerateChains(t *testing.T) {
	d := newTokenizedDocument("mice sleep and rats dream .")
	chainOf(d, span(t, d, "mice", 0), span(t, d, "rats", 0))
	chainOf(d, span(t, d, "dream", 0))

	var buf bytes.Buffer
	report, err := Write(&buf, d, DefaultWriterOptions())
	if err != nil {
		t.Fatal(err)
	}
	if report.Chains != 1 || report.DroppedDegenerate != 1 {
		t.Errorf("report = %+v", report)
	}
	if got := corefColumn(t, buf.String())[4]; got != "-" {
		t.Errorf("degenerate chain written: %q", got)
	}

	buf.Reset()
	opts := DefaultWriterOptions()
	opts.KeepDegenerate = true
	report, err = Write(&buf, d, opts)
	if err != nil {
		t.Fatal(err)
	}
	if report.Chains != 2 || report.DroppedDegenerate != 0 {
		t.Errorf("report with KeepDegenerate = %+v", report)
	}
}

func TestWriteAppositions(t *testing.T) {
	d := newTokenizedDocument("Smith , the director , spoke .")
	appos := d.Add(ir.TypeApposRelation, span(t, d, "Smith", 0))
	head := d.Add(ir.TypeNounPhrase, span(t, d, "Smith", 0))
	attr := d.Add(ir.TypeNounPhrase, span(t, d, "the director", 0))
	appos.EnsureSlot(ir.SlotApposHead).Add(head.ID)
	appos.EnsureSlot(ir.SlotApposAttributes).Add(attr.ID)

	var buf bytes.Buffer
	report, err := Write(&buf, d, DefaultWriterOptions())
	if err != nil {
		t.Fatal(err)
	}
	if report.Chains != 1 {
		t.Fatalf("Chains = %d, want 1", report.Chains)
	}
	got := corefColumn(t, buf.String())
	if got[0] != "(1)" || got[2] != "(1" || got[3] != "1)" {
		t.Errorf("coref column = %v", got)
	}

	buf.Reset()
	report, err = Write(&buf, d, WriterOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Chains != 0 {
		t.Errorf("appositions written when disabled: %+v", report)
	}
}

func TestWriteDiscontinuousMentions(t *testing.T) {
	d := newTokenizedDocument("strains A and BUB/BnJ differ ; their eyes and the eyes of mice too .")
	first := d.Add(ir.TypeNounPhrase, span(t, d, "strains", 0), span(t, d, "BUB/BnJ", 0))
	their := d.Add(ir.TypeNounPhrase, span(t, d, "their", 0))
	c1 := d.Add(ir.TypeIdentityChain, first.Spans...)
	c1.EnsureSlot(ir.SlotCoreferringStrings).Add(first.ID, their.ID)

	second := d.Add(ir.TypeNounPhrase, span(t, d, "eyes", 0), span(t, d, "of mice", 0))
	eyes := d.Add(ir.TypeNounPhrase, span(t, d, "the eyes", 0))
	c2 := d.Add(ir.TypeIdentityChain, eyes.Spans...)
	c2.EnsureSlot(ir.SlotCoreferringStrings).Add(second.ID, eyes.ID)

	var buf bytes.Buffer
	report, err := Write(&buf, d, DefaultWriterOptions())
	if err != nil {
		t.Fatal(err)
	}
	if report.Discontinuous != 2 {
		t.Errorf("Discontinuous = %d, want 2", report.Discontinuous)
	}
	got := corefColumn(t, buf.String())
	// strains A and BUB/BnJ differ ; their eyes and the eyes of mice too .
	want := []string{"(1a)", "-", "-", "(1a)", "-", "-", "(1)", "(2b)", "-", "(2", "2)", "(2b", "2b)", "-", "-"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("coref column = %v\nwant          %v", got, want)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	d := newTokenizedDocument("the mouse eye blinks twice .", "it sees strains A and BUB/BnJ .", "they differ .")
	// "he mouse" starts inside a token and is widened to "the mouse"
	chainOf(d, ir.Span{Start: 1, End: 9}, span(t, d, "it", 0))
	disc := d.Add(ir.TypeNounPhrase, span(t, d, "strains", 0), span(t, d, "BUB/BnJ", 0))
	they := d.Add(ir.TypeNounPhrase, span(t, d, "they", 0))
	c := d.Add(ir.TypeIdentityChain, disc.Spans...)
	c.EnsureSlot(ir.SlotCoreferringStrings).Add(disc.ID, they.ID)
	chainOf(d, span(t, d, "the mouse eye", 0), span(t, d, "eye", 0))

	var first bytes.Buffer
	report, err := Write(&first, d, DefaultWriterOptions())
	if err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if report.AlignmentWarnings != 1 {
		t.Errorf("AlignmentWarnings = %d, want 1", report.AlignmentWarnings)
	}

	reread, _, err := Read(strings.NewReader(first.String()), ReaderOptions{Text: d.Text})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var second bytes.Buffer
	if _, err := Write(&second, reread, DefaultWriterOptions()); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if first.String() != second.String() {
		t.Errorf("round trip differs:\nfirst:\n%s\nsecond:\n%s", first.String(), second.String())
	}
}

func TestWriteNumbersChainsAfterAlignment(t *testing.T) {
	d := newTokenizedDocument("the cat sat on the mat .")
	// "he cat" sorts after "the cat sat" until it is widened to "the cat"
	chainOf(d, span(t, d, "the cat sat", 0), span(t, d, "on", 0))
	chainOf(d, ir.Span{Start: 1, End: 7}, span(t, d, "mat", 0))

	var first bytes.Buffer
	if _, err := Write(&first, d, DefaultWriterOptions()); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	got := corefColumn(t, first.String())
	want := []string{"(2|(1", "1)", "2)", "(2)", "-", "(1)", "-"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("coref column = %v, want %v", got, want)
	}

	reread, _, err := Read(strings.NewReader(first.String()), ReaderOptions{Text: d.Text})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var second bytes.Buffer
	if _, err := Write(&second, reread, DefaultWriterOptions()); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	if first.String() != second.String() {
		t.Errorf("chain numbering changed on rewrite:\nfirst:\n%s\nsecond:\n%s", first.String(), second.String())
	}
}

func TestWriteRejectsMentionsCollidingAfterAlignment(t *testing.T) {
	d := newTokenizedDocument("the mouse sleeps and it dreams while rats run .")
	// "mous" widens to "mouse", so the two chains merge over two distinct mentions
	// of the same token
	chainOf(d, span(t, d, "mouse", 0), span(t, d, "it", 0))
	chainOf(d, span(t, d, "rats", 0), ir.Span{Start: 4, End: 8})

	var buf bytes.Buffer
	report, err := Write(&buf, d, DefaultWriterOptions())
	if err == nil {
		t.Fatalf("expected ChainIntegrityError, got report %+v", report)
	}
	if !errors.Is(err, errors.ErrChainIntegrity) {
		t.Errorf("error = %v, want ErrChainIntegrity", err)
	}
}

func TestWriteCrossingMentions(t *testing.T) {
	d := newTokenizedDocument("a b c d e")
	chainOf(d, span(t, d, "a b c", 0), span(t, d, "b c d", 0))

	var buf bytes.Buffer
	report, err := Write(&buf, d, DefaultWriterOptions())
	if err != nil {
		t.Fatalf("crossing mentions must not fail: %v", err)
	}
	if report.Crossing != 1 {
		t.Errorf("Crossing = %d, want 1", report.Crossing)
	}
}

func TestWriteErrors(t *testing.T) {
	t.Run("no tokens", func(t *testing.T) {
		d := ir.NewDocument("empty", "", "text")
		_, err := Write(&bytes.Buffer{}, d, DefaultWriterOptions())
		if !errors.Is(err, errors.ErrStructuralFormat) {
			t.Errorf("error = %v, want structural error", err)
		}
	})

	t.Run("token outside sentences", func(t *testing.T) {
		d := ir.NewDocument("d", "", "one two")
		d.Add(ir.TypeToken, ir.Span{Start: 0, End: 3})
		d.Add(ir.TypeToken, ir.Span{Start: 4, End: 7})
		d.Add(ir.TypeSentence, ir.Span{Start: 0, End: 3})
		_, err := Write(&bytes.Buffer{}, d, DefaultWriterOptions())
		var sfe *errors.StructuralFormatError
		if !errors.As(err, &sfe) || sfe.Token != "two" {
			t.Errorf("error = %v, want structural error at token two", err)
		}
	})

	t.Run("same tokens twice in one chain", func(t *testing.T) {
		d := newTokenizedDocument("the mouse sleeps .")
		chainOf(d, ir.Span{Start: 4, End: 9}, ir.Span{Start: 4, End: 8})
		_, err := Write(&bytes.Buffer{}, d, DefaultWriterOptions())
		var cie *errors.ChainIntegrityError
		if !errors.As(err, &cie) {
			t.Fatalf("error = %v, want ChainIntegrityError", err)
		}
		if cie.ChainID != "1" || cie.Token != "mouse" {
			t.Errorf("error = %+v", cie)
		}
		if !errors.Is(err, errors.ErrChainIntegrity) {
			t.Error("should match ErrChainIntegrity")
		}
	})
}
