package txt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/core/plugins"
)

func TestRegister(t *testing.T) {
	codec, err := plugins.GetCodec(FormatName)
	if err != nil {
		t.Fatalf("codec not registered: %v", err)
	}
	if !codec.CanRead() || !codec.CanWrite() {
		t.Errorf("text codec should read and write")
	}
}

func TestRead(t *testing.T) {
	text := "Intraocular pressure  rises.\n\n  It falls again.\n"
	d, err := (&Handler{}).Read(strings.NewReader(text), plugins.ReadOptions{DocumentID: "d1"})
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if d.SourceID != "d1" || d.Text != text {
		t.Errorf("document = %q / %q", d.SourceID, d.Text)
	}

	var forms []string
	for _, tok := range d.OfType(ir.TypeToken) {
		forms = append(forms, d.CoveredText(tok))
	}
	want := []string{"Intraocular", "pressure", "rises.", "It", "falls", "again."}
	if strings.Join(forms, "|") != strings.Join(want, "|") {
		t.Errorf("tokens = %q, want %q", forms, want)
	}

	sentences := d.OfType(ir.TypeSentence)
	if len(sentences) != 2 {
		t.Fatalf("got %d sentences, want 2", len(sentences))
	}
	if got := d.CoveredText(sentences[1]); got != "It falls again." {
		t.Errorf("second sentence = %q", got)
	}
}

func TestReadTextMismatch(t *testing.T) {
	_, err := (&Handler{}).Read(strings.NewReader("a b"), plugins.ReadOptions{Text: "a c"})
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestWrite(t *testing.T) {
	d := ir.NewDocument("d1", "", "Pressure rises.")
	d.Add(ir.TypeToken, ir.Span{Start: 0, End: 8})
	d.Add(ir.TypeNounPhrase, ir.Span{Start: 0, End: 8})

	var buf bytes.Buffer
	report, err := (&Handler{}).Write(&buf, d, plugins.DefaultWriteOptions())
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if buf.String() != d.Text {
		t.Errorf("output = %q", buf.String())
	}
	if report.LossClass != ir.LossL4 || len(report.LostElements) != 2 {
		t.Errorf("report = %+v", report)
	}

	empty := ir.NewDocument("d2", "", "text only")
	report, err = (&Handler{}).Write(&bytes.Buffer{}, empty, plugins.DefaultWriteOptions())
	if err != nil {
		t.Fatal(err)
	}
	if report.LossClass != ir.LossL0 {
		t.Errorf("text-only document loss = %s, want L0", report.LossClass)
	}
}

func TestTokenize(t *testing.T) {
	text := "  a bb\tccc  "
	got := Tokenize(text, ir.Span{Start: 0, End: len(text)})
	want := []ir.Span{{Start: 2, End: 3}, {Start: 4, End: 6}, {Start: 7, End: 10}}
	if ir.CompareSpanLists(got, want) != 0 {
		t.Errorf("Tokenize = %v, want %v", got, want)
	}
	if len(Lines("")) != 0 || len(Lines("a\nb")) != 2 || len(Lines("a\n")) != 1 {
		t.Errorf("Lines boundary cases wrong")
	}
}
