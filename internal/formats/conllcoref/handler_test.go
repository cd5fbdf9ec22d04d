package conllcoref

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/core/plugins"
)

func TestCodecRegistered(t *testing.T) {
	c, err := plugins.GetCodec(FormatName)
	if err != nil {
		t.Fatalf("GetCodec: %v", err)
	}
	if !c.CanRead() || !c.CanWrite() {
		t.Error("codec should read and write")
	}
	byPath, err := plugins.CodecForPath("corpus/11532192.conll.xz")
	if err != nil || byPath.Name != FormatName {
		t.Errorf("CodecForPath = %v, %v", byPath, err)
	}
}

func TestHandlerRoundTrip(t *testing.T) {
	text, err := os.ReadFile(filepath.Join("testdata", "sample.txt"))
	if err != nil {
		t.Fatal(err)
	}
	input, err := os.ReadFile(filepath.Join("testdata", "sample.conll"))
	if err != nil {
		t.Fatal(err)
	}

	h := &Handler{}
	doc, err := h.Read(bytes.NewReader(input), plugins.ReadOptions{Text: string(text)})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var out bytes.Buffer
	loss, err := h.Write(&out, doc, plugins.DefaultWriteOptions())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !bytes.Equal(out.Bytes(), input) {
		t.Error("handler round trip changed the document")
	}
	if loss.LossClass != ir.LossL1 || len(loss.LostElements) != 0 {
		t.Errorf("loss = %+v, want L1 with nothing lost", loss)
	}
}

func TestHandlerLossReport(t *testing.T) {
	d := newTokenizedDocument("mice sleep and rats dream .")
	chainOf(d, span(t, d, "mice", 0), span(t, d, "rats", 0))
	d.Add(ir.TypeNounPhrase, span(t, d, "dream", 0))
	d.Add("Gene", span(t, d, "sleep", 0))

	var out bytes.Buffer
	loss, err := (&Handler{}).Write(&out, d, plugins.DefaultWriteOptions())
	if err != nil {
		t.Fatal(err)
	}
	if loss.LossClass != ir.LossL3 {
		t.Errorf("LossClass = %s, want L3", loss.LossClass)
	}
	if len(loss.LostElements) != 2 {
		t.Errorf("LostElements = %+v", loss.LostElements)
	}
}
