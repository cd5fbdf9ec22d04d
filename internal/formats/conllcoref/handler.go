// Package conllcoref reads and writes CoNLL-Coref 2011/2012 coreference
// files. Chains are encoded as bracket markers in the last column of each
// token line: "(N" opens a mention of chain N, "N)" closes the innermost open
// mention of N, and "(N)" is a one-token mention.
package conllcoref

import (
	"io"

	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/core/plugins"
)

// FormatName is the registry tag and error prefix of this format.
const FormatName = "conll-coref"

// Handler adapts Read and Write to the codec registry.
type Handler struct{}

// Register registers this codec with the embedded registry.
func Register() {
	plugins.RegisterCodec(&plugins.Codec{
		Name:        FormatName,
		Description: "CoNLL-Coref 2011/2012 coreference columns",
		Extensions:  []string{".conll", ".coref", ".gold_conll"},
		Reader:      &Handler{},
		Writer:      &Handler{},
	})
}

// init automatically registers this codec when the package is imported.
func init() {
	Register()
}

// Read implements plugins.FormatReader.
func (h *Handler) Read(r io.Reader, opts plugins.ReadOptions) (*ir.Document, error) {
	doc, _, err := Read(r, ReaderOptions{
		Text:       opts.Text,
		DocumentID: opts.DocumentID,
		SourceDB:   opts.SourceDB,
	})
	return doc, err
}

// Write implements plugins.FormatWriter.
func (h *Handler) Write(w io.Writer, d *ir.Document, opts plugins.WriteOptions) (*ir.LossReport, error) {
	report, err := Write(w, d, WriterOptions{
		IncludeAppositions: opts.IncludeAppositions,
		KeepDegenerate:     opts.KeepDegenerate,
		DocumentID:         opts.DocumentID,
	})
	if err != nil {
		return nil, err
	}
	return lossReport(d, report, opts), nil
}

// lossReport classifies what the bracket encoding cannot carry: noun phrases
// outside any chain, annotation types other than tokens, sentences, mentions
// and chains, appositions folded into chains, and dropped chains of one.
func lossReport(d *ir.Document, wr *WriteReport, opts plugins.WriteOptions) *ir.LossReport {
	lr := ir.NewLossReport(FormatName, ir.LossL1)

	inChain := make(map[ir.AnnotationID]bool)
	for _, c := range d.OfType(ir.TypeIdentityChain) {
		for _, m := range d.Members(c, ir.SlotCoreferringStrings) {
			inChain[m.ID] = true
		}
	}
	for _, a := range d.OfType(ir.TypeApposRelation) {
		if opts.IncludeAppositions {
			lr.Lose(a, ir.LossL2, "written as an identity chain")
			for _, name := range []string{ir.SlotApposHead, ir.SlotApposAttributes} {
				for _, m := range d.Members(a, name) {
					inChain[m.ID] = true
				}
			}
			continue
		}
		lr.Lose(a, ir.LossL3, "appositions disabled")
	}

	for _, a := range d.Annotations() {
		switch a.Type {
		case ir.TypeToken, ir.TypeSentence, ir.TypeIdentityChain, ir.TypeApposRelation:
			continue
		case ir.TypeNounPhrase:
			if inChain[a.ID] {
				continue
			}
			lr.Lose(a, ir.LossL2, "mention outside every chain")
		default:
			lr.Lose(a, ir.LossL3, "type not representable in CoNLL-Coref")
		}
	}

	if wr.DroppedDegenerate > 0 {
		lr.Warn(ir.LossL2, "dropped chains with a single mention")
	}
	if wr.AlignmentWarnings > 0 {
		lr.Warn(ir.LossL2, "mention boundaries moved to token boundaries")
	}
	if wr.Crossing > 0 {
		lr.Warn(ir.LossL0, "crossing mentions in one chain are ambiguous")
	}
	return lr
}
