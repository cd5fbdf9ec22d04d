package batch

import (
	"bytes"
	"fmt"

	"github.com/FocuswithJustin/annotconv/core/chains"
	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/core/plugins"
	"github.com/FocuswithJustin/annotconv/internal/formats/conllu"
)

// Conversion is the outcome of converting one document.
type Conversion struct {
	Document *ir.Document
	Output   []byte
	Loss     *ir.LossReport
	// SpanRepairs and ChainMerges count what Repair changed.
	SpanRepairs int
	ChainMerges int
	// Removed lists chains of one deleted by Clean.
	Removed []ir.AnnotationID
}

// Convert reads job.Data with the job's source codec, applies the optional
// token source and repairs, and writes the document with the target codec.
// Spans must be in canonical form after repair.
func Convert(job Job, opts Options) (*Conversion, error) {
	doc, err := Load(job, opts)
	if err != nil {
		return nil, err
	}
	conv := &Conversion{Document: doc}

	if opts.Repair {
		conv.SpanRepairs = len(ir.RepairSpans(doc))
		conv.ChainMerges = len(chains.RepairDocument(doc).Merges)
	}
	if opts.Clean {
		conv.Removed = chains.RemoveDegenerate(doc)
	}
	if err := ir.ValidateSpans(doc); err != nil {
		return conv, err
	}

	writer, err := plugins.GetCodec(job.To)
	if err != nil {
		return conv, err
	}
	if !writer.CanWrite() {
		return conv, errors.NewUnsupported("write", fmt.Sprintf("format %s is read-only", writer.Name))
	}

	wopts := opts.Write
	if job.DocumentID != "" {
		wopts.DocumentID = job.DocumentID
	}
	var buf bytes.Buffer
	loss, err := writer.Writer.Write(&buf, doc, wopts)
	if err != nil {
		return conv, err
	}
	loss.SourceFormat = job.From
	conv.Output = buf.Bytes()
	conv.Loss = loss
	return conv, nil
}

// Load reads job.Data into a document and, if job.Tokens is set, copies
// token and sentence annotations from that CoNLL-U source. Reading is
// lenient when opts.Lenient or opts.Repair is set so that non-canonical
// spans reach the caller.
func Load(job Job, opts Options) (*ir.Document, error) {
	reader, err := plugins.GetCodec(job.From)
	if err != nil {
		return nil, err
	}
	if !reader.CanRead() {
		return nil, errors.NewUnsupported("read", fmt.Sprintf("format %s is write-only", reader.Name))
	}

	doc, err := reader.Reader.Read(bytes.NewReader(job.Data), plugins.ReadOptions{
		Text:       job.Text,
		DocumentID: job.DocumentID,
		SourceDB:   opts.SourceDB,
		Lenient:    opts.Lenient || opts.Repair,
	})
	if err != nil {
		return nil, err
	}

	if len(job.Tokens) > 0 {
		tokens, err := (&conllu.Handler{}).Read(bytes.NewReader(job.Tokens), plugins.ReadOptions{Text: doc.Text})
		if err != nil {
			return nil, errors.Wrap(err, "token source")
		}
		if _, err := conllu.AddTokens(doc, tokens); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
