// Package json reads and writes the generic annotation interchange document:
// the text plus every annotation with its spans, attributes and slots.
// Slot members refer to annotations by their string id.
package json

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/annotconv/core/errors"
	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/core/plugins"
)

// FormatName is the registry tag of this format.
const FormatName = "json"

// Handler implements the codec registry interfaces for the JSON format.
type Handler struct{}

// Register registers this codec with the embedded registry.
func Register() {
	plugins.RegisterCodec(&plugins.Codec{
		Name:        FormatName,
		Description: "Generic annotation interchange JSON",
		Extensions:  []string{".json"},
		Reader:      &Handler{},
		Writer:      &Handler{},
	})
}

// init automatically registers this codec when the package is imported.
func init() {
	Register()
}

// Document is the serialized form of an ir.Document.
type Document struct {
	SourceID    string       `json:"source_id"`
	SourceDB    string       `json:"source_db,omitempty"`
	Text        string       `json:"text"`
	Annotations []Annotation `json:"annotations"`
}

// Annotation is the serialized form of an ir.Annotation.
type Annotation struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Spans      [][2]int          `json:"spans"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Slots      []Slot            `json:"slots,omitempty"`
}

// Slot is the serialized form of an ir.ComplexSlot.
type Slot struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Read implements plugins.FormatReader.
func (h *Handler) Read(r io.Reader, opts plugins.ReadOptions) (*ir.Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.NewParse(FormatName, opts.DocumentID, err.Error())
	}
	if opts.Text != "" && doc.Text == "" {
		doc.Text = opts.Text
	}
	if opts.DocumentID != "" {
		doc.SourceID = opts.DocumentID
	}
	if opts.SourceDB != "" && doc.SourceDB == "" {
		doc.SourceDB = opts.SourceDB
	}

	d, err := ToIR(&doc)
	if err != nil {
		return nil, err
	}
	if errs := ir.ValidateDocument(d); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, &errors.ValidationError{
			Field:   d.SourceID,
			Message: strings.Join(msgs, "; "),
		}
	}
	if !opts.Lenient {
		if err := ir.ValidateSpans(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Write implements plugins.FormatWriter. Every annotation is kept.
func (h *Handler) Write(w io.Writer, d *ir.Document, opts plugins.WriteOptions) (*ir.LossReport, error) {
	doc := FromIR(d)
	if opts.DocumentID != "" {
		doc.SourceID = opts.DocumentID
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, errors.NewIO("write", FormatName, err)
	}
	return ir.NewLossReport(FormatName, ir.LossL0), nil
}

// FromIR converts d to its serialized form. Ids are "a" plus the arena index.
func FromIR(d *ir.Document) *Document {
	doc := &Document{SourceID: d.SourceID, SourceDB: d.SourceDB, Text: d.Text}
	for _, a := range d.Annotations() {
		ja := Annotation{
			ID:    annotationID(a.ID),
			Type:  a.Type,
			Spans: make([][2]int, len(a.Spans)),
		}
		for i, s := range a.Spans {
			ja.Spans[i] = [2]int{s.Start, s.End}
		}
		if len(a.Attributes) > 0 {
			ja.Attributes = make(map[string]string, len(a.Attributes))
			for k, v := range a.Attributes {
				ja.Attributes[k] = v
			}
		}
		for _, s := range a.Slots {
			slot := Slot{Name: s.Name, Members: make([]string, 0, len(s.Members))}
			for _, m := range s.Members {
				slot.Members = append(slot.Members, annotationID(m))
			}
			ja.Slots = append(ja.Slots, slot)
		}
		doc.Annotations = append(doc.Annotations, ja)
	}
	return doc
}

func annotationID(id ir.AnnotationID) string {
	return "a" + strconv.Itoa(int(id))
}

// ToIR converts a serialized document. Slots may reference annotations that
// appear later in the list.
func ToIR(doc *Document) (*ir.Document, error) {
	d := ir.NewDocument(doc.SourceID, doc.SourceDB, doc.Text)
	ids := make(map[string]*ir.Annotation, len(doc.Annotations))

	for i, ja := range doc.Annotations {
		if ja.ID == "" {
			return nil, errors.NewStructural(FormatName, 0, fmt.Sprintf("annotations[%d]", i), "annotation id is required")
		}
		if _, dup := ids[ja.ID]; dup {
			return nil, errors.NewStructural(FormatName, 0, ja.ID, "duplicate annotation id")
		}
		spans := make([]ir.Span, len(ja.Spans))
		for j, s := range ja.Spans {
			spans[j] = ir.Span{Start: s[0], End: s[1]}
		}
		a := d.Add(ja.Type, spans...)
		for k, v := range ja.Attributes {
			a.SetAttribute(k, v)
		}
		ids[ja.ID] = a
	}

	for _, ja := range doc.Annotations {
		a := ids[ja.ID]
		for _, js := range ja.Slots {
			slot := a.EnsureSlot(js.Name)
			for _, m := range js.Members {
				member, ok := ids[m]
				if !ok {
					return nil, errors.NewStructural(FormatName, 0, m,
						fmt.Sprintf("slot %q of %s references an unknown annotation", js.Name, ja.ID))
				}
				slot.Add(member.ID)
			}
		}
	}
	return d, nil
}
