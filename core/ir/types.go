package ir

import (
	"sort"
	"strings"
)

// Annotation type names.
const (
	TypeToken         = "token"
	TypeSentence      = "sentence"
	TypeNounPhrase    = "Noun phrase"
	TypeIdentityChain = "IDENTITY chain"
	TypeApposRelation = "APPOS relation"
)

// Complex slot names.
const (
	SlotCoreferringStrings = "Coreferring strings"
	SlotApposHead          = "APPOS Head"
	SlotApposAttributes    = "APPOS Attributes"
)

// Attribute keys.
const (
	// AttrUPOS holds the universal part-of-speech tag of a token.
	AttrUPOS = "upos"
	// AttrChainID holds the chain number an identity chain had in its source file.
	AttrChainID = "chain_id"
)

// AnnotationID is the arena index of an annotation within its Document.
type AnnotationID int

// ComplexSlot is a named, unordered, duplicate-free set of member annotations.
// Members keep insertion order so that output is reproducible.
type ComplexSlot struct {
	Name    string
	Members []AnnotationID
}

// Contains reports whether id is a member of the slot.
func (s *ComplexSlot) Contains(id AnnotationID) bool {
	for _, m := range s.Members {
		if m == id {
			return true
		}
	}
	return false
}

// Add inserts the given ids, skipping ones already present, and returns the
// number of members actually added.
func (s *ComplexSlot) Add(ids ...AnnotationID) int {
	added := 0
	for _, id := range ids {
		if !s.Contains(id) {
			s.Members = append(s.Members, id)
			added++
		}
	}
	return added
}

// Remove deletes id from the slot and reports whether it was present.
func (s *ComplexSlot) Remove(id AnnotationID) bool {
	for i, m := range s.Members {
		if m == id {
			s.Members = append(s.Members[:i], s.Members[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of members.
func (s *ComplexSlot) Len() int {
	return len(s.Members)
}

// Annotation is a typed, possibly discontinuous region of the document text.
type Annotation struct {
	// ID is the arena index assigned by Document.Add.
	ID AnnotationID

	// Type is the annotation type name (e.g., "Noun phrase", "IDENTITY chain").
	Type string

	// Spans are sorted, non-overlapping regions of the text.
	Spans []Span

	// Slots are the named complex slots of this annotation.
	Slots []*ComplexSlot

	// Attributes contains primitive slot values (e.g., "upos").
	Attributes map[string]string
}

// Start returns the start offset of the first span.
func (a *Annotation) Start() int {
	if len(a.Spans) == 0 {
		return 0
	}
	return a.Spans[0].Start
}

// End returns the end offset of the last span.
func (a *Annotation) End() int {
	if len(a.Spans) == 0 {
		return 0
	}
	return a.Spans[len(a.Spans)-1].End
}

// IsDiscontinuous reports whether the annotation has more than one span.
func (a *Annotation) IsDiscontinuous() bool {
	return len(a.Spans) > 1
}

// Slot returns the named slot, or nil if the annotation has none by that name.
func (a *Annotation) Slot(name string) *ComplexSlot {
	for _, s := range a.Slots {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// EnsureSlot returns the named slot, creating it if needed.
func (a *Annotation) EnsureSlot(name string) *ComplexSlot {
	if s := a.Slot(name); s != nil {
		return s
	}
	s := &ComplexSlot{Name: name}
	a.Slots = append(a.Slots, s)
	return s
}

// SetAttribute sets an attribute value.
func (a *Annotation) SetAttribute(key, value string) {
	if a.Attributes == nil {
		a.Attributes = make(map[string]string)
	}
	a.Attributes[key] = value
}

// GetAttribute gets an attribute value.
func (a *Annotation) GetAttribute(key string) (string, bool) {
	if a.Attributes == nil {
		return "", false
	}
	v, ok := a.Attributes[key]
	return v, ok
}

// StructuralKey returns a key that is equal for annotations with the same type
// and span list.
func (a *Annotation) StructuralKey() string {
	return a.Type + "|" + SpanKey(a.Spans)
}

// Document is a text together with the annotations drawn over it.
// Annotations live in an arena; removed entries leave a nil hole so that
// AnnotationIDs stay stable for the lifetime of the document.
type Document struct {
	// SourceID identifies the document within its source (e.g., a PubMed id).
	SourceID string

	// SourceDB names the source collection (e.g., "PubMed").
	SourceDB string

	// Text is the read-only document text.
	Text string

	arena []*Annotation
}

// NewDocument creates an empty document.
func NewDocument(sourceID, sourceDB, text string) *Document {
	return &Document{SourceID: sourceID, SourceDB: sourceDB, Text: text}
}

// Add creates a new annotation with the given type and spans.
func (d *Document) Add(typ string, spans ...Span) *Annotation {
	a := &Annotation{
		ID:    AnnotationID(len(d.arena)),
		Type:  typ,
		Spans: append([]Span(nil), spans...),
	}
	d.arena = append(d.arena, a)
	return a
}

// Get returns the annotation with the given id, or nil if it does not exist.
func (d *Document) Get(id AnnotationID) *Annotation {
	if id < 0 || int(id) >= len(d.arena) {
		return nil
	}
	return d.arena[id]
}

// Remove deletes the annotation and drops it from every slot that lists it.
func (d *Document) Remove(id AnnotationID) {
	if d.Get(id) == nil {
		return
	}
	d.arena[id] = nil
	for _, a := range d.arena {
		if a == nil {
			continue
		}
		for _, s := range a.Slots {
			s.Remove(id)
		}
	}
}

// Annotations returns the live annotations in creation order.
func (d *Document) Annotations() []*Annotation {
	out := make([]*Annotation, 0, len(d.arena))
	for _, a := range d.arena {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

// OfType returns the live annotations of the given type in creation order.
func (d *Document) OfType(typ string) []*Annotation {
	var out []*Annotation
	for _, a := range d.arena {
		if a != nil && a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

// Len returns the number of live annotations.
func (d *Document) Len() int {
	n := 0
	for _, a := range d.arena {
		if a != nil {
			n++
		}
	}
	return n
}

// Members resolves the members of the named slot of a. Members that no longer
// exist are skipped.
func (d *Document) Members(a *Annotation, slot string) []*Annotation {
	s := a.Slot(slot)
	if s == nil {
		return nil
	}
	out := make([]*Annotation, 0, len(s.Members))
	for _, id := range s.Members {
		if m := d.Get(id); m != nil {
			out = append(out, m)
		}
	}
	return out
}

// CoveredText returns the text under the annotation's spans, joining the
// fragments of a discontinuous annotation with " ... ".
func (d *Document) CoveredText(a *Annotation) string {
	parts := make([]string, 0, len(a.Spans))
	for _, s := range a.Spans {
		parts = append(parts, d.TextOf(s))
	}
	return strings.Join(parts, " ... ")
}

// TextOf returns the text under s, clamped to the document bounds.
func (d *Document) TextOf(s Span) string {
	start, end := s.Start, s.End
	if start < 0 {
		start = 0
	}
	if end > len(d.Text) {
		end = len(d.Text)
	}
	if start >= end {
		return ""
	}
	return d.Text[start:end]
}

// CountByType returns the number of live annotations per type.
func (d *Document) CountByType() map[string]int {
	counts := make(map[string]int)
	for _, a := range d.arena {
		if a != nil {
			counts[a.Type]++
		}
	}
	return counts
}

// SortedAttributeKeys returns the attribute keys of a in sorted order.
func SortedAttributeKeys(a *Annotation) []string {
	keys := make([]string, 0, len(a.Attributes))
	for k := range a.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
