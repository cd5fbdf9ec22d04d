// Package ir provides the in-memory annotation model shared by every format codec.
//
// A Document holds a read-only text and a set of stand-off annotations over it.
// Annotations are addressed by arena indices (AnnotationID) assigned when they are
// created, so two annotations with identical spans remain distinct entities.
//
// # Core Types
//
//   - Span: half-open byte offset range [Start, End) over the document text
//   - Annotation: a typed list of spans with attributes and complex slots
//   - ComplexSlot: a named, duplicate-free set of member annotations
//   - Document: the annotation arena plus source identity and text
//
// # Chains
//
// Chain structure is expressed only through slot membership. An identity chain
// is an annotation of type TypeIdentityChain whose SlotCoreferringStrings slot
// lists its mentions; an apposition is a TypeApposRelation annotation with
// SlotApposHead and SlotApposAttributes slots.
//
// # Discontinuous Spans
//
// An annotation with more than one span is a discontinuous mention. Its spans
// must be sorted, non-overlapping, and separated by at least one non-whitespace
// byte; ConsolidateSpans computes the canonical form and ValidateSpans reports
// every annotation that deviates from it.
//
// # Example
//
//	doc := ir.NewDocument("11532192", "PubMed", text)
//	np := doc.Add(ir.TypeNounPhrase, ir.Span{Start: 0, End: 20})
//	other := doc.Add(ir.TypeNounPhrase, ir.Span{Start: 54, End: 56})
//	chain := doc.Add(ir.TypeIdentityChain, np.Spans...)
//	chain.EnsureSlot(ir.SlotCoreferringStrings).Add(np.ID, other.ID)
package ir
