package ir

import (
	"errors"
	"testing"

	aerrors "github.com/FocuswithJustin/annotconv/core/errors"
)

func TestConsolidateSpans(t *testing.T) {
	const spaced = "The strain BUB2 of BnJ mice"
	const content = "abcd ptosi and  XYZ mice"

	tests := []struct {
		name        string
		text        string
		spans       []Span
		want        []Span
		wantOverlap bool
	}{
		{
			name:  "whitespace gaps are spliced",
			text:  "abcdefghi jklmn opq",
			spans: []Span{{4, 9}, {10, 15}, {16, 19}},
			want:  []Span{{4, 19}},
		},
		{
			name:  "content between spans keeps them apart",
			text:  content + "      ",
			spans: []Span{{4, 9}, {16, 19}},
			want:  []Span{{4, 9}, {16, 19}},
		},
		{
			name:  "touching spans are spliced",
			text:  spaced,
			spans: []Span{{0, 3}, {3, 10}},
			want:  []Span{{0, 10}},
		},
		{
			name:        "overlap takes the union",
			text:        spaced,
			spans:       []Span{{4, 10}, {0, 6}},
			want:        []Span{{0, 10}},
			wantOverlap: true,
		},
		{
			name:        "contained span is absorbed",
			text:        spaced,
			spans:       []Span{{0, 15}, {4, 10}, {19, 22}},
			want:        []Span{{0, 15}, {19, 22}},
			wantOverlap: true,
		},
		{
			name:  "unsorted input is sorted",
			text:  spaced,
			spans: []Span{{19, 22}, {0, 3}},
			want:  []Span{{0, 3}, {19, 22}},
		},
		{
			name:  "gap beyond text is treated as content",
			text:  "abc",
			spans: []Span{{0, 2}, {10, 12}},
			want:  []Span{{0, 2}, {10, 12}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, overlap := ConsolidateSpans(tt.spans, tt.text)
			if CompareSpanLists(got, tt.want) != 0 {
				t.Errorf("ConsolidateSpans() = %v, want %v", got, tt.want)
			}
			if overlap != tt.wantOverlap {
				t.Errorf("overlap = %v, want %v", overlap, tt.wantOverlap)
			}
		})
	}
}

func TestConsolidateSpansDoesNotMutateInput(t *testing.T) {
	in := []Span{{10, 15}, {4, 9}}
	ConsolidateSpans(in, "0123 56789 12345")
	if in[0] != (Span{10, 15}) || in[1] != (Span{4, 9}) {
		t.Errorf("input modified: %v", in)
	}
}

func TestValidateSpansReportsEveryAnnotation(t *testing.T) {
	doc := NewDocument("d1", "", "abcdefghi jklmn opq and more")
	ok := doc.Add(TypeNounPhrase, Span{0, 4}, Span{21, 24})
	contiguous := doc.Add(TypeNounPhrase, Span{4, 9}, Span{10, 15})
	overlapping := doc.Add(TypeNounPhrase, Span{0, 9}, Span{5, 12})
	doc.Add(TypeNounPhrase, Span{0, 4})

	if issues := CheckSpans(doc); len(issues) != 2 {
		t.Fatalf("CheckSpans() returned %d issues, want 2: %v", len(issues), issues)
	}

	err := ValidateSpans(doc)
	var sve *aerrors.SpanValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("ValidateSpans() = %v, want *SpanValidationError", err)
	}
	if sve.Issues[0].AnnotationID != int(contiguous.ID) || sve.Issues[0].Overlap {
		t.Errorf("first issue = %+v", sve.Issues[0])
	}
	if sve.Issues[1].AnnotationID != int(overlapping.ID) || !sve.Issues[1].Overlap {
		t.Errorf("second issue = %+v", sve.Issues[1])
	}
	if len(contiguous.Spans) != 2 {
		t.Error("ValidateSpans() must not mutate annotations")
	}
	if len(ok.Spans) != 2 {
		t.Error("canonical annotation changed")
	}
}

func TestRepairSpans(t *testing.T) {
	doc := NewDocument("d1", "", "abcdefghi jklmn opq")
	a := doc.Add(TypeNounPhrase, Span{4, 9}, Span{10, 15}, Span{16, 19})

	repaired := RepairSpans(doc)
	if len(repaired) != 1 {
		t.Fatalf("RepairSpans() = %v", repaired)
	}
	if len(a.Spans) != 1 || a.Spans[0] != (Span{4, 19}) {
		t.Errorf("spans after repair = %v, want [4,19)", a.Spans)
	}
	if err := ValidateSpans(doc); err != nil {
		t.Errorf("ValidateSpans() after repair = %v", err)
	}
}
