package ir

import "fmt"

// LossClass grades what an annotation conversion preserved.
type LossClass string

// Loss classes, from most to least fidelity.
const (
	// LossL0: every annotation, attribute and slot survives a round trip.
	LossL0 LossClass = "L0"
	// LossL1: chains and their mentions survive; chain numbering and
	// annotation ids are reassigned.
	LossL1 LossClass = "L1"
	// LossL2: chain membership survives but relation typing, unchained
	// mentions or exact mention boundaries do not.
	LossL2 LossClass = "L2"
	// LossL3: whole annotation types are dropped.
	LossL3 LossClass = "L3"
	// LossL4: only the text survives.
	LossL4 LossClass = "L4"
)

// lossOrder lists the classes by level.
var lossOrder = []LossClass{LossL0, LossL1, LossL2, LossL3, LossL4}

var lossDescriptions = map[LossClass]string{
	LossL0: "lossless",
	LossL1: "chains preserved, numbering reassigned",
	LossL2: "chain membership preserved, typing or boundaries lost",
	LossL3: "annotation types dropped",
	LossL4: "text only",
}

// IsValid reports whether l is one of the defined classes.
func (l LossClass) IsValid() bool {
	return l.Level() >= 0
}

// Level returns 0 for L0 through 4 for L4, and -1 for an unknown class.
func (l LossClass) Level() int {
	for i, c := range lossOrder {
		if c == l {
			return i
		}
	}
	return -1
}

// IsLossless reports whether nothing was lost.
func (l LossClass) IsLossless() bool {
	return l == LossL0
}

// IsSemanticallyLossless reports whether every chain and mention survived.
func (l LossClass) IsSemanticallyLossless() bool {
	return l == LossL0 || l == LossL1
}

// Describe returns a short human description of the class.
func (l LossClass) Describe() string {
	if d, ok := lossDescriptions[l]; ok {
		return d
	}
	return "unknown loss class"
}

// Worse returns whichever of l and o preserves less.
func (l LossClass) Worse(o LossClass) LossClass {
	if o.Level() > l.Level() {
		return o
	}
	return l
}

// LostElement is one annotation, or one group of annotations of a type, that
// a conversion could not carry.
type LostElement struct {
	// Path locates the element, e.g. "annotations[12]".
	Path string `json:"path"`
	// ElementType is the annotation type, e.g. "APPOS relation".
	ElementType string `json:"element_type"`
	Reason      string `json:"reason"`
	// Count is the number of annotations the entry stands for.
	Count int `json:"count"`
}

// LossReport documents the fidelity of one conversion.
type LossReport struct {
	SourceFormat string        `json:"source_format"`
	TargetFormat string        `json:"target_format"`
	LossClass    LossClass     `json:"loss_class"`
	LostElements []LostElement `json:"lost_elements,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// NewLossReport returns a report for a write into target that starts at
// class base.
func NewLossReport(target string, base LossClass) *LossReport {
	return &LossReport{SourceFormat: "ir", TargetFormat: target, LossClass: base}
}

// HasLoss reports whether anything beyond L0 was recorded.
func (r *LossReport) HasLoss() bool {
	return len(r.LostElements) > 0 || r.LossClass.Level() > 0
}

// Raise lowers the report's fidelity to lc if lc is worse than the current class.
func (r *LossReport) Raise(lc LossClass) {
	r.LossClass = r.LossClass.Worse(lc)
}

// Lose records that a could not be written intact and raises the class to lc.
func (r *LossReport) Lose(a *Annotation, lc LossClass, reason string) {
	r.Raise(lc)
	r.LostElements = append(r.LostElements, LostElement{
		Path:        fmt.Sprintf("annotations[%d]", a.ID),
		ElementType: a.Type,
		Reason:      reason,
		Count:       1,
	})
}

// LoseType records that all count annotations of typ were dropped.
func (r *LossReport) LoseType(typ string, count int, lc LossClass, reason string) {
	r.Raise(lc)
	r.LostElements = append(r.LostElements, LostElement{
		Path:        "annotations",
		ElementType: typ,
		Reason:      reason,
		Count:       count,
	})
}

// Warn adds a warning and raises the class to lc. Pass LossL0 to warn
// without changing the class.
func (r *LossReport) Warn(lc LossClass, warning string) {
	r.Raise(lc)
	r.Warnings = append(r.Warnings, warning)
}

// LostCount returns the number of annotations covered by LostElements.
func (r *LossReport) LostCount() int {
	n := 0
	for _, e := range r.LostElements {
		n += e.Count
	}
	return n
}
