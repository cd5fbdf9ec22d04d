package chains

import (
	"sort"
	"strconv"

	"github.com/FocuswithJustin/annotconv/core/ir"
	"github.com/FocuswithJustin/annotconv/internal/logging"
)

// Merge describes chains folded into a surviving chain annotation.
type Merge struct {
	Into   ir.AnnotationID
	Merged []ir.AnnotationID
}

// RepairReport summarizes a RepairDocument pass.
type RepairReport struct {
	Merges []Merge
	// Respanned lists chains whose span was reset to their earliest member.
	Respanned []ir.AnnotationID
}

// Removed returns the ids of every chain annotation deleted by the pass.
func (r RepairReport) Removed() []ir.AnnotationID {
	var ids []ir.AnnotationID
	for _, m := range r.Merges {
		ids = append(ids, m.Merged...)
	}
	return ids
}

// RepairDocument merges identity chains of d that share a member annotation.
// The surviving chain of each group is the earliest one in document order; the
// others are removed from d. Every remaining chain's span is then reset to the
// span of its earliest member.
func RepairDocument(d *ir.Document) RepairReport {
	var report RepairReport

	chainAnns := d.OfType(ir.TypeIdentityChain)
	var memberLists [][]ir.AnnotationID
	for _, c := range chainAnns {
		if s := c.Slot(ir.SlotCoreferringStrings); s != nil && s.Len() > 0 {
			memberLists = append(memberLists, s.Members)
		}
	}

	groupOf := make(map[ir.AnnotationID]int)
	for g, members := range Consolidate(memberLists) {
		for _, m := range members {
			groupOf[m] = g
		}
	}

	survivors := make(map[int]*ir.Annotation)
	for _, c := range chainAnns {
		s := c.Slot(ir.SlotCoreferringStrings)
		if s == nil || s.Len() == 0 {
			continue
		}
		g := groupOf[s.Members[0]]
		keep, ok := survivors[g]
		if !ok {
			survivors[g] = c
			continue
		}
		keep.EnsureSlot(ir.SlotCoreferringStrings).Add(s.Members...)
		d.Remove(c.ID)
		report.addMerge(keep.ID, c.ID)
	}

	for _, m := range report.Merges {
		merged := make([]int, len(m.Merged))
		for i, id := range m.Merged {
			merged[i] = int(id)
		}
		logging.ChainMerge(d.SourceID, merged, int(m.Into))
	}

	for _, c := range d.OfType(ir.TypeIdentityChain) {
		if UpdateSpan(d, c) {
			report.Respanned = append(report.Respanned, c.ID)
		}
	}
	return report
}

func (r *RepairReport) addMerge(into, merged ir.AnnotationID) {
	for i := range r.Merges {
		if r.Merges[i].Into == into {
			r.Merges[i].Merged = append(r.Merges[i].Merged, merged)
			return
		}
	}
	r.Merges = append(r.Merges, Merge{Into: into, Merged: []ir.AnnotationID{merged}})
}

// EarliestMember returns the member of chain whose span list sorts first, or
// nil when the chain has no members.
func EarliestMember(d *ir.Document, chain *ir.Annotation) *ir.Annotation {
	members := d.Members(chain, ir.SlotCoreferringStrings)
	if len(members) == 0 {
		return nil
	}
	sort.SliceStable(members, func(i, j int) bool {
		return ir.CompareSpanLists(members[i].Spans, members[j].Spans) < 0
	})
	return members[0]
}

// UpdateSpan sets the chain's spans to those of its earliest member and
// reports whether they changed.
func UpdateSpan(d *ir.Document, chain *ir.Annotation) bool {
	first := EarliestMember(d, chain)
	if first == nil || ir.CompareSpanLists(first.Spans, chain.Spans) == 0 {
		return false
	}
	chain.Spans = append([]ir.Span(nil), first.Spans...)
	return true
}

// RemoveDegenerate deletes every identity chain with fewer than two members
// and returns the removed ids. Member annotations are kept.
func RemoveDegenerate(d *ir.Document) []ir.AnnotationID {
	var removed []ir.AnnotationID
	for _, c := range Degenerate(d) {
		chainID, ok := c.GetAttribute(ir.AttrChainID)
		if !ok {
			chainID = "#" + strconv.Itoa(int(c.ID))
		}
		logging.DegenerateChain(d.SourceID, chainID, memberCount(c))
		d.Remove(c.ID)
		removed = append(removed, c.ID)
	}
	return removed
}

// Degenerate returns the identity chains of d with fewer than two members.
func Degenerate(d *ir.Document) []*ir.Annotation {
	var out []*ir.Annotation
	for _, c := range d.OfType(ir.TypeIdentityChain) {
		if memberCount(c) < 2 {
			out = append(out, c)
		}
	}
	return out
}

func memberCount(c *ir.Annotation) int {
	if s := c.Slot(ir.SlotCoreferringStrings); s != nil {
		return s.Len()
	}
	return 0
}
