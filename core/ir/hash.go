package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// HashBytes computes the SHA-256 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashString computes the SHA-256 hash of a string and returns it as a hex string.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// Blake3Hash computes the BLAKE3 hash of bytes and returns it as a hex string.
func Blake3Hash(data []byte) string {
	h := blake3.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Fingerprint computes a BLAKE3 hash of the document's canonical form.
// The canonical form does not depend on AnnotationIDs or creation order: each
// annotation is rendered from its type, spans, attributes and the structural
// keys of its slot members, and the rendered lines are sorted.
func Fingerprint(d *Document) string {
	h := blake3.New()
	h.Write([]byte(d.SourceID))
	h.Write([]byte{0})
	h.Write([]byte(d.SourceDB))
	h.Write([]byte{0})
	h.Write([]byte(HashString(d.Text)))
	h.Write([]byte{0})
	for _, line := range CanonicalLines(d) {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalLines renders every live annotation as a single line and returns
// the lines sorted.
func CanonicalLines(d *Document) []string {
	anns := d.Annotations()
	lines := make([]string, 0, len(anns))
	for _, a := range anns {
		var sb strings.Builder
		sb.WriteString(a.StructuralKey())
		for _, k := range SortedAttributeKeys(a) {
			if k == AttrChainID {
				// source numbering is reassigned on every write
				continue
			}
			sb.WriteString("|")
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(a.Attributes[k])
		}
		slots := append([]*ComplexSlot(nil), a.Slots...)
		sort.Slice(slots, func(i, j int) bool { return slots[i].Name < slots[j].Name })
		for _, s := range slots {
			keys := make([]string, 0, len(s.Members))
			for _, m := range d.Members(a, s.Name) {
				keys = append(keys, m.StructuralKey())
			}
			sort.Strings(keys)
			sb.WriteString("|")
			sb.WriteString(s.Name)
			sb.WriteString("{")
			sb.WriteString(strings.Join(keys, ","))
			sb.WriteString("}")
		}
		lines = append(lines, sb.String())
	}
	sort.Strings(lines)
	return lines
}
