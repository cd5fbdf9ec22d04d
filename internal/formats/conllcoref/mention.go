package conllcoref

import "strings"

// FragmentLetters returns the suffix that tags the fragments of the i-th
// discontinuous mention of a document: a..z, then aa, bb, ... zz, then aaa.
// The letter repeats; this is not base-26 counting.
func FragmentLetters(i int) string {
	if i < 0 {
		return ""
	}
	return strings.Repeat(string(rune('a'+i%26)), i/26+1)
}
