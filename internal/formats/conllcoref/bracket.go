package conllcoref

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/annotconv/core/errors"
)

// BracketKind is the shape of one coreference bracket.
type BracketKind int

const (
	// BracketOpen is "(N": a mention of chain N starts on this token.
	BracketOpen BracketKind = iota
	// BracketClose is "N)": the innermost open mention of chain N ends here.
	BracketClose
	// BracketSingle is "(N)": a one-token mention of chain N.
	BracketSingle
)

// Bracket is one element of a coreference field. Fragment is the letter
// suffix carried by fragments of a discontinuous mention, or empty.
type Bracket struct {
	Kind     BracketKind
	Chain    int
	Fragment string
}

// Key returns the chain number with its fragment suffix, e.g. "12" or "12a".
func (b Bracket) Key() string {
	return strconv.Itoa(b.Chain) + b.Fragment
}

func (b Bracket) String() string {
	switch b.Kind {
	case BracketOpen:
		return "(" + b.Key()
	case BracketClose:
		return b.Key() + ")"
	default:
		return "(" + b.Key() + ")"
	}
}

// Grammar for the coreference column. A bare "-" is handled before parsing.
type corefGrammar struct {
	Brackets []*bracketGrammar `@@ ( ( "|" | ";" ) @@ )*`
}

type bracketGrammar struct {
	Opened *openGrammar  `  "(" @@`
	Closed *closeGrammar `| @@`
}

type openGrammar struct {
	Chain    int    `@Int`
	Fragment string `@Letters?`
	Single   bool   `@")"?`
}

type closeGrammar struct {
	Chain    int    `@Int`
	Fragment string `@Letters? ")"`
}

var corefLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Letters", Pattern: `[a-z]+`},
	{Name: "Punct", Pattern: `[()|;]`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})

var corefParser = participle.MustBuild[corefGrammar](
	participle.Lexer(corefLexer),
	participle.Elide("Whitespace"),
)

// ParseCorefField parses the last column of a token line. "-" and the empty
// string yield no brackets.
func ParseCorefField(field string) ([]Bracket, error) {
	field = strings.TrimSpace(field)
	if field == "" || field == "-" || field == "_" {
		return nil, nil
	}

	parsed, err := corefParser.ParseString("", field)
	if err != nil {
		return nil, &errors.StructuralFormatError{
			Format:  FormatName,
			Token:   field,
			Message: fmt.Sprintf("malformed coreference field: %v", err),
		}
	}

	out := make([]Bracket, 0, len(parsed.Brackets))
	for _, b := range parsed.Brackets {
		switch {
		case b.Opened != nil && b.Opened.Single:
			out = append(out, Bracket{Kind: BracketSingle, Chain: b.Opened.Chain, Fragment: b.Opened.Fragment})
		case b.Opened != nil:
			out = append(out, Bracket{Kind: BracketOpen, Chain: b.Opened.Chain, Fragment: b.Opened.Fragment})
		default:
			out = append(out, Bracket{Kind: BracketClose, Chain: b.Closed.Chain, Fragment: b.Closed.Fragment})
		}
	}
	return out, nil
}

// MarkerKind says whether a mention begins, ends, or begins and ends on a token.
type MarkerKind int

const (
	MarkerBegin MarkerKind = iota
	MarkerEnd
	MarkerSingle
)

// Marker is a chain boundary recorded on a token before encoding.
type Marker struct {
	Kind     MarkerKind
	Chain    int
	Fragment string
}

func (m Marker) key() string {
	return strconv.Itoa(m.Chain) + m.Fragment
}

// ParseMarkers reads the textual side-channel form "BEGIN_9;END_23" (";" or
// "," separated). A BEGIN and END for the same id on one token collapse into
// a single-token marker.
func ParseMarkers(s string) ([]Marker, error) {
	var begins, ends []Marker
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' }) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var kind MarkerKind
		var id string
		switch {
		case strings.HasPrefix(part, "BEGIN_"):
			kind, id = MarkerBegin, strings.TrimPrefix(part, "BEGIN_")
		case strings.HasPrefix(part, "END_"):
			kind, id = MarkerEnd, strings.TrimPrefix(part, "END_")
		default:
			return nil, errors.NewStructural(FormatName, 0, part, "unknown marker")
		}
		chain, fragment, err := splitChainKey(id)
		if err != nil {
			return nil, errors.NewStructural(FormatName, 0, part, err.Error())
		}
		m := Marker{Kind: kind, Chain: chain, Fragment: fragment}
		if kind == MarkerBegin {
			begins = append(begins, m)
		} else {
			ends = append(ends, m)
		}
	}

	var out []Marker
	out = append(out, begins...)
	for _, e := range ends {
		paired := false
		for i := range out {
			if out[i].Kind == MarkerBegin && out[i].key() == e.key() {
				out[i].Kind = MarkerSingle
				paired = true
				break
			}
		}
		if !paired {
			out = append(out, e)
		}
	}
	return out, nil
}

// splitChainKey splits "12ab" into 12 and "ab".
func splitChainKey(id string) (int, string, error) {
	i := 0
	for i < len(id) && id[i] >= '0' && id[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, "", fmt.Errorf("chain id %q does not start with a number", id)
	}
	chain, err := strconv.Atoi(id[:i])
	if err != nil {
		return 0, "", err
	}
	fragment := id[i:]
	for _, r := range fragment {
		if r < 'a' || r > 'z' {
			return 0, "", fmt.Errorf("chain id %q has an invalid suffix", id)
		}
	}
	return chain, fragment, nil
}

// EncodeMarkers renders the markers of one token as a coreference field.
// Opens come first, then single-token mentions, then closes, each group
// ordered by descending id. If an id both ends and begins a mention on the
// token, its close is moved ahead of the opens so that it pops the earlier
// mention. No markers encode as "-".
func EncodeMarkers(markers []Marker) string {
	if len(markers) == 0 {
		return "-"
	}

	var opens, singles, closes []Marker
	opening := make(map[string]bool)
	for _, m := range markers {
		if m.Kind == MarkerBegin {
			opening[m.key()] = true
		}
	}

	var early []Marker
	for _, m := range markers {
		switch m.Kind {
		case MarkerBegin:
			opens = append(opens, m)
		case MarkerSingle:
			singles = append(singles, m)
		default:
			if opening[m.key()] {
				early = append(early, m)
			} else {
				closes = append(closes, m)
			}
		}
	}

	parts := make([]string, 0, len(markers))
	for _, group := range [][]Marker{early, opens, singles, closes} {
		sortDescending(group)
		for _, m := range group {
			parts = append(parts, markerBracket(m).String())
		}
	}
	return strings.Join(parts, "|")
}

func markerBracket(m Marker) Bracket {
	b := Bracket{Chain: m.Chain, Fragment: m.Fragment}
	switch m.Kind {
	case MarkerBegin:
		b.Kind = BracketOpen
	case MarkerEnd:
		b.Kind = BracketClose
	default:
		b.Kind = BracketSingle
	}
	return b
}

func sortDescending(ms []Marker) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].Chain != ms[j].Chain {
			return ms[i].Chain > ms[j].Chain
		}
		return ms[i].Fragment > ms[j].Fragment
	})
}
