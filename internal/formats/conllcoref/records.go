package conllcoref

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/annotconv/core/errors"
)

// ColumnCount is the number of columns on a CoNLL-Coref 2011/2012 token line.
const ColumnCount = 13

// DefaultPart is the part number written when none is known.
const DefaultPart = "000"

var headerPattern = regexp.MustCompile(`^#begin document \((.*)\);\s*part\s+(\S+)\s*$`)

// Record is one token line.
type Record struct {
	DocumentID string
	Part       string
	WordIndex  int
	Form       string
	UPOS       string
	// Columns 6-12 (parse bit, lemma, frameset, sense, speaker, NE, args);
	// the writer fills them with "-".
	Middle []string
	Coref  string
	Line   int
}

// RecordDocument is the record-level content of one "#begin document" block.
type RecordDocument struct {
	ID        string
	Part      string
	Sentences [][]Record
}

// TokenCount returns the number of records over all sentences.
func (rd *RecordDocument) TokenCount() int {
	n := 0
	for _, s := range rd.Sentences {
		n += len(s)
	}
	return n
}

// ReadRecords parses one document of CoNLL-Coref token lines. Comment lines
// other than the begin/end markers are ignored; blank lines separate sentences.
func ReadRecords(r io.Reader) (*RecordDocument, error) {
	rd := &RecordDocument{}
	var sentence []Record
	flush := func() {
		if len(sentence) > 0 {
			rd.Sentences = append(rd.Sentences, sentence)
			sentence = nil
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	lineNo := 0
	begun, ended := false, false
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r\n")

		switch {
		case strings.HasPrefix(line, "#begin document"):
			if begun {
				return nil, errors.NewStructural(FormatName, lineNo, line, "second document in one file")
			}
			m := headerPattern.FindStringSubmatch(line)
			if m == nil {
				return nil, errors.NewStructural(FormatName, lineNo, line, "malformed document header")
			}
			rd.ID, rd.Part = m[1], m[2]
			begun = true
			continue
		case strings.HasPrefix(line, "#end document"):
			flush()
			ended = true
			continue
		case strings.HasPrefix(line, "#"):
			continue
		case strings.TrimSpace(line) == "":
			flush()
			continue
		}

		if ended {
			return nil, errors.NewStructural(FormatName, lineNo, line, "token line after end of document")
		}
		rec, err := parseRecord(line, lineNo)
		if err != nil {
			return nil, err
		}
		sentence = append(sentence, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewIO("read", FormatName, err)
	}
	flush()

	if rd.ID == "" && len(rd.Sentences) > 0 {
		rd.ID = rd.Sentences[0][0].DocumentID
	}
	if rd.Part == "" {
		rd.Part = DefaultPart
	}
	return rd, nil
}

func parseRecord(line string, lineNo int) (Record, error) {
	var cols []string
	if strings.Contains(line, "\t") {
		cols = strings.Split(line, "\t")
	} else {
		cols = strings.Fields(line)
	}
	if len(cols) < ColumnCount {
		return Record{}, errors.NewStructural(FormatName, lineNo, line,
			fmt.Sprintf("token line has %d columns, want %d", len(cols), ColumnCount))
	}
	idx, err := strconv.Atoi(strings.TrimSpace(cols[2]))
	if err != nil {
		return Record{}, errors.NewStructural(FormatName, lineNo, cols[2], "word index is not a number")
	}
	last := len(cols) - 1
	return Record{
		DocumentID: cols[0],
		Part:       cols[1],
		WordIndex:  idx,
		Form:       cols[3],
		UPOS:       cols[4],
		Middle:     append([]string(nil), cols[5:last]...),
		Coref:      strings.TrimSpace(cols[last]),
		Line:       lineNo,
	}, nil
}

// WriteRecords writes rd in CoNLL-Coref layout, ending with "#end document".
func WriteRecords(w io.Writer, rd *RecordDocument) error {
	bw := bufio.NewWriter(w)
	part := rd.Part
	if part == "" {
		part = DefaultPart
	}
	fmt.Fprintf(bw, "#begin document (%s); part %s\n", rd.ID, part)

	cols := make([]string, ColumnCount)
	for _, sentence := range rd.Sentences {
		for i, rec := range sentence {
			cols[0] = rd.ID
			cols[1] = "0"
			cols[2] = strconv.Itoa(i + 1)
			cols[3] = fieldOrDash(rec.Form)
			cols[4] = fieldOrDash(rec.UPOS)
			for j := 5; j < ColumnCount-1; j++ {
				cols[j] = "-"
				if k := j - 5; k < len(rec.Middle) {
					cols[j] = fieldOrDash(rec.Middle[k])
				}
			}
			cols[ColumnCount-1] = fieldOrDash(rec.Coref)
			bw.WriteString(strings.Join(cols, "\t"))
			bw.WriteByte('\n')
		}
		bw.WriteByte('\n')
	}
	bw.WriteString("#end document\n")
	if err := bw.Flush(); err != nil {
		return errors.NewIO("write", FormatName, err)
	}
	return nil
}

// fieldOrDash keeps a column non-empty and free of the tab separator.
func fieldOrDash(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	return strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return ' '
		}
		return r
	}, s)
}
