package table

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// IDSet is a set of row identifiers.
type IDSet map[int]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...int) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set. A nil set contains nothing.
func (s IDSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id.
func (s IDSet) Add(id int) {
	s[id] = struct{}{}
}

// ParseIDList reads one integer row id per line. Blank lines and lines
// starting with '#' are skipped.
func ParseIDList(r io.Reader) (IDSet, error) {
	ids := make(IDSet)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid row id %q", lineNo, line)
		}
		ids.Add(id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading id list: %w", err)
	}
	return ids, nil
}
