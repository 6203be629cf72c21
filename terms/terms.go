// Package terms implements terminology dictionaries: case-sensitive mappings
// from source terms to the target terms a translation should use.
//
// Dictionaries are built once at startup (or merged per request) and are
// read-only afterwards.
package terms

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Dictionary maps a source term to the desired target term.
// Keys are case-sensitive and unique.
type Dictionary map[string]string

// FormatError reports a malformed dictionary file: a bad header or a row
// whose shape doesn't match the two-column (source, target) layout.
type FormatError struct {
	Path string
	Line int
	Msg  string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("dictionary format: line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("dictionary format: %s: line %d: %s", e.Path, e.Line, e.Msg)
}

// Load reads a dictionary from a CSV file with a header row and exactly two
// columns per entry: source term, target term.
func Load(path string) (Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open dictionary %q", path)
	}
	defer f.Close()
	d, err := Read(f)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, err
	}
	return d, nil
}

// Read parses dictionary rows from r. See Load for the expected shape.
func Read(r io.Reader) (Dictionary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // row shapes are validated here, with line numbers

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &FormatError{Line: 1, Msg: "missing header row"}
	}
	if err != nil {
		return nil, &FormatError{Line: 1, Msg: err.Error()}
	}
	if len(header) != 2 {
		return nil, &FormatError{Line: 1, Msg: fmt.Sprintf("header has %d columns, want 2", len(header))}
	}

	d := make(Dictionary)
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, &FormatError{Line: line, Msg: err.Error()}
		}
		if len(row) != 2 {
			return nil, &FormatError{Line: line, Msg: fmt.Sprintf("row has %d columns, want 2", len(row))}
		}
		d[row[0]] = row[1]
	}
	return d, nil
}

// FilterSingleWord returns a new dictionary retaining only entries whose key
// and value each contain no internal whitespace. The receiver is unchanged.
func (d Dictionary) FilterSingleWord() Dictionary {
	filtered := make(Dictionary, len(d))
	for k, v := range d {
		if strings.ContainsAny(k, " \t") || strings.ContainsAny(v, " \t") {
			continue
		}
		filtered[k] = v
	}
	return filtered
}

// Merge combines dictionaries in order: on key collisions, later dictionaries
// override earlier ones, so the last element always wins.
func Merge(dicts ...Dictionary) Dictionary {
	merged := make(Dictionary)
	for _, d := range dicts {
		for k, v := range d {
			merged[k] = v
		}
	}
	return merged
}

// Keys returns the source terms in sorted order.
func (d Dictionary) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
