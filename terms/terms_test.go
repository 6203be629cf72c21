package terms

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	d, err := Read(strings.NewReader("source,target\nHaus,house\nBaum,tree\n"))
	require.NoError(t, err)
	assert.Equal(t, Dictionary{"Haus": "house", "Baum": "tree"}, d)
}

func TestReadMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"empty file", "", 1},
		{"one-column header", "source\nHaus,house\n", 1},
		{"three-column row", "source,target\nHaus,house,extra\n", 2},
		{"one-column row", "source,target\nHaus\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input))
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "want FormatError, got %v", err)
			assert.Equal(t, tt.line, fe.Line)
		})
	}
}

func TestFilterSingleWord(t *testing.T) {
	d := Dictionary{
		"Haus":          "house",
		"Rotes Haus":    "red house",
		"Hochhaus":      "high rise", // multi-word value dropped too
		"Kugelschreiber": "pen",
	}
	filtered := d.FilterSingleWord()
	assert.Equal(t, Dictionary{"Haus": "house", "Kugelschreiber": "pen"}, filtered)
	// Non-mutating.
	assert.Len(t, d, 4)
}

func TestMergePrecedence(t *testing.T) {
	d1 := Dictionary{"a": "x", "b": "y"}
	d2 := Dictionary{"a": "y"}
	merged := Merge(d1, d2)
	assert.Equal(t, "y", merged["a"])
	assert.Equal(t, "y", merged["b"])

	// Last element always wins, regardless of list length.
	merged = Merge(d2, d1, Dictionary{"a": "z"})
	assert.Equal(t, "z", merged["a"])
}

func TestKeys(t *testing.T) {
	d := Dictionary{"b": "2", "a": "1", "c": "3"}
	assert.Equal(t, []string{"a", "b", "c"}, d.Keys())
}
