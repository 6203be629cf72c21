// Package heuralign implements a lexical heuristic nlp.Aligner. Words are
// linked when their surfaces match exactly, when their lowercased forms
// match, or when they share a sufficiently long prefix; ties between
// candidate targets are broken by distance from the diagonal, so roughly
// parallel sentences align positionally.
//
// It stands in for heavyweight neural aligners behind the same interface.
package heuralign

import (
	"strings"

	"github.com/apedit/go-postedit/nlp"
)

// Aligner aligns sentence pairs with lexical heuristics.
type Aligner struct {
	// MinPrefix is the minimum shared-prefix length (in runes) for a fuzzy
	// match. Zero means fuzzy matching is disabled.
	MinPrefix int
}

// Compile time assert that Aligner implements nlp.Aligner.
var _ nlp.Aligner = &Aligner{}

// New returns an Aligner with fuzzy prefix matching at 4 runes.
func New() *Aligner {
	return &Aligner{MinPrefix: 4}
}

// Align implements nlp.Aligner. Each source word links to at most one target
// word and vice versa (a greedy one-to-one matching).
func (a *Aligner) Align(src, tgt []string) (nlp.Alignment, error) {
	alignment := make(nlp.Alignment)
	usedTgt := make([]bool, len(tgt))

	for i, s := range src {
		best := -1
		bestScore := 0
		bestDist := len(src) + len(tgt)
		for j, t := range tgt {
			if usedTgt[j] {
				continue
			}
			score := a.match(s, t)
			if score == 0 {
				continue
			}
			dist := diagonalDistance(i, j, len(src), len(tgt))
			if score > bestScore || (score == bestScore && dist < bestDist) {
				best = j
				bestScore = score
				bestDist = dist
			}
		}
		if best >= 0 {
			usedTgt[best] = true
			alignment[nlp.Link{I: i, J: best}] = struct{}{}
		}
	}
	return alignment, nil
}

// match scores a word pair: 3 exact, 2 case-insensitive, 1 shared prefix.
func (a *Aligner) match(s, t string) int {
	if s == t {
		return 3
	}
	ls, lt := strings.ToLower(s), strings.ToLower(t)
	if ls == lt {
		return 2
	}
	if a.MinPrefix > 0 && sharedPrefixLen(ls, lt) >= a.MinPrefix {
		return 1
	}
	return 0
}

func sharedPrefixLen(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n := 0
	for n < len(ra) && n < len(rb) && ra[n] == rb[n] {
		n++
	}
	return n
}

// diagonalDistance measures how far (i, j) strays from the sentence
// diagonal, scaled to avoid integer division artifacts on short sentences.
func diagonalDistance(i, j, srcLen, tgtLen int) int {
	if srcLen == 0 || tgtLen == 0 {
		return 0
	}
	d := i*tgtLen - j*srcLen
	if d < 0 {
		d = -d
	}
	return d
}
