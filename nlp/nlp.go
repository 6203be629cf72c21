// Package nlp defines the narrow capability interfaces the terminology
// pipeline needs from linguistic tooling: part-of-speech/lemma tagging and
// word alignment. Concrete adapters live in subpackages; anything satisfying
// these interfaces (including out-of-process taggers or neural aligners) is
// substitutable without touching the pipeline.
package nlp

// Token is one word of a pretokenized sentence with its tagging results.
type Token struct {
	Surface string
	Lemma   string
	// POS is a universal part-of-speech tag ("NOUN", "VERB", ...).
	POS string
}

// Tagger assigns lemma and part-of-speech information to pretokenized
// sentences. Implementations must return exactly one Token per input word,
// in input order.
type Tagger interface {
	// Tag processes a batch of pretokenized sentences.
	Tag(sentences [][]string) ([][]Token, error)
}

// Link relates the source word at index I to the target word at index J.
type Link struct {
	I int
	J int
}

// Alignment is the set of links between a word-tokenized sentence pair.
type Alignment map[Link]struct{}

// Contains reports whether (i, j) is in the alignment.
func (a Alignment) Contains(i, j int) bool {
	_, ok := a[Link{I: i, J: j}]
	return ok
}

// Links returns the alignment as a slice, in unspecified order.
func (a Alignment) Links() []Link {
	links := make([]Link, 0, len(a))
	for l := range a {
		links = append(links, l)
	}
	return links
}

// FromLinks builds an Alignment from a list of links.
func FromLinks(links []Link) Alignment {
	a := make(Alignment, len(links))
	for _, l := range links {
		a[l] = struct{}{}
	}
	return a
}

// Aligner computes word alignments between parallel pretokenized sentences.
type Aligner interface {
	Align(src, tgt []string) (Alignment, error)
}
