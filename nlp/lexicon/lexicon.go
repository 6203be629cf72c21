// Package lexicon implements an nlp.Tagger backed by a lexicon file mapping
// surface forms to lemma and part-of-speech. It covers the pipeline's needs
// for languages where a full morphological tagger is not deployed; unknown
// words fall back to their lowercased surface form with an "X" tag.
package lexicon

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/apedit/go-postedit/nlp"
)

// Entry is the tagging information for one surface form.
type Entry struct {
	Lemma string
	POS   string
}

// Tagger looks words up in an in-memory lexicon. Lookups try the exact
// surface form first, then its lowercased form.
type Tagger struct {
	entries map[string]Entry
}

// Compile time assert that Tagger implements nlp.Tagger.
var _ nlp.Tagger = &Tagger{}

// New creates a Tagger from an explicit lexicon.
func New(entries map[string]Entry) *Tagger {
	return &Tagger{entries: entries}
}

// Load reads a lexicon from a tab-separated file with three columns per
// line: surface form, lemma, part-of-speech. Blank lines and lines starting
// with '#' are skipped.
func Load(path string) (*Tagger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open lexicon %q", path)
	}
	defer f.Close()

	entries := make(map[string]Entry)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != 3 {
			return nil, errors.Errorf("lexicon %q: line %d has %d fields, want 3", path, line, len(fields))
		}
		entries[fields[0]] = Entry{Lemma: fields[1], POS: fields[2]}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read lexicon %q", path)
	}
	return &Tagger{entries: entries}, nil
}

// Tag implements nlp.Tagger. Exactly one token per input word is returned.
func (t *Tagger) Tag(sentences [][]string) ([][]nlp.Token, error) {
	tagged := make([][]nlp.Token, len(sentences))
	for i, words := range sentences {
		tokens := make([]nlp.Token, len(words))
		for j, word := range words {
			entry, ok := t.entries[word]
			if !ok {
				entry, ok = t.entries[strings.ToLower(word)]
			}
			if !ok {
				entry = Entry{Lemma: strings.ToLower(word), POS: "X"}
			}
			tokens[j] = nlp.Token{Surface: word, Lemma: entry.Lemma, POS: entry.POS}
		}
		tagged[i] = tokens
	}
	return tagged, nil
}
