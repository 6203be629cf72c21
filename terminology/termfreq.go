package terminology

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/apedit/go-postedit/nlp"
)

// Frequency reports how many of the terms enforced in an encoded source
// sentence actually surface in a target sentence.
type Frequency struct {
	// Enforced is the number of hint terms found in the target.
	Enforced int
	// Total is the number of hint terms present in the encoded source.
	Total int
}

// Ratio is Enforced/Total, or 1 when nothing was enforced.
func (f Frequency) Ratio() float64 {
	if f.Total == 0 {
		return 1
	}
	return float64(f.Enforced) / float64(f.Total)
}

// Add accumulates another measurement.
func (f Frequency) Add(other Frequency) Frequency {
	return Frequency{Enforced: f.Enforced + other.Enforced, Total: f.Total + other.Total}
}

// FrequencyCounter measures term enforcement against target sentences,
// comparing on lemmas so inflected surface forms still count.
type FrequencyCounter struct {
	tagger    nlp.Tagger
	separator string
}

// NewFrequencyCounter builds a counter using tagger for target lemmas.
func NewFrequencyCounter(tagger nlp.Tagger, separator string) *FrequencyCounter {
	if separator == "" {
		separator = DefaultSeparator
	}
	return &FrequencyCounter{tagger: tagger, separator: separator}
}

// Count measures one (encoded source, target) pair.
func (c *FrequencyCounter) Count(srcEncoded, tgt string) (Frequency, error) {
	tagged, err := c.tagger.Tag([][]string{strings.Fields(tgt)})
	if err != nil {
		return Frequency{}, errors.WithMessage(err, "tagging target sentence")
	}
	tgtLemmas := make(map[string]bool, len(tagged[0]))
	for _, tok := range tagged[0] {
		tgtLemmas[tok.Lemma] = true
	}

	var freq Frequency
	for _, word := range strings.Fields(srcEncoded) {
		parts := strings.Split(word, c.separator)
		for _, hint := range parts[1:] {
			freq.Total++
			if tgtLemmas[hint] {
				freq.Enforced++
			}
		}
	}
	return freq, nil
}

// CountLines measures many pairs and returns the aggregate.
func (c *FrequencyCounter) CountLines(srcEncoded, tgt []string) (Frequency, error) {
	if len(srcEncoded) != len(tgt) {
		return Frequency{}, errors.Errorf("source/target line count mismatch: %d vs %d", len(srcEncoded), len(tgt))
	}
	var total Frequency
	for i := range srcEncoded {
		freq, err := c.Count(srcEncoded[i], tgt[i])
		if err != nil {
			return Frequency{}, err
		}
		total = total.Add(freq)
	}
	return total, nil
}
