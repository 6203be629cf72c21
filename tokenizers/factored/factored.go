// Package factored implements the factor-tagged tokenizer for post-editing
// models. On top of a sub-word tokenizer it produces, for every token, a
// factor tag recording the token's provenance: plain source text, the
// original token of a terminology-encoded word, the spliced-in target hint,
// or machine-translation text. All parallel arrays (token ids, attention
// mask, segment ids, factor ids, labels) are kept positionally in sync
// through sub-word splitting and padding.
package factored

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/apedit/go-postedit/tokenizers/api"
)

// Factor tags the provenance of a token. The numeric values are consumed by
// the model's factor embeddings and must not change.
type Factor int

const (
	// FactorSource marks plain source-sentence tokens.
	FactorSource Factor = 0
	// FactorMT marks machine-translation (and decoder-side) tokens.
	FactorMT Factor = 1
	// FactorSourceOriginal marks the original token of a terminology-encoded
	// word in append mode.
	FactorSourceOriginal Factor = 2
	// FactorSourceHint marks a spliced-in terminology hint token.
	FactorSourceHint Factor = 3
)

// Method selects how terminology-encoded words appear in the token stream.
type Method string

const (
	// MethodNone disables terminology handling: no separators are expected.
	MethodNone Method = ""
	// MethodAppend keeps the original token and appends its hints.
	MethodAppend Method = "append"
	// MethodReplace discards the original token, keeping only the hints.
	MethodReplace Method = "replace"
)

// ParseMethod validates a terminology method string ("" and "null" both mean
// none).
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "null":
		return MethodNone, nil
	case string(MethodAppend):
		return MethodAppend, nil
	case string(MethodReplace):
		return MethodReplace, nil
	}
	return MethodNone, errors.Errorf("unknown terminology method %q", s)
}

// DefaultIgnoreLabelID masks padded label positions out of the loss.
const DefaultIgnoreLabelID = -100

// ErrFactorDesync reports a fatal internal-consistency failure: the number
// of whole-word factors consumed while walking the sub-word pieces differs
// from the number of terminology-split words. The factor-assignment pass and
// the sub-word tokenizer disagree about word boundaries, which indicates a
// tokenizer/configuration mismatch, not a recoverable input problem.
var ErrFactorDesync = errors.New("factor/word count desynchronization")

// Example is one (source, machine translation[, post-edit]) unit to
// tokenize. Src may carry terminology separators; MT and PE never do.
// Empty MT or PE means the corresponding side is absent.
type Example struct {
	Src string
	MT  string
	PE  string
}

// Encoding holds the parallel arrays for one tokenized example. Every
// non-nil encoder field has the same length; every non-nil decoder field
// (the Decoder* fields and Labels) has the same length.
type Encoding struct {
	InputIDs      []int
	AttentionMask []int
	TokenTypeIDs  []int
	FactorIDs     []int

	DecoderInputIDs      []int
	DecoderAttentionMask []int
	DecoderTokenTypeIDs  []int
	DecoderFactorIDs     []int
	// Labels are the decoder input ids with pad positions set to the
	// loss-ignore id once padded.
	Labels []int
}

// EncoderLen returns the encoder-side token count.
func (e *Encoding) EncoderLen() int { return len(e.InputIDs) }

// DecoderLen returns the decoder-side token count (zero when the example
// had no post-edit side).
func (e *Encoding) DecoderLen() int { return len(e.DecoderInputIDs) }

// Tokenizer tags sub-word tokens with factors. Safe for concurrent use.
type Tokenizer struct {
	base          api.Tokenizer
	method        Method
	separator     string
	ignoreLabelID int

	clsID, sepID, padID int
}

// New creates a factored tokenizer over base. separator is the terminology
// separator (ignored under MethodNone).
func New(base api.Tokenizer, method Method, separator string) (*Tokenizer, error) {
	if method != MethodNone && separator == "" {
		return nil, errors.Errorf("terminology method %q requires a separator", method)
	}
	clsID, err := base.SpecialTokenID(api.TokClassification)
	if err != nil {
		return nil, errors.WithMessage(err, "base tokenizer has no classification token")
	}
	sepID, err := base.SpecialTokenID(api.TokSeparator)
	if err != nil {
		return nil, errors.WithMessage(err, "base tokenizer has no separator token")
	}
	padID, err := base.SpecialTokenID(api.TokPad)
	if err != nil {
		return nil, errors.WithMessage(err, "base tokenizer has no pad token")
	}
	return &Tokenizer{
		base:          base,
		method:        method,
		separator:     separator,
		ignoreLabelID: DefaultIgnoreLabelID,
		clsID:         clsID,
		sepID:         sepID,
		padID:         padID,
	}, nil
}

// Base returns the underlying sub-word tokenizer.
func (t *Tokenizer) Base() api.Tokenizer { return t.base }

// Method returns the configured terminology method.
func (t *Tokenizer) Method() Method { return t.method }

// Tokenize converts an example into its parallel arrays. The encoder side
// is "[CLS] src [SEP]" or "[CLS] src [SEP] mt [SEP]"; the decoder side (only
// when PE is present) is "[CLS] pe [SEP]" with every token tagged FactorMT.
func (t *Tokenizer) Tokenize(ex Example) (*Encoding, error) {
	enc, err := t.encodeEncoder(ex.Src, ex.MT)
	if err != nil {
		return nil, err
	}
	if ex.PE != "" {
		t.encodeDecoder(enc, ex.PE)
	}
	return enc, nil
}

// wordFactors maps a terminology-split word count to the whole-word factor
// tags it contributes.
func (t *Tokenizer) wordFactors(count int) []Factor {
	if count == 0 {
		return []Factor{FactorSource}
	}
	factors := make([]Factor, 0, count+1)
	if t.method == MethodAppend {
		factors = append(factors, FactorSourceOriginal)
	}
	for i := 0; i < count; i++ {
		factors = append(factors, FactorSourceHint)
	}
	return factors
}

// splitTerminology strips the separators out of the source words, applying
// the configured method, and returns the resulting word list.
func (t *Tokenizer) splitTerminology(words []string) []string {
	split := make([]string, 0, len(words))
	for _, word := range words {
		if t.method == MethodReplace {
			if idx := strings.Index(word, t.separator); idx >= 0 {
				word = word[idx+len(t.separator):]
			}
		}
		split = append(split, strings.Split(word, t.separator)...)
	}
	return split
}

func (t *Tokenizer) encodeEncoder(src, mt string) (*Encoding, error) {
	var wholeFactors []Factor
	cleanSrc := src
	if t.method != MethodNone {
		srcWords := strings.Fields(src)
		wholeFactors = make([]Factor, 0, len(srcWords)+1)
		for _, word := range srcWords {
			wholeFactors = append(wholeFactors, t.wordFactors(strings.Count(word, t.separator))...)
		}
		// The first separator token consumes this entry during the walk.
		wholeFactors = append(wholeFactors, FactorSource)
		for range strings.Fields(mt) {
			wholeFactors = append(wholeFactors, FactorMT)
		}
		cleanSrc = strings.Join(t.splitTerminology(srcWords), " ")
	}

	// Assemble the piece sequence with specials.
	pieces := []api.Piece{{ID: t.clsID, Text: ""}}
	pieces = append(pieces, t.base.EncodePieces(cleanSrc)...)
	pieces = append(pieces, api.Piece{ID: t.sepID, Text: ""})
	srcLen := len(pieces)
	if mt != "" {
		pieces = append(pieces, t.base.EncodePieces(mt)...)
		pieces = append(pieces, api.Piece{ID: t.sepID, Text: ""})
	}

	enc := &Encoding{
		InputIDs:      make([]int, len(pieces)),
		AttentionMask: make([]int, len(pieces)),
		TokenTypeIDs:  make([]int, len(pieces)),
		FactorIDs:     make([]int, len(pieces)),
	}
	for i, p := range pieces {
		enc.InputIDs[i] = p.ID
		enc.AttentionMask[i] = 1
		if i >= srcLen {
			enc.TokenTypeIDs[i] = 1
		}
	}

	if t.method == MethodNone {
		// Without terminology, factors reduce to segment membership: source
		// up to and including the first separator, MT afterwards.
		for i := range pieces {
			if i >= srcLen {
				enc.FactorIDs[i] = int(FactorMT)
			} else {
				enc.FactorIDs[i] = int(FactorSource)
			}
		}
		return enc, nil
	}

	// Walk the pieces, spending one whole-word factor per word start;
	// continuation pieces inherit, specials take their segment's base tag.
	ptr := -1
	sepPassed := false
	for i, p := range pieces {
		if t.base.IsSpecialID(p.ID) {
			if sepPassed {
				enc.FactorIDs[i] = int(FactorMT)
			} else {
				enc.FactorIDs[i] = int(FactorSource)
			}
			if p.ID == t.sepID {
				if !sepPassed {
					ptr++
				}
				sepPassed = true
			}
			continue
		}
		if !t.base.IsContinuation(p.Text) {
			ptr++
		}
		if ptr < 0 || ptr >= len(wholeFactors) {
			return nil, errors.Wrapf(ErrFactorDesync, "piece %d of %d walked past %d whole-word factors", i, len(pieces), len(wholeFactors))
		}
		enc.FactorIDs[i] = int(wholeFactors[ptr])
	}
	if ptr != len(wholeFactors)-1 {
		return nil, errors.Wrapf(ErrFactorDesync, "consumed %d of %d whole-word factors", ptr+1, len(wholeFactors))
	}
	return enc, nil
}

func (t *Tokenizer) encodeDecoder(enc *Encoding, pe string) {
	pieces := []api.Piece{{ID: t.clsID, Text: ""}}
	pieces = append(pieces, t.base.EncodePieces(pe)...)
	pieces = append(pieces, api.Piece{ID: t.sepID, Text: ""})

	n := len(pieces)
	enc.DecoderInputIDs = make([]int, n)
	enc.DecoderAttentionMask = make([]int, n)
	enc.DecoderTokenTypeIDs = make([]int, n)
	enc.DecoderFactorIDs = make([]int, n)
	enc.Labels = make([]int, n)
	for i, p := range pieces {
		enc.DecoderInputIDs[i] = p.ID
		enc.DecoderAttentionMask[i] = 1
		enc.DecoderTokenTypeIDs[i] = int(FactorMT)
		enc.DecoderFactorIDs[i] = int(FactorMT)
		enc.Labels[i] = p.ID
	}
}
