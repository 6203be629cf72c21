// Package wordpiece implements a BERT-style WordPiece tokenizer over the
// artifact set the post-editing models ship with: a vocab.txt (one token per
// line, line number = id), a tokenizer_config.json and a
// special_tokens_map.json.
package wordpiece

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"

	"github.com/apedit/go-postedit/tokenizers/api"
)

// Default special token surfaces for BERT vocabularies.
const (
	DefaultUnkToken  = "[UNK]"
	DefaultPadToken  = "[PAD]"
	DefaultClsToken  = "[CLS]"
	DefaultSepToken  = "[SEP]"
	DefaultMaskToken = "[MASK]"

	// ContinuationPrefix marks sub-word pieces that continue a word.
	ContinuationPrefix = "##"

	maxInputCharsPerWord = 100
)

// Options configure vocabulary interpretation.
type Options struct {
	// Lowercase lowercases words before sub-word splitting (mirrors
	// do_lower_case in tokenizer_config.json).
	Lowercase bool

	// StripAccents removes combining marks after NFD normalization.
	StripAccents bool

	// Special token surfaces; empty fields use the BERT defaults.
	UnkToken, PadToken, ClsToken, SepToken, MaskToken string
}

func (o Options) withDefaults() Options {
	if o.UnkToken == "" {
		o.UnkToken = DefaultUnkToken
	}
	if o.PadToken == "" {
		o.PadToken = DefaultPadToken
	}
	if o.ClsToken == "" {
		o.ClsToken = DefaultClsToken
	}
	if o.SepToken == "" {
		o.SepToken = DefaultSepToken
	}
	if o.MaskToken == "" {
		o.MaskToken = DefaultMaskToken
	}
	return o
}

// Tokenizer implements api.Tokenizer with the WordPiece algorithm.
type Tokenizer struct {
	opts      Options
	vocab     map[string]int
	idToToken []string

	unkID, padID, clsID, sepID, maskID int
	specialIDs                         map[int]bool
}

// Compile time assert that Tokenizer implements api.Tokenizer.
var _ api.Tokenizer = &Tokenizer{}

// NewFromVocab builds a tokenizer from an ordered vocabulary (index = id).
func NewFromVocab(tokens []string, opts Options) (*Tokenizer, error) {
	opts = opts.withDefaults()
	t := &Tokenizer{
		opts:       opts,
		vocab:      make(map[string]int, len(tokens)),
		idToToken:  append([]string(nil), tokens...),
		specialIDs: make(map[int]bool),
	}
	for id, token := range tokens {
		t.vocab[token] = id
	}

	var ok bool
	if t.unkID, ok = t.vocab[opts.UnkToken]; !ok {
		return nil, errors.Errorf("vocabulary does not define unknown token %q", opts.UnkToken)
	}
	if t.padID, ok = t.vocab[opts.PadToken]; !ok {
		return nil, errors.Errorf("vocabulary does not define pad token %q", opts.PadToken)
	}
	if t.clsID, ok = t.vocab[opts.ClsToken]; !ok {
		return nil, errors.Errorf("vocabulary does not define cls token %q", opts.ClsToken)
	}
	if t.sepID, ok = t.vocab[opts.SepToken]; !ok {
		return nil, errors.Errorf("vocabulary does not define sep token %q", opts.SepToken)
	}
	// The mask token is optional at inference time.
	if t.maskID, ok = t.vocab[opts.MaskToken]; !ok {
		t.maskID = -1
	}
	for _, id := range []int{t.unkID, t.padID, t.clsID, t.sepID, t.maskID} {
		if id >= 0 {
			t.specialIDs[id] = true
		}
	}
	return t, nil
}

// LoadVocab reads a vocab.txt file: one token per line, ids are line
// numbers starting at zero.
func LoadVocab(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open vocabulary %q", path)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read vocabulary %q", path)
	}
	if len(tokens) == 0 {
		return nil, errors.Errorf("vocabulary %q is empty", path)
	}
	return tokens, nil
}

// Load builds a tokenizer from a model artifact directory containing
// vocab.txt, and optionally tokenizer_config.json and
// special_tokens_map.json.
func Load(dir string) (*Tokenizer, error) {
	tokens, err := LoadVocab(filepath.Join(dir, "vocab.txt"))
	if err != nil {
		return nil, err
	}
	opts, err := loadOptions(dir)
	if err != nil {
		return nil, err
	}
	return NewFromVocab(tokens, opts)
}

// EncodePieces implements api.Tokenizer. Text is split on whitespace only;
// each word then goes through WordPiece. Words that cannot be covered by the
// vocabulary collapse to the unknown token.
func (t *Tokenizer) EncodePieces(text string) []api.Piece {
	var pieces []api.Piece
	for _, word := range strings.Fields(text) {
		// Special token surfaces pass through whole.
		if id, ok := t.vocab[word]; ok && t.specialIDs[id] {
			pieces = append(pieces, api.Piece{ID: id, Text: word})
			continue
		}
		pieces = append(pieces, t.wordPiece(t.normalizeWord(word))...)
	}
	return pieces
}

func (t *Tokenizer) normalizeWord(word string) string {
	if t.opts.StripAccents {
		word = removeAccents(norm.NFD.String(word))
	}
	if t.opts.Lowercase {
		word = strings.ToLower(word)
	}
	return word
}

// wordPiece greedily matches the longest vocabulary entry, prefixing
// non-initial pieces with "##".
func (t *Tokenizer) wordPiece(word string) []api.Piece {
	if word == "" {
		return nil
	}
	if len(word) > maxInputCharsPerWord {
		return []api.Piece{{ID: t.unkID, Text: t.opts.UnkToken}}
	}

	var pieces []api.Piece
	start := 0
	for start < len(word) {
		end := len(word)
		found := false
		for start < end {
			substr := word[start:end]
			if start > 0 {
				substr = ContinuationPrefix + substr
			}
			if id, ok := t.vocab[substr]; ok {
				pieces = append(pieces, api.Piece{ID: id, Text: substr})
				found = true
				break
			}
			end--
		}
		if !found {
			return []api.Piece{{ID: t.unkID, Text: t.opts.UnkToken}}
		}
		start = end
	}
	return pieces
}

// Decode implements api.Tokenizer: tokens joined by spaces with
// continuation prefixes merged into the preceding word.
func (t *Tokenizer) Decode(ids []int, skipSpecial bool) string {
	var sb strings.Builder
	first := true
	for _, id := range ids {
		if id < 0 || id >= len(t.idToToken) {
			continue
		}
		if skipSpecial && t.specialIDs[id] {
			continue
		}
		token := t.idToToken[id]
		if strings.HasPrefix(token, ContinuationPrefix) {
			sb.WriteString(strings.TrimPrefix(token, ContinuationPrefix))
			continue
		}
		if !first {
			sb.WriteString(" ")
		}
		sb.WriteString(token)
		first = false
	}
	return sb.String()
}

// IsContinuation implements api.Tokenizer.
func (t *Tokenizer) IsContinuation(piece string) bool {
	return strings.HasPrefix(piece, ContinuationPrefix)
}

// SpecialTokenID implements api.Tokenizer. TokBeginningOfSentence falls back
// to CLS and TokEndOfSentence to SEP, BERT-style.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		return t.unkID, nil
	case api.TokPad:
		return t.padID, nil
	case api.TokClassification, api.TokBeginningOfSentence:
		return t.clsID, nil
	case api.TokSeparator, api.TokEndOfSentence:
		return t.sepID, nil
	case api.TokMask:
		if t.maskID >= 0 {
			return t.maskID, nil
		}
	}
	return 0, errors.Errorf("special token %s not found in vocabulary", token)
}

// IsSpecialID implements api.Tokenizer.
func (t *Tokenizer) IsSpecialID(id int) bool {
	return t.specialIDs[id]
}

// VocabSize returns the vocabulary size.
func (t *Tokenizer) VocabSize() int { return len(t.idToToken) }

func removeAccents(text string) string {
	var sb strings.Builder
	for _, r := range text {
		if !unicode.Is(unicode.Mn, r) { // Mn = Mark, Nonspacing
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
