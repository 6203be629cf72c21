// Package api defines the sub-word tokenizer capability the factored
// tokenizer is built on. It is a separate package so concrete tokenizers
// (wordpiece, spm) and their consumers don't depend on each other.
package api

import "fmt"

// Piece is one sub-word token: its vocabulary id and surface text.
type Piece struct {
	ID   int
	Text string
}

// Tokenizer converts text to sub-word pieces and back.
//
// EncodePieces must split text on whitespace only before sub-word splitting:
// the factor bookkeeping upstream counts whitespace-delimited words, and a
// tokenizer that re-segments (e.g. splits punctuation into new words) would
// desynchronize it. Word-level tokenization happens before this layer.
type Tokenizer interface {
	// EncodePieces encodes text without adding special tokens.
	EncodePieces(text string) []Piece

	// Decode converts ids back to text. If skipSpecial is true, special
	// tokens (padding, separators, ...) are dropped first.
	Decode(ids []int, skipSpecial bool) string

	// IsContinuation reports whether a piece continues the previous word
	// (e.g. a "##" WordPiece or a SentencePiece piece without the word
	// boundary marker).
	IsContinuation(piece string) bool

	// SpecialTokenID returns the id for the given special token, or an
	// error if the vocabulary doesn't define it.
	SpecialTokenID(token SpecialToken) (int, error)

	// IsSpecialID reports whether id belongs to a special token.
	IsSpecialID(id int) bool
}

// SpecialToken is an enum of commonly used special tokens. Different
// vocabularies map the same semantic token to different ids.
type SpecialToken int

const (
	TokBeginningOfSentence SpecialToken = iota
	TokEndOfSentence
	TokUnknown
	TokPad
	TokMask
	TokClassification
	TokSeparator
	TokSpecialTokensCount
)

var specialTokenNames = [TokSpecialTokensCount]string{
	"beginning_of_sentence", "end_of_sentence", "unknown", "pad", "mask",
	"classification", "separator",
}

// String implements fmt.Stringer.
func (t SpecialToken) String() string {
	if t < 0 || t >= TokSpecialTokensCount {
		return fmt.Sprintf("SpecialToken(%d)", int(t))
	}
	return specialTokenNames[t]
}
