// Package spm adapts a SentencePiece model ("tokenizer.model" artifact) to
// the api.Tokenizer capability, for post-editing models trained with a
// SentencePiece vocabulary instead of a BERT vocab.txt.
package spm

import (
	"strings"

	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/pkg/errors"

	"github.com/apedit/go-postedit/tokenizers/api"
)

// WordBoundary is the SentencePiece metaspace marker (U+2581): pieces
// carrying it start a new word, pieces without it continue one.
const WordBoundary = "▁"

// Tokenizer implements api.Tokenizer over a SentencePiece processor.
type Tokenizer struct {
	proc *esentencepiece.Processor
	info *esentencepiece.ModelInfo
}

// Compile time assert that Tokenizer implements api.Tokenizer.
var _ api.Tokenizer = &Tokenizer{}

// New creates a Tokenizer from a SentencePiece model file.
func New(modelPath string) (*Tokenizer, error) {
	proc, err := esentencepiece.NewProcessorFromPath(modelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "can't create sentencepiece tokenizer from %q", modelPath)
	}
	return &Tokenizer{proc: proc, info: proc.ModelInfo()}, nil
}

// EncodePieces implements api.Tokenizer. Each whitespace-delimited word is
// encoded independently so the piece stream never merges or re-splits words.
func (t *Tokenizer) EncodePieces(text string) []api.Piece {
	var pieces []api.Piece
	for _, word := range strings.Fields(text) {
		for _, tok := range t.proc.Encode(word) {
			pieces = append(pieces, api.Piece{ID: tok.ID, Text: tok.Text})
		}
	}
	return pieces
}

// Decode implements api.Tokenizer.
func (t *Tokenizer) Decode(ids []int, skipSpecial bool) string {
	if skipSpecial {
		kept := make([]int, 0, len(ids))
		for _, id := range ids {
			if t.IsSpecialID(id) {
				continue
			}
			kept = append(kept, id)
		}
		ids = kept
	}
	return t.proc.Decode(ids)
}

// IsContinuation implements api.Tokenizer: pieces without the word-boundary
// marker continue the previous word.
func (t *Tokenizer) IsContinuation(piece string) bool {
	return !strings.HasPrefix(piece, WordBoundary)
}

// SpecialTokenID implements api.Tokenizer.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		return t.info.UnknownID, nil
	case api.TokPad:
		if t.info.PadID >= 0 {
			return t.info.PadID, nil
		}
	case api.TokBeginningOfSentence, api.TokClassification:
		if t.info.BeginningOfSentenceID >= 0 {
			return t.info.BeginningOfSentenceID, nil
		}
	case api.TokEndOfSentence, api.TokSeparator:
		if t.info.EndOfSentenceID >= 0 {
			return t.info.EndOfSentenceID, nil
		}
	}
	return 0, errors.Errorf("special token %s not defined by sentencepiece model", token)
}

// IsSpecialID implements api.Tokenizer.
func (t *Tokenizer) IsSpecialID(id int) bool {
	return id == t.info.UnknownID || id == t.info.PadID ||
		id == t.info.BeginningOfSentenceID || id == t.info.EndOfSentenceID
}
