// Package model defines the generation capability the translation pipeline
// drives. The neural network itself lives behind the Generator interface;
// this package only fixes the contract and ships an Echo implementation for
// wiring demos and tests.
package model

import (
	"context"

	"github.com/apedit/go-postedit/tokenizers/factored"
)

// Options parameterize one generation call.
type Options struct {
	// DecoderStartID seeds the decoder.
	DecoderStartID int
	// MaxLength bounds the generated sequence length.
	MaxLength int
	// NumBeams is the beam search width.
	NumBeams int
}

// Generator produces output token ids for a padded batch, one row per
// example, in batch order. Rows may have differing lengths and may include
// special tokens; the caller decodes them with the tokenizer that produced
// the batch. Implementations must honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, batch *factored.Batch, opts Options) ([][]int, error)
}

// Echo returns each example's machine-translation span verbatim, so a
// pipeline wired with it post-edits every segment to its own MT text. It
// stands in for a real model in demos and end-to-end tests.
type Echo struct{}

// Compile time assert that Echo implements Generator.
var _ Generator = Echo{}

// Generate implements Generator: for every example it selects the token ids
// at MT-factored non-pad positions.
func (Echo) Generate(ctx context.Context, batch *factored.Batch, _ Options) ([][]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]int, batch.Size())
	for i := range batch.InputIDs {
		row := []int{}
		for j, id := range batch.InputIDs[i] {
			if batch.AttentionMask[i][j] == 1 && batch.FactorIDs[i][j] == int(factored.FactorMT) {
				row = append(row, id)
			}
		}
		out[i] = row
	}
	return out, nil
}
