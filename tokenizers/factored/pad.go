package factored

import (
	"github.com/pkg/errors"
)

// Side selects which end of a sequence receives padding.
type Side string

const (
	// SideRight appends padding (the default).
	SideRight Side = "right"
	// SideLeft prepends padding.
	SideLeft Side = "left"
)

// PadOptions control batch padding.
type PadOptions struct {
	// MaxLength pads every example to this length instead of the batch
	// maximum. Zero means use the batch maximum. It applies to both the
	// encoder and decoder field groups.
	MaxLength int

	// PadToMultipleOf rounds the padded length up to a multiple of this
	// value (hardware alignment). Zero disables rounding.
	PadToMultipleOf int

	// Side is the padding side for every field group. Empty means right.
	Side Side
}

// Batch holds the padded parallel arrays of a group of examples. Within the
// encoder field group every row has identical length, likewise within the
// decoder group; AttentionMask is 1 exactly at non-pad positions.
type Batch struct {
	InputIDs      [][]int
	AttentionMask [][]int
	TokenTypeIDs  [][]int
	FactorIDs     [][]int

	DecoderInputIDs      [][]int
	DecoderAttentionMask [][]int
	DecoderTokenTypeIDs  [][]int
	DecoderFactorIDs     [][]int
	Labels               [][]int
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int { return len(b.InputIDs) }

// Pad groups encodings into a batch, padding the encoder fields together
// and, when present, the decoder fields in a second pass through the same
// routine. Token ids pad with the pad token, attention masks with 0, labels
// with the loss-ignore id, and factor/type ids with a per-example value
// derived from their last real entry (min(1, last)), so padding never
// introduces a terminology factor.
func (t *Tokenizer) Pad(encodings []*Encoding, opts PadOptions) (*Batch, error) {
	if len(encodings) == 0 {
		return nil, errors.New("cannot pad an empty batch")
	}
	if opts.Side == "" {
		opts.Side = SideRight
	}
	if opts.Side != SideRight && opts.Side != SideLeft {
		return nil, errors.Errorf("unknown padding side %q", opts.Side)
	}

	hasDecoder := encodings[0].DecoderInputIDs != nil
	for i, enc := range encodings {
		if (enc.DecoderInputIDs != nil) != hasDecoder {
			return nil, errors.Errorf("example %d decoder fields are inconsistent with the rest of the batch", i)
		}
	}

	encLen, err := targetLength(encodings, (*Encoding).EncoderLen, opts)
	if err != nil {
		return nil, err
	}

	batch := &Batch{
		InputIDs:      make([][]int, len(encodings)),
		AttentionMask: make([][]int, len(encodings)),
		TokenTypeIDs:  make([][]int, len(encodings)),
		FactorIDs:     make([][]int, len(encodings)),
	}
	for i, enc := range encodings {
		batch.InputIDs[i] = padRow(enc.InputIDs, encLen, t.padID, opts.Side)
		batch.AttentionMask[i] = padRow(enc.AttentionMask, encLen, 0, opts.Side)
		batch.TokenTypeIDs[i] = padRow(enc.TokenTypeIDs, encLen, trailingPadValue(enc.TokenTypeIDs), opts.Side)
		batch.FactorIDs[i] = padRow(enc.FactorIDs, encLen, trailingPadValue(enc.FactorIDs), opts.Side)
	}

	if !hasDecoder {
		return batch, nil
	}

	decLen, err := targetLength(encodings, (*Encoding).DecoderLen, opts)
	if err != nil {
		return nil, err
	}
	batch.DecoderInputIDs = make([][]int, len(encodings))
	batch.DecoderAttentionMask = make([][]int, len(encodings))
	batch.DecoderTokenTypeIDs = make([][]int, len(encodings))
	batch.DecoderFactorIDs = make([][]int, len(encodings))
	batch.Labels = make([][]int, len(encodings))
	for i, enc := range encodings {
		batch.DecoderInputIDs[i] = padRow(enc.DecoderInputIDs, decLen, t.padID, opts.Side)
		batch.DecoderAttentionMask[i] = padRow(enc.DecoderAttentionMask, decLen, 0, opts.Side)
		batch.DecoderTokenTypeIDs[i] = padRow(enc.DecoderTokenTypeIDs, decLen, trailingPadValue(enc.DecoderTokenTypeIDs), opts.Side)
		batch.DecoderFactorIDs[i] = padRow(enc.DecoderFactorIDs, decLen, trailingPadValue(enc.DecoderFactorIDs), opts.Side)
		batch.Labels[i] = padRow(enc.Labels, decLen, t.ignoreLabelID, opts.Side)
	}
	return batch, nil
}

// targetLength resolves the padded length for one field group.
func targetLength(encodings []*Encoding, length func(*Encoding) int, opts PadOptions) (int, error) {
	maxLen := 0
	for _, enc := range encodings {
		if l := length(enc); l > maxLen {
			maxLen = l
		}
	}
	if opts.MaxLength > 0 {
		if opts.MaxLength < maxLen {
			return 0, errors.Errorf("max length %d is shorter than the longest example (%d tokens)", opts.MaxLength, maxLen)
		}
		maxLen = opts.MaxLength
	}
	if opts.PadToMultipleOf > 0 && maxLen%opts.PadToMultipleOf != 0 {
		maxLen += opts.PadToMultipleOf - maxLen%opts.PadToMultipleOf
	}
	return maxLen, nil
}

// trailingPadValue is the factor/type padding rule: reuse the last real
// value clamped to the MT factor, so terminology factors never pad.
func trailingPadValue(row []int) int {
	if len(row) == 0 {
		return 0
	}
	last := row[len(row)-1]
	if last > 1 {
		return 1
	}
	return last
}

func padRow(row []int, length, padValue int, side Side) []int {
	padded := make([]int, length)
	padLen := length - len(row)
	if side == SideLeft {
		for i := 0; i < padLen; i++ {
			padded[i] = padValue
		}
		copy(padded[padLen:], row)
	} else {
		copy(padded, row)
		for i := len(row); i < length; i++ {
			padded[i] = padValue
		}
	}
	return padded
}
