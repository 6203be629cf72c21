// Package sampler groups example indices into batches. The input ordering is
// expected to come from a length-grouping sampler, so consecutive indices
// have similar lengths; this package only decides where batch boundaries
// fall: after a fixed number of examples, or greedily under a combined
// encoder+decoder token budget.
package sampler

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Lengths holds the token counts of one encoded example.
type Lengths struct {
	Encoder int
	Decoder int
}

// Total is the example's own cost: encoder plus decoder tokens.
func (l Lengths) Total() int { return l.Encoder + l.Decoder }

// Options select the batching policy.
type Options struct {
	// BatchSize is the number of examples per batch, or, when TokenBatching
	// is set, the token budget per batch.
	BatchSize int

	// TokenBatching switches from fixed-size chunking to greedy bin-packing
	// under the BatchSize token budget.
	TokenBatching bool

	// IncludePadding charges the budget for padding: a batch of n examples
	// costs max(encoder)*n + max(decoder)*n. When false each example only
	// costs its own encoder+decoder length.
	IncludePadding bool
}

// Sampler is a precomputed batch schedule over example indices. Batches are
// computed once at construction; iteration and Len always agree. Read-only
// after construction and safe for concurrent use.
type Sampler struct {
	batches [][]int
	dropped []int
}

// New batches the given index ordering. lengths must cover every index in
// order. Under a token budget, an example whose own encoder+decoder length
// exceeds the budget is excluded from every batch and recorded as dropped;
// the exclusion is logged once and is permanent for this schedule.
func New(lengths []Lengths, order []int, opts Options) (*Sampler, error) {
	if opts.BatchSize <= 0 {
		return nil, errors.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}
	for _, idx := range order {
		if idx < 0 || idx >= len(lengths) {
			return nil, errors.Errorf("index %d out of range for %d examples", idx, len(lengths))
		}
	}

	s := &Sampler{}
	if !opts.TokenBatching {
		s.batches = chunk(order, opts.BatchSize)
		return s, nil
	}

	budget := opts.BatchSize
	var batch []int
	maxEnc, maxDec, sum := 0, 0, 0
	flush := func() {
		if len(batch) > 0 {
			s.batches = append(s.batches, batch)
		}
		batch = nil
		maxEnc, maxDec, sum = 0, 0, 0
	}
	for _, idx := range order {
		l := lengths[idx]
		if l.Total() > budget {
			klog.Warningf("Dropping example %d: %d tokens exceed the batch budget of %d", idx, l.Total(), budget)
			s.dropped = append(s.dropped, idx)
			continue
		}
		enc, dec := max(maxEnc, l.Encoder), max(maxDec, l.Decoder)
		var cost int
		if opts.IncludePadding {
			cost = (enc + dec) * (len(batch) + 1)
		} else {
			cost = sum + l.Total()
		}
		if cost > budget {
			flush()
			enc, dec = l.Encoder, l.Decoder
		}
		batch = append(batch, idx)
		maxEnc, maxDec = enc, dec
		sum += l.Total()
	}
	flush()
	return s, nil
}

// Batches returns the batch schedule. Callers must not mutate it.
func (s *Sampler) Batches() [][]int { return s.batches }

// Len returns the number of batches.
func (s *Sampler) Len() int { return len(s.batches) }

// Dropped returns the indices excluded for exceeding the token budget, in
// input order.
func (s *Sampler) Dropped() []int { return s.dropped }

func chunk(order []int, size int) [][]int {
	batches := make([][]int, 0, (len(order)+size-1)/size)
	for start := 0; start < len(order); start += size {
		end := min(start+size, len(order))
		batches = append(batches, order[start:end:end])
	}
	return batches
}
