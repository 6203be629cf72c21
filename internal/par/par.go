// Package par provides a parallel map over independent inputs with
// order-stable reassembly: results come back indexed by input position, no
// matter in which order the workers finish.
package par

import "sync"

// Map applies fn to every input using up to workers goroutines and returns
// the outputs in input order. The first error wins; remaining inputs may
// still be processed but their results are discarded.
func Map[In, Out any](inputs []In, workers int, fn func(In) (Out, error)) ([]Out, error) {
	if workers <= 1 || len(inputs) <= 1 {
		outputs := make([]Out, len(inputs))
		for i, in := range inputs {
			out, err := fn(in)
			if err != nil {
				return nil, err
			}
			outputs[i] = out
		}
		return outputs, nil
	}
	if workers > len(inputs) {
		workers = len(inputs)
	}

	outputs := make([]Out, len(inputs))
	indices := make(chan int)
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indices {
				out, err := fn(inputs[i])
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					continue
				}
				outputs[i] = out
			}
		}()
	}
	for i := range inputs {
		indices <- i
	}
	close(indices)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return outputs, nil
}
