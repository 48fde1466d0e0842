package effects

import "sync"

// Fold reduces per-statement assessments into one aggregate, seeded with
// Total so an empty sequence yields the maximally permissive value.
func Fold(values []Effects) Effects {
	acc := Total
	for _, v := range values {
		acc = Merge(acc, v)
	}

	return acc
}

// FoldParallel reduces the assessments across the given number of workers,
// each folding a contiguous chunk, followed by a final pairwise reduction of
// the partial aggregates. The merge algebra is commutative and associative,
// so the result is identical to Fold for any worker count.
func FoldParallel(values []Effects, workers int) Effects {
	if workers < 1 {
		workers = 1
	}

	if workers > len(values) {
		workers = len(values)
	}

	if workers <= 1 {
		return Fold(values)
	}

	// Ceil-sized chunks may cover the input in fewer than workers steps, so
	// walk the input rather than the worker index and size the partials by
	// the chunks actually spawned.
	chunk := (len(values) + workers - 1) / workers
	partials := make([]Effects, 0, workers)

	var wg sync.WaitGroup

	for lo := 0; lo < len(values); lo += chunk {
		hi := lo + chunk
		if hi > len(values) {
			hi = len(values)
		}

		partials = append(partials, Total)
		i := len(partials) - 1

		wg.Add(1)

		go func(i, lo, hi int) {
			defer wg.Done()
			partials[i] = Fold(values[lo:hi])
		}(i, lo, hi)
	}

	wg.Wait()

	return Fold(partials)
}
