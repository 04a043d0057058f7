package fibonacci

import (
	"golang.org/x/exp/constraints"
)

// Reference returns the first k terms of the plaintext Fibonacci sequence,
// computed with the wrap-around arithmetic of T.
func Reference[T constraints.Unsigned](k int) []T {

	if k <= 0 {
		return []T{}
	}

	seq := make([]T, k)

	if k > 1 {
		seq[1] = 1
	}

	for i := 2; i < k; i++ {
		seq[i] = seq[i-1] + seq[i-2]
	}

	return seq
}
