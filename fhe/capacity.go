package fhe

import (
	"math"
	"math/big"

	"github.com/ALTree/bigfloat"
)

const logPrec = 128

// maxTerms returns the largest k such that unit * F(k) <= budget, where
// F is the Fibonacci sequence with F(1) = F(2) = 1.
//
// Two fresh seeds carry at most B noise each and term i of the recurrence
// carries at most (B + r) * F(i+1) - r, so a sequence of k terms is
// decryptable if (B + r) * F(k) fits in the budget.
func maxTerms(budget, unit *big.Int) (k int) {

	fPrev, fCurr := big.NewInt(0), big.NewInt(1)
	tmp := new(big.Int)

	for tmp.Mul(fCurr, unit).Cmp(budget) <= 0 {
		k++
		fPrev.Add(fPrev, fCurr)
		fPrev, fCurr = fCurr, fPrev
	}

	return
}

// Log2 returns log2(|x|), or -Inf for x = 0.
func Log2(x *big.Int) float64 {
	switch x.Sign() {
	case 0:
		return math.Inf(-1)
	case -1:
		x = new(big.Int).Neg(x)
	}

	ln := bigfloat.Log(new(big.Float).SetPrec(logPrec).SetInt(x))
	ln2 := bigfloat.Log(new(big.Float).SetPrec(logPrec).SetInt64(2))

	f, _ := ln.Quo(ln, ln2).Float64()
	return f
}

// LogNoiseBudget returns log2 of the largest tolerated noise.
func (p Parameters) LogNoiseBudget() float64 {
	return Log2(p.budget)
}

// LogNoisePerTerm returns log2(B + r), the noise unit that grows with the
// Fibonacci numbers along a sequence.
func (p Parameters) LogNoisePerTerm() float64 {
	return Log2(p.perTermNoise())
}
