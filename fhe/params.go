package fhe

import (
	"fmt"
	"math"
	"math/big"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"
)

const (
	// LogPlaintextModulus is the bit-size of the encrypted integers.
	LogPlaintextModulus = 32

	// MinLogQ is the smallest accepted ciphertext modulus.
	// It keeps the rounding term m*(Q mod T)/Q of the decoding negligible.
	MinLogQ = 3 * LogPlaintextModulus
)

// Parameters is a set of checked RLWE parameters together with the
// constants of the wrap-around integer encoding. Its fields are private
// and immutable.
type Parameters struct {
	rlwe.Parameters
	t        *big.Int   // plaintext modulus 2^32
	delta    *big.Int   // floor(Q/T)
	carry    *big.Int   // Q mod T, noise added by a carry out of the top bit
	fresh    *big.Int   // bound on the noise of a fresh encryption
	budget   *big.Int   // largest tolerated noise
	crt      []*big.Int // CRT reconstruction basis of Q
	maxTerms int
}

// NewParametersFromLiteral instantiates checked parameters from a literal.
// It returns an error wrapping [ErrConfiguration] if the literal is invalid.
func NewParametersFromLiteral(lit ParametersLiteral) (Parameters, error) {

	if lit.LogN <= 0 {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: %w: LogN=%d", ErrConfiguration, lit.LogN)
	}

	rlweParams, err := rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN:     lit.LogN,
		Q:        lit.Q,
		LogQ:     lit.LogQ,
		RingType: ring.Standard,
		NTTFlag:  false,
	})

	if err != nil {
		return Parameters{}, fmt.Errorf("cannot NewParametersFromLiteral: %w: %w", ErrConfiguration, err)
	}

	return NewParameters(rlweParams)
}

// NewParameters derives the encoding constants from generic RLWE parameters.
// The parameters must be on a standard ring, in the coefficient domain and
// without auxiliary modulus.
func NewParameters(params rlwe.Parameters) (p Parameters, err error) {

	switch {
	case params.RingType() != ring.Standard:
		return Parameters{}, fmt.Errorf("cannot NewParameters: %w: ring type must be %s", ErrConfiguration, ring.Standard)
	case params.NTTFlag():
		return Parameters{}, fmt.Errorf("cannot NewParameters: %w: NTTFlag must be false", ErrConfiguration)
	case params.PCount() != 0:
		return Parameters{}, fmt.Errorf("cannot NewParameters: %w: auxiliary modulus P is not supported", ErrConfiguration)
	}

	Q := params.QBigInt()

	if Q.BitLen() < MinLogQ {
		return Parameters{}, fmt.Errorf("cannot NewParameters: %w: log2(Q)=%d < %d", ErrConfiguration, Q.BitLen(), MinLogQ)
	}

	p = Parameters{
		Parameters: params,
		t:          new(big.Int).Lsh(big.NewInt(1), LogPlaintextModulus),
	}

	p.delta, p.carry = new(big.Int).QuoRem(Q, p.t, new(big.Int))

	// The sampler truncates the error at NoiseBound.
	p.fresh = new(big.Int).SetUint64(uint64(math.Ceil(params.NoiseBound())) + 1)

	// Decoding rounds T*x/Q, which is exact as long as |e| < Delta/2 - T.
	p.budget = new(big.Int).Sub(p.delta, big.NewInt(1))
	p.budget.Rsh(p.budget, 1)
	p.budget.Sub(p.budget, p.t)

	if p.budget.Sign() <= 0 {
		return Parameters{}, fmt.Errorf("cannot NewParameters: %w: modulus leaves no noise budget", ErrConfiguration)
	}

	p.maxTerms = maxTerms(p.budget, p.perTermNoise())

	if p.maxTerms < 2 {
		return Parameters{}, fmt.Errorf("cannot NewParameters: %w: noise budget does not allow a single addition", ErrConfiguration)
	}

	p.crt = crtBasis(params.Q())

	return p, nil
}

// PlaintextModulus returns 2^32.
func (p Parameters) PlaintextModulus() *big.Int {
	return new(big.Int).Set(p.t)
}

// Delta returns the scaling factor floor(Q/2^32).
func (p Parameters) Delta() *big.Int {
	return new(big.Int).Set(p.delta)
}

// CarryNoise returns Q mod 2^32, the noise added when an addition wraps.
func (p Parameters) CarryNoise() *big.Int {
	return new(big.Int).Set(p.carry)
}

// FreshNoise returns the bound on the noise of a fresh encryption.
func (p Parameters) FreshNoise() *big.Int {
	return new(big.Int).Set(p.fresh)
}

// NoiseBudget returns the largest noise that still decrypts correctly.
func (p Parameters) NoiseBudget() *big.Int {
	return new(big.Int).Set(p.budget)
}

// MaxTerms returns the longest Fibonacci-like sequence, seeded with two fresh
// ciphertexts, whose every term decrypts correctly.
func (p Parameters) MaxTerms() int {
	return p.maxTerms
}

// Equal returns true if both parameter sets are identical.
func (p Parameters) Equal(other *Parameters) bool {
	return p.Parameters.Equal(&other.Parameters)
}

// checkCiphertext returns an error if ct is not a degree-1 ciphertext in
// the coefficient domain at the top level of the ring of p.
func (p Parameters) checkCiphertext(ct *rlwe.Ciphertext) error {

	if ct.MetaData == nil {
		return fmt.Errorf("ciphertext has no metadata")
	}

	if ct.IsNTT {
		return fmt.Errorf("ciphertext must be in the coefficient domain")
	}

	if len(ct.Value) != 2 {
		return fmt.Errorf("ciphertext degree must be 1 but is %d", len(ct.Value)-1)
	}

	for i, pol := range ct.Value {

		if pol.Level() != p.MaxLevel() {
			return fmt.Errorf("ciphertext level %d differs from modulus level %d", pol.Level(), p.MaxLevel())
		}

		for j := range pol.Coeffs {
			if len(pol.Coeffs[j]) != p.N() {
				return fmt.Errorf("ciphertext polynomial %d has degree %d but the ring degree is %d", i, len(pol.Coeffs[j]), p.N())
			}
		}
	}

	return nil
}

// perTermNoise returns B + r, the noise unit of the bound on a sequence term.
func (p Parameters) perTermNoise() *big.Int {
	return new(big.Int).Add(p.fresh, p.carry)
}

// crtBasis returns the elements (Q/qi) * ((Q/qi)^-1 mod qi) of Q.
func crtBasis(moduli []uint64) (basis []*big.Int) {

	Q := big.NewInt(1)
	for _, qi := range moduli {
		Q.Mul(Q, new(big.Int).SetUint64(qi))
	}

	basis = make([]*big.Int, len(moduli))

	for i, qi := range moduli {
		bigQi := new(big.Int).SetUint64(qi)
		hat := new(big.Int).Quo(Q, bigQi)
		inv := new(big.Int).ModInverse(new(big.Int).Mod(hat, bigQi), bigQi)
		basis[i] = hat.Mul(hat, inv)
	}

	return
}
