package fhe

import (
	"fmt"
	"math/big"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

// encode writes Delta*m mod qi on the constant coefficient of pt.
// All other coefficients of pt are expected to be zero.
func (p Parameters) encode(m uint32, pt *rlwe.Plaintext) error {

	if pt.IsNTT {
		return fmt.Errorf("cannot encode: plaintext must be in the coefficient domain")
	}

	level := pt.Level()

	v := new(big.Int).Mul(p.delta, new(big.Int).SetUint64(uint64(m)))
	bigQi, r := new(big.Int), new(big.Int)

	for i, qi := range p.Q()[:level+1] {
		pt.Value.Coeffs[i][0] = r.Mod(v, bigQi.SetUint64(qi)).Uint64()
	}

	return nil
}

// phase reconstructs the constant coefficient of pt in [0, Q).
func (p Parameters) phase(pt *rlwe.Plaintext) (*big.Int, error) {

	if pt.IsNTT {
		return nil, fmt.Errorf("cannot decode: plaintext must be in the coefficient domain")
	}

	if pt.Level() != p.MaxLevel() {
		return nil, fmt.Errorf("cannot decode: plaintext level %d differs from modulus level %d", pt.Level(), p.MaxLevel())
	}

	x, c, tmp := new(big.Int), new(big.Int), new(big.Int)

	for i := range p.crt {
		x.Add(x, tmp.Mul(p.crt[i], c.SetUint64(pt.Value.Coeffs[i][0])))
	}

	return x.Mod(x, p.QBigInt()), nil
}

// decode returns round(T*x/Q) mod T and the centered noise x - Delta*m of the
// constant coefficient x of pt.
func (p Parameters) decode(pt *rlwe.Plaintext) (m uint32, noise *big.Int, err error) {

	var x *big.Int
	if x, err = p.phase(pt); err != nil {
		return
	}

	Q := p.QBigInt()

	// round(T*x/Q) = floor((T*x + Q/2)/Q)
	r := new(big.Int).Mul(x, p.t)
	r.Add(r, new(big.Int).Rsh(Q, 1))
	r.Quo(r, Q)
	r.Mod(r, p.t)

	m = uint32(r.Uint64())

	noise = new(big.Int).Mul(p.delta, r)
	noise.Sub(x, noise)
	noise.Mod(noise, Q)

	if noise.Cmp(new(big.Int).Rsh(Q, 1)) > 0 {
		noise.Sub(noise, Q)
	}

	return
}
