package fhe

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/ring"
)

// Evaluator performs homomorphic operations for exactly one server key.
// It is the capability token returned by [ServerKey.Activate]: holding an
// Evaluator is the only way to combine ciphertexts.
//
// An Evaluator is not safe for concurrent use; call Activate once per goroutine.
type Evaluator struct {
	params      Parameters
	ringQ       *ring.Ring
	fingerprint Fingerprint
}

// Activate checks the server key against its fingerprint and returns an
// [Evaluator] bound to it. Repeated calls return independent evaluators.
func (s *ServerKey) Activate() (*Evaluator, error) {

	if s == nil || s.pk == nil {
		return nil, fmt.Errorf("cannot Activate: %w: server key is nil", ErrNotActivated)
	}

	f, err := fingerprint(s.params, s.pk)
	if err != nil {
		return nil, fmt.Errorf("cannot Activate: %w", err)
	}

	if f != s.fingerprint {
		return nil, fmt.Errorf("cannot Activate: %w: server key was altered", ErrKeyMismatch)
	}

	return &Evaluator{
		params:      s.params,
		ringQ:       s.params.RingQ().AtLevel(s.params.MaxLevel()),
		fingerprint: f,
	}, nil
}

// Fingerprint returns the fingerprint of the activated key pair.
func (eval *Evaluator) Fingerprint() Fingerprint {
	return eval.fingerprint
}

// Add returns a new ciphertext encrypting (a + b) mod 2^32.
// Both operands must have been produced under the activated key pair.
func (eval *Evaluator) Add(a, b *Ciphertext) (*Ciphertext, error) {

	if eval == nil || eval.ringQ == nil {
		return nil, fmt.Errorf("cannot Add: %w", ErrNotActivated)
	}

	if err := eval.checkOperand(a); err != nil {
		return nil, fmt.Errorf("cannot Add: op0: %w", err)
	}

	if err := eval.checkOperand(b); err != nil {
		return nil, fmt.Errorf("cannot Add: op1: %w", err)
	}

	out := rlwe.NewCiphertext(eval.params, 1, eval.ringQ.Level())

	for i := range out.Value {
		eval.ringQ.Add(a.ct.Value[i], b.ct.Value[i], out.Value[i])
	}

	return &Ciphertext{ct: out, fingerprint: eval.fingerprint}, nil
}

func (eval *Evaluator) checkOperand(op *Ciphertext) error {

	if op == nil || op.ct == nil {
		return fmt.Errorf("ciphertext is nil")
	}

	if op.fingerprint != eval.fingerprint {
		return ErrKeyMismatch
	}

	return eval.params.checkCiphertext(op.ct)
}
