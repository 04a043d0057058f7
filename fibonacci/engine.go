// Package fibonacci computes the Fibonacci sequence over encrypted 32-bit
// integers. The recurrence only ever sees ciphertexts and the activated
// evaluation key; decryption needs the client key of the same context.
package fibonacci

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/tuneinsight/hefib/fhe"
	"github.com/tuneinsight/hefib/timing"
)

// ErrInvalidTermCount is returned for a negative number of terms.
var ErrInvalidTermCount = errors.New("invalid term count")

// Sequence is an ordered list of encrypted terms; index i holds F(i).
type Sequence []*fhe.Ciphertext

// Digests returns the blake2b digest of each term, i.e. what an evaluating
// party observes of the sequence.
func (s Sequence) Digests() (digests [][32]byte, err error) {
	digests = make([][32]byte, len(s))
	for i, ct := range s {
		if digests[i], err = ct.Digest(); err != nil {
			return nil, fmt.Errorf("cannot Digests: F(%d): %w", i, err)
		}
	}
	return
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the logger receiving progress lines. By default they are discarded.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine runs the encrypted recurrence for one key context and records
// the duration of each phase. An Engine is meant for one run: its
// recorder is never reset.
type Engine struct {
	keys *fhe.KeyContext
	rec  *timing.Recorder
	log  *log.Logger
}

// NewEngine returns an engine for keys recording into rec.
// A nil rec is replaced by a new recorder.
func NewEngine(keys *fhe.KeyContext, rec *timing.Recorder, opts ...Option) *Engine {

	if rec == nil {
		rec = timing.NewRecorder()
	}

	e := &Engine{
		keys: keys,
		rec:  rec,
		log:  log.New(io.Discard, "", 0),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Recorder returns the recorder of the engine.
func (e *Engine) Recorder() *timing.Recorder {
	return e.rec
}

// EncryptSeed encrypts the seeds 0 and 1 under the client key.
func (e *Engine) EncryptSeed() (a, b *fhe.Ciphertext, err error) {

	e.log.Println("Starting encryption of initial values...")

	sw := e.rec.Start(timing.InitialEncryption)
	defer sw.Stop()

	client := e.keys.Client()

	if a, err = client.Encrypt(0); err != nil {
		return nil, nil, fmt.Errorf("cannot EncryptSeed: %w", err)
	}

	if b, err = client.Encrypt(1); err != nil {
		return nil, nil, fmt.Errorf("cannot EncryptSeed: %w", err)
	}

	e.log.Printf("Encryption of initial values completed in: %.2f ms", timing.Milliseconds(sw.Stop()))

	return
}

// ComputeSequence returns the first k terms of the encrypted Fibonacci
// sequence. See [Engine.ComputeSequenceContext].
func (e *Engine) ComputeSequence(k int) (Sequence, error) {
	return e.ComputeSequenceContext(context.Background(), k)
}

// ComputeSequenceContext returns the first k terms of the encrypted
// Fibonacci sequence, computed with homomorphic additions only.
//
// k = 0 returns an empty sequence without activating any key, k = 1 returns
// the encrypted first seed. Terms wrap modulo 2^32. A k larger than the
// noise capacity of the parameters is refused with [fhe.ErrNoiseBudget].
// The context is checked before each addition; on cancellation no partial
// sequence is returned.
func (e *Engine) ComputeSequenceContext(ctx context.Context, k int) (Sequence, error) {

	if k < 0 {
		return nil, fmt.Errorf("cannot ComputeSequence: %w: k=%d", ErrInvalidTermCount, k)
	}

	if capacity := e.keys.Params().MaxTerms(); k > capacity {
		return nil, fmt.Errorf("cannot ComputeSequence: %w: k=%d > %d", fhe.ErrNoiseBudget, k, capacity)
	}

	if k == 0 {
		return Sequence{}, nil
	}

	e.log.Println("Setting server key for homomorphic operations...")

	setup := e.rec.Start(timing.ServerKeySetup)
	eval, err := e.keys.Activate()
	setup.Stop()

	if err != nil {
		return nil, fmt.Errorf("cannot ComputeSequence: %w", err)
	}

	e.log.Printf("Server key %s set in: %.2f ms", eval.Fingerprint(), timing.Milliseconds(setup.Stop()))

	total := e.rec.Start(timing.SequenceGeneration)
	defer total.Stop()

	prev, curr, err := e.EncryptSeed()
	if err != nil {
		return nil, fmt.Errorf("cannot ComputeSequence: %w", err)
	}

	if k == 1 {
		return Sequence{prev}, nil
	}

	seq := make(Sequence, 0, k)
	seq = append(seq, prev, curr)

	e.log.Println("Starting homomorphic computation of Fibonacci sequence...")

	loop := e.rec.Start(timing.Computation)
	defer loop.Stop()

	for i := 2; i < k; i++ {

		if err = ctx.Err(); err != nil {
			return nil, fmt.Errorf("cannot ComputeSequence: interrupted before F(%d): %w", i, err)
		}

		var next *fhe.Ciphertext

		step := e.rec.StartStep()

		if next, err = eval.Add(prev, curr); err != nil {
			return nil, fmt.Errorf("cannot ComputeSequence: F(%d): %w", i, err)
		}

		prev, curr = curr, next
		seq = append(seq, next)

		d := step.Stop()

		e.log.Printf("| F(%d) | Add: %.2f ms |", i, timing.Milliseconds(d))
	}

	e.log.Printf("Total homomorphic computation time: %.2f ms", timing.Milliseconds(loop.Stop()))
	e.log.Printf("Total sequence generation time (including encryption): %.2f ms", timing.Milliseconds(total.Stop()))

	return seq, nil
}

// DecryptSequence decrypts seq term by term with the client key. It fails
// if a term was produced under another key context; seq is not modified.
func (e *Engine) DecryptSequence(seq Sequence) ([]uint32, error) {

	e.log.Println("Starting decryption of Fibonacci sequence...")

	sw := e.rec.Start(timing.Decryption)
	defer sw.Stop()

	client := e.keys.Client()

	values := make([]uint32, len(seq))

	for i, ct := range seq {
		m, err := client.Decrypt(ct)
		if err != nil {
			return nil, fmt.Errorf("cannot DecryptSequence: F(%d): %w", i, err)
		}
		values[i] = m
	}

	e.log.Printf("Decryption completed in: %.2f ms", timing.Milliseconds(sw.Stop()))

	return values, nil
}
