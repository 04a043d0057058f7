// Package timing records the duration of the phases of an encrypted
// computation and renders them as a text report.
package timing

import (
	"slices"
	"sync"
	"time"
)

// Phase names recorded by the encrypted sequence engine and its driver.
const (
	KeyGeneration      = "Key Generation"
	ServerKeySetup     = "Server Key Setup"
	InitialEncryption  = "Initial Encryption"
	Computation        = "FHE Computation"
	SequenceGeneration = "Sequence Generation"
	Decryption         = "Decryption"
	Total              = "Total"
)

// Entry is a named phase duration.
type Entry struct {
	Phase    string
	Duration time.Duration
}

// Recorder accumulates named phase durations, in first-recorded order, and
// an ordered list of per-iteration durations. A Recorder is safe for
// concurrent use; its contents only grow.
type Recorder struct {
	mu     sync.Mutex
	now    func() time.Time
	order  []string
	phases map[string]time.Duration
	steps  []time.Duration
}

// NewRecorder returns an empty Recorder. The zero value is also usable.
func NewRecorder() *Recorder {
	return &Recorder{
		now:    time.Now,
		phases: map[string]time.Duration{},
	}
}

// Record sets the duration of phase. A phase recorded twice keeps its
// position and takes the latest duration.
func (r *Recorder) Record(phase string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phases == nil {
		r.phases = map[string]time.Duration{}
	}

	if _, ok := r.phases[phase]; !ok {
		r.order = append(r.order, phase)
	}
	r.phases[phase] = d
}

// RecordStep appends the duration of one iteration.
func (r *Recorder) RecordStep(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, d)
}

// Duration returns the duration of phase and whether it was recorded.
func (r *Recorder) Duration(phase string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.phases[phase]
	return d, ok
}

// Phases returns the recorded phases in first-recorded order.
func (r *Recorder) Phases() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, len(r.order))
	for i, phase := range r.order {
		entries[i] = Entry{Phase: phase, Duration: r.phases[phase]}
	}
	return entries
}

// Steps returns a copy of the per-iteration durations.
func (r *Recorder) Steps() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.steps)
}

// Start starts timing phase. The duration is recorded when the returned
// Stopwatch is stopped:
//
//	defer rec.Start(timing.Decryption).Stop()
func (r *Recorder) Start(phase string) *Stopwatch {
	return &Stopwatch{rec: r, phase: phase, start: r.clock()}
}

// StartStep starts timing one iteration.
func (r *Recorder) StartStep() *Stopwatch {
	return &Stopwatch{rec: r, step: true, start: r.clock()}
}

func (r *Recorder) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

// Stopwatch measures one phase or one iteration of a [Recorder].
type Stopwatch struct {
	rec     *Recorder
	phase   string
	step    bool
	start   time.Time
	elapsed time.Duration
	stopped bool
}

// Stop records the elapsed time and returns it. Only the first call records;
// later calls return the same duration.
func (s *Stopwatch) Stop() time.Duration {

	if s.stopped {
		return s.elapsed
	}

	s.elapsed = s.rec.clock().Sub(s.start)
	s.stopped = true

	if s.step {
		s.rec.RecordStep(s.elapsed)
	} else {
		s.rec.Record(s.phase, s.elapsed)
	}

	return s.elapsed
}

// Milliseconds returns d in milliseconds.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
