// Package progress carries staged completion updates from the transcription
// pipeline to whatever is presenting them.
package progress

import (
	"math"
	"sync"
)

// Sink receives a completion fraction in [0, 1] and a human-readable stage label.
type Sink interface {
	Report(fraction float64, stage string)
}

// Func adapts a plain function to a Sink.
type Func func(fraction float64, stage string)

func (f Func) Report(fraction float64, stage string) {
	f(fraction, stage)
}

// Discard drops every update.
var Discard Sink = Func(func(float64, string) {})

// Monotonic wraps a Sink so that fractions are clamped to [0, 1] and never move
// backwards. A lower fraction is forwarded at the current high-water mark so
// stage labels still reach the sink.
type Monotonic struct {
	mu   sync.Mutex
	next Sink
	last float64
}

func NewMonotonic(next Sink) *Monotonic {
	if next == nil {
		next = Discard
	}
	return &Monotonic{next: next}
}

func (m *Monotonic) Report(fraction float64, stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case math.IsNaN(fraction) || fraction < 0:
		fraction = 0
	case fraction > 1:
		fraction = 1
	}
	if fraction < m.last {
		fraction = m.last
	}
	m.last = fraction
	m.next.Report(fraction, stage)
}

// Update is one recorded Report call.
type Update struct {
	Fraction float64
	Stage    string
}

// Recorder keeps every update it receives. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *Recorder) Report(fraction float64, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, Update{Fraction: fraction, Stage: stage})
}

func (r *Recorder) Updates() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Update, len(r.updates))
	copy(out, r.updates)
	return out
}

// Final returns the last update, or the zero Update when nothing was reported.
func (r *Recorder) Final() Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return Update{}
	}
	return r.updates[len(r.updates)-1]
}
