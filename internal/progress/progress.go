package progress

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Step names emitted by the orchestrator, in the order a run passes them.
const (
	StepDetecting        = "detecting"
	StepGeneratingStyles = "generating-styles"
	StepValidating       = "validating"
	StepFixing           = "fixing"
	StepRegenerating     = "regenerating"
	StepComplete         = "complete"
)

// GeneratingPage is the step name for the n-th page, counted from 1.
func GeneratingPage(n int) string {
	return "generating-page-" + strconv.Itoa(n)
}

// Event is one (step, detail) notification.
type Event struct {
	Step   string `json:"step"`
	Detail string `json:"detail"`
}

// Sink receives events. Emit must not block.
type Sink interface {
	Emit(Event)
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(Event) {}

// Func adapts a function to Sink. The function must return quickly.
type Func func(Event)

func (f Func) Emit(e Event) { f(e) }

// Log writes events to the global zerolog logger.
type Log struct {
	Level zerolog.Level
}

func (l Log) Emit(e Event) {
	log.WithLevel(l.Level).Str("step", e.Step).Str("detail", e.Detail).Msg("progress")
}

// Chan delivers events on a buffered channel and drops them when the
// consumer falls behind.
type Chan struct {
	C       chan Event
	dropped atomic.Int64
}

// NewChan returns a Chan with the given buffer size.
func NewChan(buffer int) *Chan {
	if buffer < 1 {
		buffer = 1
	}
	return &Chan{C: make(chan Event, buffer)}
}

func (c *Chan) Emit(e Event) {
	select {
	case c.C <- e:
	default:
		c.dropped.Add(1)
	}
}

// Dropped is the number of events discarded so far.
func (c *Chan) Dropped() int64 { return c.dropped.Load() }

// Multi fans events out to every sink in order.
type Multi []Sink

func (m Multi) Emit(e Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(e)
		}
	}
}

// Recorder keeps every event. It is safe for concurrent use and mostly
// useful in tests and batch summaries.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Steps returns the recorded step names in order.
func (r *Recorder) Steps() []string {
	events := r.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Step
	}
	return out
}
