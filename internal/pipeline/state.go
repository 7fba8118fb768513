package pipeline

import "fmt"

// PageState is the lifecycle position of one page within a run.
type PageState string

const (
	StatePending           PageState = "pending"
	StateGenerated         PageState = "generated"
	StateValidated         PageState = "validated"
	StateAccepted          PageState = "accepted"
	StateNeedsRegeneration PageState = "needs_regeneration"
	StateRegenerating      PageState = "regenerating"
	StateExhausted         PageState = "exhausted"
	StateFallback          PageState = "fallback"
)

// IsTerminal reports whether no further transition can leave s.
func IsTerminal(s PageState) bool {
	return s == StateAccepted || s == StateFallback
}

// transitions is the full table of allowed moves. A failed generation call or
// an empty extraction goes straight to needs_regeneration.
var transitions = map[PageState][]PageState{
	StatePending:           {StateGenerated, StateNeedsRegeneration},
	StateGenerated:         {StateValidated, StateNeedsRegeneration},
	StateValidated:         {StateAccepted, StateNeedsRegeneration},
	StateNeedsRegeneration: {StateRegenerating, StateExhausted},
	StateRegenerating:      {StateGenerated, StateNeedsRegeneration},
	StateExhausted:         {StateFallback},
}

func isAllowedTransition(from, to PageState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// pageTrack is the mutable bookkeeping of one page. Only the orchestration
// goroutine touches it.
type pageTrack struct {
	filename string
	state    PageState
	attempt  int
	history  []PageState
}

func newTrack(filename string) *pageTrack {
	return &pageTrack{filename: filename, state: StatePending, history: []PageState{StatePending}}
}

// to performs a validated transition.
func (t *pageTrack) to(next PageState) error {
	if !isAllowedTransition(t.state, next) {
		return fmt.Errorf("disallowed transition for %q: %s -> %s", t.filename, t.state, next)
	}
	t.state = next
	t.history = append(t.history, next)
	return nil
}
