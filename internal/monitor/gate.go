package monitor

import "sync"

// GateState is the alert state of one target
type GateState int

const (
	// Quiet means the target is not currently matching
	Quiet GateState = iota
	// Armed means the target is matching and its alert has already fired
	Armed
)

func (s GateState) String() string {
	if s == Armed {
		return "armed"
	}
	return "quiet"
}

// StateFromMatch maps a persisted lastMatchState onto a gate state
func StateFromMatch(lastMatchState bool) GateState {
	if lastMatchState {
		return Armed
	}
	return Quiet
}

// Transition applies one match decision. It fires only on Quiet -> Armed;
// a miss always returns to Quiet so the next occurrence alerts again.
func Transition(from GateState, matched bool) (GateState, bool) {
	switch {
	case from == Quiet && matched:
		return Armed, true
	case matched:
		return Armed, false
	default:
		return Quiet, false
	}
}

// AlertGate tracks gate state per target
type AlertGate struct {
	mu     sync.Mutex
	states map[int64]GateState
}

// NewAlertGate creates an empty gate; unknown targets start Quiet
func NewAlertGate() *AlertGate {
	return &AlertGate{states: make(map[int64]GateState)}
}

// Sync overwrites the in-memory state with the persisted one
func (g *AlertGate) Sync(targetID int64, lastMatchState bool) {
	g.mu.Lock()
	g.states[targetID] = StateFromMatch(lastMatchState)
	g.mu.Unlock()
}

// Transition feeds one match decision for a target and reports whether to fire
func (g *AlertGate) Transition(targetID int64, matched bool) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	next, fire := Transition(g.states[targetID], matched)
	g.states[targetID] = next
	return fire
}

// State returns the current state of a target
func (g *AlertGate) State(targetID int64) GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.states[targetID]
}

// Forget drops a target, e.g. after it was deleted
func (g *AlertGate) Forget(targetID int64) {
	g.mu.Lock()
	delete(g.states, targetID)
	g.mu.Unlock()
}
