// ABOUTME: Tracker holds the per-agent AgentState map driven by stream status updates.
// ABOUTME: Writes are idempotent and change notifications fire only on real transitions.
package workflow

import (
	"log"
	"sync"
)

// AgentStatus is one agent's current state plus the last message it reported.
type AgentStatus struct {
	Agent   Agent
	State   AgentState
	Message string
}

// Snapshot is an immutable view of every catalog agent's status in catalog order.
type Snapshot []AgentStatus

// State returns the state for key, StateInactive if unknown.
func (s Snapshot) State(key string) AgentState {
	for _, a := range s {
		if a.Agent.Key == key {
			return a.State
		}
	}
	return StateInactive
}

// Count returns how many agents are in state st.
func (s Snapshot) Count(st AgentState) int {
	n := 0
	for _, a := range s {
		if a.State == st {
			n++
		}
	}
	return n
}

// Tracker maps catalog keys to their current state.
type Tracker struct {
	mu       sync.Mutex
	states   map[string]AgentState
	messages map[string]string
	onChange func(Snapshot)
}

// NewTracker returns a tracker with every catalog agent inactive.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.Reset()
	return t
}

// OnChange registers fn to be called with a fresh snapshot after each transition.
// fn is called without the tracker lock held.
func (t *Tracker) OnChange(fn func(Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Reset puts every agent back to inactive without notifying.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[string]AgentState, len(catalog))
	t.messages = make(map[string]string, len(catalog))
	for _, a := range catalog {
		t.states[a.Key] = StateInactive
	}
}

// Apply records a status update. Unknown agents are logged and ignored. It
// returns true only when the agent's state actually changed.
func (t *Tracker) Apply(agentID, token, message string) bool {
	key, ok := NormalizeAgentID(agentID)
	if !ok {
		log.Printf("workflow event=unknown_agent agent_id=%q status=%q", agentID, token)
		return false
	}
	next := ParseStatusToken(token)

	t.mu.Lock()
	if message != "" {
		t.messages[key] = message
	}
	if t.states[key] == next {
		t.mu.Unlock()
		return false
	}
	t.states[key] = next
	snap, fn := t.snapshotLocked(), t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
	return true
}

// ForceComplete marks the coordinator and any running agent complete. Used when
// the stream completes without per-agent terminal events; it is a display
// fallback, not a statement about what the backend did.
func (t *Tracker) ForceComplete() bool {
	t.mu.Lock()
	changed := false
	for key, st := range t.states {
		if st == StateRunning || (key == Coordinator && st != StateComplete) {
			t.states[key] = StateComplete
			changed = true
		}
	}
	if !changed {
		t.mu.Unlock()
		return false
	}
	snap, fn := t.snapshotLocked(), t.onChange
	t.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
	return true
}

// Snapshot returns the current states in catalog order.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	out := make(Snapshot, 0, len(catalog))
	for _, a := range catalog {
		out = append(out, AgentStatus{Agent: a, State: t.states[a.Key], Message: t.messages[a.Key]})
	}
	return out
}
