// Package timeline tracks how long a ticket or lead has spent in each
// pipeline state. A Ledger holds the instant the entity most recently entered
// each state plus the cumulative whole days accrued across every previous
// visit, so repeated visits to a state never double-count. The ledger records
// whatever transition it is told happened; transition legality is the
// caller's policy.
package timeline

import "time"

const day = 24 * time.Hour

// Change is one append-only entry of the transition log.
type Change struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	Actor string    `json:"actor"`
	At    time.Time `json:"at"`
	Notes string    `json:"notes,omitempty"`
}

// Ledger is the per-entity state timeline. Values are treated as immutable:
// Transition returns a new Ledger and never mutates the receiver.
type Ledger struct {
	// StateHistory maps a state to the instant it was most recently entered.
	StateHistory map[string]time.Time `json:"stateHistory"`
	// StateDurations maps a state to the cumulative whole days spent in it
	// across all completed visits. The in-progress visit is not included;
	// TotalDaysInState adds it on read.
	StateDurations map[string]int `json:"stateDurations"`
	// Changes is the ordered transition log, oldest first.
	Changes []Change `json:"changes,omitempty"`
}

// Initialize creates the ledger for a newly created entity.
func Initialize(initialState, actor string, now time.Time) Ledger {
	return Ledger{
		StateHistory:   map[string]time.Time{initialState: now},
		StateDurations: map[string]int{},
		Changes: []Change{{
			To:    initialState,
			Actor: actor,
			At:    now,
		}},
	}
}

// Transition closes out the visit to from and opens a visit to to. The
// elapsed days of the from-visit are added to its cumulative duration. A
// missing history entry for from is treated as zero elapsed days; legacy
// records routinely lack entries and must not fail.
func (l Ledger) Transition(from, to, actor string, now time.Time, notes string) Ledger {
	next := l.clone()

	if entered, ok := next.StateHistory[from]; ok {
		next.StateDurations[from] += wholeDays(entered, now)
	}
	next.StateHistory[to] = now
	next.Changes = append(next.Changes, Change{
		From:  from,
		To:    to,
		Actor: actor,
		At:    now,
		Notes: notes,
	})
	return next
}

// TotalDaysInState returns the cumulative days spent in state. The live
// portion of the current visit is included only when state is the entity's
// current state; the ledger itself does not know the current state, so the
// caller supplies it. The result is never negative.
func (l Ledger) TotalDaysInState(state, currentState string, now time.Time) int {
	total := l.StateDurations[state]
	if state == currentState {
		if entered, ok := l.StateHistory[state]; ok {
			total += wholeDays(entered, now)
		}
	}
	if total < 0 {
		return 0
	}
	return total
}

// LastEntered returns the instant the entity most recently entered state,
// or nil if the ledger has no record of it.
func (l Ledger) LastEntered(state string) *time.Time {
	if entered, ok := l.StateHistory[state]; ok {
		return &entered
	}
	return nil
}

// Empty reports whether the ledger carries no history at all, which is how
// pre-migration entities present. Callers should fall through to the legacy
// entry policy in that case.
func (l Ledger) Empty() bool {
	return len(l.StateHistory) == 0 && len(l.StateDurations) == 0
}

func (l Ledger) clone() Ledger {
	history := make(map[string]time.Time, len(l.StateHistory)+1)
	for state, entered := range l.StateHistory {
		history[state] = entered
	}
	durations := make(map[string]int, len(l.StateDurations)+1)
	for state, days := range l.StateDurations {
		durations[state] = days
	}
	changes := make([]Change, len(l.Changes), len(l.Changes)+1)
	copy(changes, l.Changes)
	return Ledger{StateHistory: history, StateDurations: durations, Changes: changes}
}

// wholeDays is floor((to - from) / 24h), clamped at zero so clock skew or
// malformed history can never produce negative durations.
func wholeDays(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from) / day)
}
