package timeline

import (
	"time"

	"copydesk/api/internal/timeutil"
)

// EntityDates is the minimal view of an entity the legacy policy reads.
// Timestamp fields hold whatever shape the record carried (native instants,
// strings, export wrapper maps); the rules normalize on read. Callers name
// the entity's initial and review states so the policy stays free of any
// particular pipeline's vocabulary.
type EntityDates struct {
	InitialState    string
	ReviewState     string
	CreatedAt       any
	UpdatedAt       any
	ReviewEnteredAt any
}

// EntryRule is one step of the legacy entry policy: the first rule that
// resolves an instant wins. Keeping the rules named and ordered makes the
// guesswork for pre-migration entities explicit and testable, instead of a
// tangle of nil checks at the call site.
type EntryRule struct {
	Name    string
	Resolve func(state string, e EntityDates) *time.Time
}

// LegacyEntryPolicy resolves the instant an entity entered a state when no
// ledger exists for it. Best effort: the updated-at approximation is wrong
// for multi-visit histories, but pre-migration data has nothing better.
var LegacyEntryPolicy = []EntryRule{
	{
		Name: "initial-state-uses-created-at",
		Resolve: func(state string, e EntityDates) *time.Time {
			if state != e.InitialState {
				return nil
			}
			return timeutil.Normalize(e.CreatedAt)
		},
	},
	{
		Name: "review-state-uses-review-entered-at",
		Resolve: func(state string, e EntityDates) *time.Time {
			if state != e.ReviewState {
				return nil
			}
			return timeutil.Normalize(e.ReviewEnteredAt)
		},
	},
	{
		Name: "any-state-approximates-with-updated-at",
		Resolve: func(state string, e EntityDates) *time.Time {
			return timeutil.Normalize(e.UpdatedAt)
		},
	},
}

// LegacyEntry applies the policy in order and returns the first resolved
// instant, or nil when the entity has no usable timestamps at all.
func LegacyEntry(state string, e EntityDates) *time.Time {
	for _, rule := range LegacyEntryPolicy {
		if entered := rule.Resolve(state, e); entered != nil {
			return entered
		}
	}
	return nil
}

// LegacyDaysInState computes days-in-state for an entity with no ledger.
// Always a non-negative integer; an unresolvable entry instant counts as
// zero days rather than an error.
func LegacyDaysInState(state string, e EntityDates, now time.Time) int {
	entered := LegacyEntry(state, e)
	if entered == nil {
		return 0
	}
	return wholeDays(*entered, now)
}
