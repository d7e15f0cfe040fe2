// Package crm holds the lead-deduplication logic used by single-lead checks
// and CSV batch imports.
package crm

import (
	"strings"

	"copydesk/api/internal/store"
)

// Match key fields. Unknown names are ignored when building keys.
const (
	KeyName    = "name"
	KeyEmail   = "email"
	KeyCompany = "company"
)

// MatchConfig controls which lead fields form the composite duplicate key
// and whether comparison is case sensitive.
type MatchConfig struct {
	Keys          []string `json:"keys"`
	CaseSensitive bool     `json:"caseSensitive"`
}

// DefaultMatchConfig matches on name and email, case-insensitively.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{Keys: []string{KeyName, KeyEmail}}
}

func knownKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		switch key {
		case KeyName, KeyEmail, KeyCompany:
			out = append(out, key)
		}
	}
	return out
}

// DuplicateIndex pre-indexes existing leads by composite key so a batch of
// candidates can be checked in time linear in the batch size. Build it once
// per import, not once per row.
type DuplicateIndex struct {
	cfg   MatchConfig
	byKey map[string][]store.Lead
}

// NewDuplicateIndex builds the lookup structure over the existing leads.
// Unknown key names are dropped from the config; when nothing recognized
// remains the default config applies, so a bad config can never degenerate
// into matching every lead against every other.
func NewDuplicateIndex(existing []store.Lead, cfg MatchConfig) *DuplicateIndex {
	cfg.Keys = knownKeys(cfg.Keys)
	if len(cfg.Keys) == 0 {
		cfg = DefaultMatchConfig()
	}
	index := &DuplicateIndex{
		cfg:   cfg,
		byKey: make(map[string][]store.Lead, len(existing)),
	}
	for _, lead := range existing {
		index.Add(lead)
	}
	return index
}

// Add indexes one more lead, so rows accepted mid-batch dedupe against each
// other, not just against the pre-existing set.
func (i *DuplicateIndex) Add(lead store.Lead) {
	key := i.Key(lead)
	i.byKey[key] = append(i.byKey[key], lead)
}

// FindDuplicates returns every indexed lead sharing the candidate's
// composite key. An empty result means the candidate is new.
func (i *DuplicateIndex) FindDuplicates(candidate store.Lead) []store.Lead {
	return i.byKey[i.Key(candidate)]
}

// Key builds the composite key for a lead under this index's config.
// The unit separator keeps multi-field keys unambiguous.
func (i *DuplicateIndex) Key(lead store.Lead) string {
	parts := make([]string, 0, len(i.cfg.Keys))
	for _, field := range i.cfg.Keys {
		var value string
		switch field {
		case KeyName:
			value = lead.Name
		case KeyEmail:
			value = lead.Email
		case KeyCompany:
			value = lead.Company
		default:
			continue
		}
		value = strings.TrimSpace(value)
		if !i.cfg.CaseSensitive {
			value = strings.ToLower(value)
		}
		parts = append(parts, value)
	}
	return strings.Join(parts, "\x1f")
}
