package deps

import "strings"

// TrackedLabels is the label family the engine reconciles: one
// canonical label plus any deprecated aliases still found in the wild.
// All matching is case-insensitive.
type TrackedLabels struct {
	Canonical string
	Aliases   []string
}

// All returns the canonical label followed by the aliases.
func (t TrackedLabels) All() []string {
	return append([]string{t.Canonical}, t.Aliases...)
}

// IsCanonical reports whether label is the canonical label.
func (t TrackedLabels) IsCanonical(label string) bool {
	return strings.EqualFold(label, t.Canonical)
}

// IsAlias reports whether label is one of the deprecated aliases.
func (t TrackedLabels) IsAlias(label string) bool {
	for _, alias := range t.Aliases {
		if strings.EqualFold(label, alias) {
			return true
		}
	}
	return false
}

// IsTracked reports whether label belongs to the tracked family.
func (t TrackedLabels) IsTracked(label string) bool {
	return t.IsCanonical(label) || t.IsAlias(label)
}

// containsFold reports whether labels contains label, ignoring case.
func containsFold(labels []string, label string) bool {
	for _, l := range labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}
