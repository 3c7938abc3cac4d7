package deps

import "sort"

// PlannedChange is the merged mutation for one issue: labels to add,
// labels to remove, and the reasons that led here. Add and remove are
// deduplicated case-insensitively against each other; after finalize
// they are disjoint (remove wins).
type PlannedChange struct {
	IssueKey string
	Add      []string
	Remove   []string
	Reasons  []string
}

// changeSet accumulates mutations across both reconciliation passes,
// merging per issue key.
type changeSet struct {
	byKey map[string]*PlannedChange
}

func newChangeSet() *changeSet {
	return &changeSet{byKey: make(map[string]*PlannedChange)}
}

func (cs *changeSet) change(key string) *PlannedChange {
	ch, ok := cs.byKey[key]
	if !ok {
		ch = &PlannedChange{IssueKey: key}
		cs.byKey[key] = ch
	}
	return ch
}

// stageAdd records that label should be added to the issue.
func (cs *changeSet) stageAdd(key, label, reason string) {
	ch := cs.change(key)
	if !containsFold(ch.Add, label) {
		ch.Add = append(ch.Add, label)
	}
	ch.addReason(reason)
}

// stageRemove records that label should be removed from the issue.
func (cs *changeSet) stageRemove(key, label, reason string) {
	ch := cs.change(key)
	if !containsFold(ch.Remove, label) {
		ch.Remove = append(ch.Remove, label)
	}
	ch.addReason(reason)
}

// addReason appends a reason in encounter order, deduplicated by exact
// text.
func (ch *PlannedChange) addReason(reason string) {
	for _, r := range ch.Reasons {
		if r == reason {
			return
		}
	}
	ch.Reasons = append(ch.Reasons, reason)
}

// finalize resolves conflicts and returns the changes sorted by issue
// key. A label staged for both add and remove is dropped from the add
// set, so a rename never flip-flops. Issues with nothing left to do are
// dropped entirely.
func (cs *changeSet) finalize() []PlannedChange {
	out := make([]PlannedChange, 0, len(cs.byKey))
	for _, ch := range cs.byKey {
		var add []string
		for _, label := range ch.Add {
			if !containsFold(ch.Remove, label) {
				add = append(add, label)
			}
		}
		ch.Add = add
		if len(ch.Add) == 0 && len(ch.Remove) == 0 {
			continue
		}
		out = append(out, *ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssueKey < out[j].IssueKey })
	return out
}
