// Package deps implements the dependency-reconciliation engine: link
// classification, the core scope filter, the two-pass scan that derives
// label mutations, and the applier that executes or previews them.
package deps

import (
	"strings"

	"github.com/AlanSobenes/jira-label-sync/internal/jira"
)

// Direction is the side of a link the owning issue sees it from.
type Direction string

const (
	Inward  Direction = "inward"
	Outward Direction = "outward"
)

// LinkRules decides which issue links count as authoritative dependency
// edges. Ignore rules always override authority.
type LinkRules struct {
	typeNames      map[string]struct{}
	typeIDs        map[string]struct{}
	directions     map[Direction]struct{}
	ignoredTypeIDs map[string]struct{}
	ignoredNames   map[string]struct{}
}

// NewLinkRules builds classification rules. Type names and ignored
// names match case-insensitively; when typeIDs is non-empty it takes
// precedence and name-based authority rules are bypassed entirely.
func NewLinkRules(typeNames, typeIDs, directions, ignoredTypeIDs, ignoredNames []string) LinkRules {
	r := LinkRules{
		typeNames:      foldSet(typeNames),
		typeIDs:        exactSet(typeIDs),
		directions:     make(map[Direction]struct{}, len(directions)),
		ignoredTypeIDs: exactSet(ignoredTypeIDs),
		ignoredNames:   foldSet(ignoredNames),
	}
	for _, d := range directions {
		r.directions[Direction(strings.ToLower(d))] = struct{}{}
	}
	return r
}

// IsAuthoritative reports whether link, seen from the given direction,
// is a trusted dependency edge.
func (r LinkRules) IsAuthoritative(link jira.Link, dir Direction) bool {
	if _, ok := r.directions[dir]; !ok {
		return false
	}
	if r.ignored(link.Type) {
		return false
	}
	if len(r.typeIDs) > 0 {
		_, ok := r.typeIDs[link.Type.ID]
		return ok
	}
	if _, ok := r.typeNames[strings.ToLower(link.Type.Name)]; ok {
		return true
	}
	phrase := link.Type.Outward
	if dir == Inward {
		phrase = link.Type.Inward
	}
	_, ok := r.typeNames[strings.ToLower(phrase)]
	return ok
}

// ignored matches the link type against the ignore rules: type id, or
// any of name/inward phrase/outward phrase.
func (r LinkRules) ignored(t jira.LinkType) bool {
	if _, ok := r.ignoredTypeIDs[t.ID]; ok {
		return true
	}
	for _, name := range []string{t.Name, t.Inward, t.Outward} {
		if _, ok := r.ignoredNames[strings.ToLower(name)]; ok {
			return true
		}
	}
	return false
}

func exactSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func foldSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = struct{}{}
	}
	return set
}
