// Package assemble separates known conjuncts into a given clause and builds
// the global symbolic declaration list.
package assemble

import (
	"slices"
	"strings"

	"omegagen/internal/relation"
)

// ConjunctSep joins conjuncts in bodies and given clauses.
const ConjunctSep = "&&"

// SplitKnowns removes knowns from rel's conditions, substitutes the rejoined
// remainder for the original condition clause in the body, and returns the
// knowns joined as the relation's given clause. Each known removes one
// matching conjunct, so duplicates are handled one for one.
func SplitKnowns(rel relation.Relation, knowns []string) (relation.Relation, string) {
	if len(knowns) == 0 {
		return rel, ""
	}

	remaining := slices.Clone(rel.Conditions)
	for _, known := range knowns {
		if i := slices.Index(remaining, known); i >= 0 {
			remaining = slices.Delete(remaining, i, i+1)
		}
	}

	out := rel
	out.Conditions = remaining
	newCond := strings.Join(remaining, ConjunctSep)
	if rel.CondText != "" {
		out.Text = strings.Replace(rel.Text, rel.CondText, newCond, 1)
	}
	out.CondText = newCond
	out.Given = strings.Join(knowns, ConjunctSep)
	return out, out.Given
}

// Declarations is the comma-separated symbolic declaration list shared by all
// relations of a request: symbolic constants first seen, then function
// declarations such as f(2). Duplicates are dropped by exact match.
type Declarations struct {
	items []string
}

// Add appends each item not already present.
func (d *Declarations) Add(items ...string) {
	for _, item := range items {
		if item != "" && !slices.Contains(d.items, item) {
			d.items = append(d.items, item)
		}
	}
}

// Contains reports whether name is declared.
func (d *Declarations) Contains(name string) bool {
	return slices.Contains(d.items, name)
}

// Items returns a copy of the declarations in order.
func (d *Declarations) Items() []string {
	return slices.Clone(d.items)
}

// String renders the declarations as used after `symbolic`.
func (d *Declarations) String() string {
	return strings.Join(d.items, ",")
}

// DefaultGiven applies the legacy positivity assumption: a relation without a
// given clause in a request that declares N gets N>3, and C>3 as well when C
// is declared. A non-empty given is returned unchanged.
func DefaultGiven(given string, decls *Declarations) string {
	if given != "" || !decls.Contains("N") {
		return given
	}
	given = "N>3"
	if decls.Contains("C") {
		given += ConjunctSep + "C>3"
	}
	return given
}
