// Package relation turns raw relation text into structured pieces: the
// assignment name, the iterator tuple, and the conjuncts of the condition
// clause, and classifies each conjunct.
//
// Every function here is total. Malformed input yields empty or degraded
// results, never an error.
package relation

import (
	"strings"
	"unicode"
)

// AssignOp separates a relation name from its body, as in `r := {[i]:...}`.
const AssignOp = ":="

// Relation is one named relation and what could be extracted from it.
type Relation struct {
	Name string
	// Text is the whitespace-free body.
	Text string
	// Iterators is ordered; position defines loop nesting.
	Iterators []string
	// CondText is the raw condition clause the Conditions were split from.
	CondText     string
	Conditions   []string
	Existentials []string
	Given        string
}

// Preprocess strips an optional `name :=` prefix and all whitespace from raw.
// When the prefix is present its trimmed left side replaces name.
func Preprocess(raw, name string) (body, relName string) {
	relName = name
	body = raw
	if pos := strings.Index(raw, AssignOp); pos >= 0 {
		relName = strings.TrimSpace(raw[:pos])
		body = raw[pos+len(AssignOp):]
	}
	return removeWhitespace(body), relName
}

// Parse splits a preprocessed body into its iterator tuple and conjuncts.
// A body without ':' has no structured information and is returned with
// empty iterators and conditions.
func Parse(name, body string) Relation {
	rel := Relation{Name: name, Text: body}

	pos := strings.IndexByte(body, ':')
	if pos < 0 {
		return rel
	}

	iterText := strings.TrimPrefix(body[:pos], "{")
	iterText = strings.TrimPrefix(iterText, "[")
	iterText = strings.TrimSuffix(iterText, "]")
	if iterText != "" {
		rel.Iterators = strings.Split(iterText, ",")
	}

	rel.CondText = strings.TrimRight(body[pos+1:], "}")
	if rel.CondText != "" {
		rel.Conditions = strings.Split(rel.CondText, "&&")
	}
	return rel
}

func removeWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
