package ufunc

import (
	"strings"
)

// Rule replaces every literal occurrence of Old with New.
type Rule struct {
	Old string
	New string
}

// RewriteRules is the third canonicalization pass. Every function whose
// identity changed relative to its call-site text, either a variant or one
// whose arity grew in Augment, yields a rule from its original call form to
// its canonical call form. Identical forms produce no rule.
func RewriteRules(t Table) []Rule {
	var rules []Rule
	for _, fn := range t.Functions() {
		if !fn.IsVariant() && fn.Arity <= fn.OriginalArity {
			continue
		}
		oldCall, newCall := fn.OriginalCallForm(), fn.CallForm()
		if oldCall != newCall {
			rules = append(rules, Rule{Old: oldCall, New: newCall})
		}
	}
	return rules
}

// ApplyAll applies rules, in order, to each text and returns the rewritten
// texts. The same rule list is used for all texts so they stay consistent.
func ApplyAll(rules []Rule, texts ...string) []string {
	out := make([]string, len(texts))
	for i, text := range texts {
		for _, r := range rules {
			if r.Old == "" {
				continue
			}
			text = strings.ReplaceAll(text, r.Old, r.New)
		}
		out[i] = text
	}
	return out
}
