package relation

import (
	"slices"
	"strings"

	"omegagen/internal/lexical"
	"omegagen/internal/ufunc"
)

const existsMarker = "exists("

// Classification is what Classify learned from a relation's conjuncts.
type Classification struct {
	// Existentials may hold duplicates when several conjuncts bind the same name.
	Existentials []string
	// Knowns are conjuncts independent of iterators and existentials.
	Knowns []string
	// Symbols are symbolic constant names in first-seen order.
	Symbols []string
	// Functions holds provisional uninterpreted functions (arity 1).
	Functions ufunc.Table
}

// Classify walks the conjuncts of rel in order. Identifier words that are
// neither iterators nor keywords become uninterpreted functions when the body
// contains `word(`, and symbolic constants otherwise. A token that could be
// either a relation variable or a constant is treated as a constant.
func Classify(rel Relation) Classification {
	cls := Classification{Functions: make(ufunc.Table)}

	for _, cond := range rel.Conditions {
		cls.Existentials = append(cls.Existentials, existentials(cond)...)

		for _, word := range lexical.Words(cond) {
			if slices.Contains(rel.Iterators, word) || lexical.IsKeyword(word) {
				continue
			}
			if strings.Contains(rel.Text, word+"(") && cls.Functions.Register(word) {
				continue
			}
			if !slices.Contains(cls.Symbols, word) && !cls.Functions.Has(word) &&
				!slices.Contains(cls.Existentials, word) {
				cls.Symbols = append(cls.Symbols, word)
			}
		}

		if IsKnown(cond, rel.Iterators, cls.Existentials) {
			cls.Knowns = append(cls.Knowns, cond)
		}
	}

	return cls
}

// IsKnown reports whether cond can move to the given clause. All three
// textual checks must pass: no operand between relational operators is an
// iterator or existential, no keyword occurs anywhere in cond, and no operand
// between arithmetic operators is an iterator or existential.
func IsKnown(cond string, iterators, existentials []string) bool {
	bound := func(operand string) bool {
		return slices.Contains(iterators, operand) || slices.Contains(existentials, operand)
	}
	operands := lexical.SplitOnOperators(cond, lexical.RelationalOps)
	if len(operands) == 0 {
		return false
	}
	for _, operand := range operands {
		if bound(operand) {
			return false
		}
	}
	if lexical.ContainsKeyword(cond) {
		return false
	}
	for _, operand := range lexical.SplitOnOperators(cond, lexical.ArithmeticOps) {
		if bound(operand) {
			return false
		}
	}
	return true
}

// existentials returns the variables bound by an exists( clause in cond.
func existentials(cond string) []string {
	pos := strings.Index(cond, existsMarker)
	if pos < 0 {
		return nil
	}
	rest := cond[pos+len(existsMarker):]
	if end := strings.IndexAny(rest, ":)"); end >= 0 {
		rest = rest[:end]
	}
	var vars []string
	for _, v := range strings.Split(rest, ",") {
		if v != "" {
			vars = append(vars, v)
		}
	}
	return vars
}
