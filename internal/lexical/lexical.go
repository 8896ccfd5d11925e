// Package lexical holds the token heuristics shared by the relation pipeline.
//
// Nothing here parses the Omega grammar. Relations are inspected as raw text:
// operands are whatever falls between operator characters, keywords are matched
// case-insensitively, and call arguments end at the first closing parenthesis.
// Consumers depend on these exact rules, quirks included, so tests pin the
// heuristic rather than a semantic parse.
package lexical

import (
	"slices"
	"strings"
)

// Operator sets used when splitting conjuncts into operands.
const (
	RelationalOps = "><="
	ArithmeticOps = "+-*/"
)

// Keywords is the reserved-word set of the Omega calculator.
var Keywords = []string{
	"exists", "union", "intersection", "complement", "compose", "inverse",
	"domain", "range", "hull", "codegen", "farkas", "forall", "given", "and",
	"or", "not", "within", "subsetof", "supersetof", "symbolic",
}

var keywordSet = func() map[string]bool {
	set := make(map[string]bool, len(Keywords))
	for _, kw := range Keywords {
		set[kw] = true
	}
	return set
}()

// IsKeyword reports whether token, lowercased, is a reserved word.
func IsKeyword(token string) bool {
	return keywordSet[strings.ToLower(token)]
}

// ContainsKeyword reports whether any reserved word occurs as a substring of text.
// Matching is case-insensitive, so "Range_N" and "rand" both count.
func ContainsKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// SplitOnOperators splits text at every byte contained in ops and returns the
// non-empty operands in order, or nil when there are none.
func SplitOnOperators(text, ops string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return strings.ContainsRune(ops, r)
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// IteratorPrefix grows token one character at a time and returns the first
// prefix that names a declared iterator, or "" when none does.
func IteratorPrefix(token string, iterators []string) string {
	for i := 1; i <= len(token); i++ {
		if slices.Contains(iterators, token[:i]) {
			return token[:i]
		}
	}
	return ""
}

// Words returns the identifier words of text: maximal runs of letters, digits
// and underscores that start with a letter or underscore. Numeric literals are
// skipped.
func Words(text string) []string {
	var words []string
	start := -1
	for i := 0; i <= len(text); i++ {
		if i < len(text) && isIdentByte(text[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if word := text[start:i]; !isDigit(word[0]) {
				words = append(words, word)
			}
			start = -1
		}
	}
	return words
}

// CallArgs returns the argument text of every `name(` occurrence in text, in
// order of appearance. Arguments run to the first ')' after the opening
// parenthesis; nested calls are not balanced. An unterminated call yields the
// remainder of text.
func CallArgs(text, name string) []string {
	if name == "" {
		return nil
	}
	marker := name + "("
	var args []string
	for pos := 0; pos < len(text); {
		idx := strings.Index(text[pos:], marker)
		if idx < 0 {
			break
		}
		open := pos + idx + len(marker)
		end := strings.IndexByte(text[open:], ')')
		if end < 0 {
			args = append(args, text[open:])
			break
		}
		args = append(args, text[open:open+end])
		pos = open + end + 1
	}
	return args
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isIdentByte(b byte) bool {
	return b == '_' || isDigit(b) || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// EndsInDigit reports whether the last byte of s is an ASCII digit.
func EndsInDigit(s string) bool {
	return s != "" && isDigit(s[len(s)-1])
}
