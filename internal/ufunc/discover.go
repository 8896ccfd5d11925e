package ufunc

import (
	"slices"
	"sort"
	"strings"

	"omegagen/internal/lexical"
)

// DiscoverCallSites is the first canonicalization pass. For every function in
// in it scans text for `name(` calls, deduplicates and sorts the argument
// lists, and lets the first list fix the canonical shape: iterator tokens are
// kept, anything else is replaced by its iterator prefix and the call is
// remembered in OriginalArgs. Every later list is compared position by
// position; trailing extra positions extend the canonical shape and the first
// mismatch synthesizes a variant named by VariantName.
//
// The input table is not modified. Variants are numbered after the highest
// order in in, so a variant always follows its base in declaration order.
func DiscoverCallSites(text string, iterators []string, in Table) Table {
	out := make(Table, len(in))
	next := in.nextOrder()

	for _, name := range in.Names() {
		base := in[name].Clone()
		base.Args = nil
		base.OriginalArgs = nil

		lists := distinctArgLists(lexical.CallArgs(text, name))
		var variants []Function
		for i, list := range lists {
			tokens := strings.Split(list, ",")
			if i == 0 {
				for _, tok := range tokens {
					base.appendArg(tok, iterators)
				}
				continue
			}

			pos := base.diverge(tokens, iterators)
			if pos < 0 {
				continue
			}
			variant := base.Clone()
			variant.Name = VariantName(base.Name, pos+1)
			variant.Origin = VariantOrigin(base.Name, pos+1)
			variant.OriginalArgs = append([]string(nil), tokens...)
			variant.Arity = len(variant.Args)
			variant.Order = next
			next++
			variants = append(variants, variant)
		}
		if len(lists) > 0 {
			base.Arity = len(base.Args)
		}

		for _, v := range variants {
			out[v.Name] = v
		}
		out[name] = base
	}

	return out
}

// appendArg extends the canonical shape by one raw token. OriginalArgs is
// either empty or kept aligned with Args, so the original call form can be
// rebuilt position for position.
func (f *Function) appendArg(tok string, iterators []string) {
	arg := tok
	tracking := len(f.OriginalArgs) > 0
	if !slices.Contains(iterators, tok) {
		arg = lexical.IteratorPrefix(tok, iterators)
		if !tracking {
			f.OriginalArgs = append([]string(nil), f.Args...)
			tracking = true
		}
	}
	if tracking {
		f.OriginalArgs = append(f.OriginalArgs, tok)
	}
	f.Args = append(f.Args, arg)
}

// diverge compares tokens against the canonical shape. Positions past the end
// of the shape extend it. It returns the first mismatching position, or -1.
func (f *Function) diverge(tokens []string, iterators []string) int {
	for pos, tok := range tokens {
		if pos >= len(f.Args) {
			f.appendArg(tok, iterators)
			continue
		}
		if tok != f.Args[pos] {
			return pos
		}
	}
	return -1
}

func distinctArgLists(lists []string) []string {
	seen := make(map[string]bool, len(lists))
	var out []string
	for _, l := range lists {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Strings(out)
	return out
}
