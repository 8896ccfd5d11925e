package ufunc

import (
	"slices"
)

// Augment is the second canonicalization pass. The engine treats the
// arguments of an uninterpreted function as a prefix of the input tuple, so a
// call whose first iterator argument sits at position p of iterators gets
// iterators[0:p] prepended: with iterators [i,j], f(j) becomes f(i,j).
//
// OriginalArity records the arity before augmentation. Functions whose
// OriginalArgs were never set by DiscoverCallSites take the pre-augmentation
// Args. It returns the new table and the declaration entries in table order.
func Augment(in Table, iterators []string) (Table, []string) {
	out := make(Table, len(in))
	decls := make([]string, 0, len(in))

	for _, name := range in.Names() {
		fn := in[name].Clone()
		if fn.Arity > 0 {
			fn.OriginalArity = fn.Arity
			var prefix []string
			for _, arg := range fn.Args {
				if pos := slices.Index(iterators, arg); pos >= 0 {
					prefix = iterators[:pos]
					break
				}
			}
			if len(fn.OriginalArgs) == 0 {
				fn.OriginalArgs = append([]string(nil), fn.Args...)
			}
			if len(prefix) > 0 {
				fn.Args = append(append([]string(nil), prefix...), fn.Args...)
				fn.Arity = len(fn.Args)
			}
		}
		decls = append(decls, fn.Declaration())
		out[name] = fn
	}

	return out, decls
}
