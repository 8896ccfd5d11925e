package ufunc

import (
	"sort"
)

// Table maps function names to functions. Iteration is always in sorted name
// order so every pass, and the declarations it emits, is deterministic.
type Table map[string]Function

// Names returns the function names in sorted order.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Functions returns the entries in sorted name order.
func (t Table) Functions() []Function {
	out := make([]Function, 0, len(t))
	for _, name := range t.Names() {
		out = append(out, t[name])
	}
	return out
}

// Has reports whether a function named name is registered.
func (t Table) Has(name string) bool {
	_, ok := t[name]
	return ok
}

// Register adds a provisional function for name unless one exists. The new
// entry's order is the current table size. Reports whether it was added.
func (t Table) Register(name string) bool {
	if t.Has(name) {
		return false
	}
	t[name] = NewFunction(name, len(t))
	return true
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for name, fn := range t {
		out[name] = fn.Clone()
	}
	return out
}

// Merge copies every entry of src into t; entries with the same name are
// overwritten.
func (t Table) Merge(src Table) {
	for name, fn := range src {
		t[name] = fn.Clone()
	}
}

// Declarations returns name(arity) for every entry in table order.
func (t Table) Declarations() []string {
	decls := make([]string, 0, len(t))
	for _, fn := range t.Functions() {
		decls = append(decls, fn.Declaration())
	}
	return decls
}

// nextOrder returns one past the highest declaration order in t.
func (t Table) nextOrder() int {
	next := 0
	for _, fn := range t {
		if fn.Order >= next {
			next = fn.Order + 1
		}
	}
	return next
}
