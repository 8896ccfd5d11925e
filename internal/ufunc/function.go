// Package ufunc canonicalizes uninterpreted function calls found in relation text.
//
// Functions are discovered as plain identifiers followed by '(' and carry no
// declaration of their own; arity and argument shape are inferred from the
// call sites. Canonicalization runs three passes, each a pure transformation
// from one Table to the next:
//
//  1. DiscoverCallSites: collect the distinct argument lists of every call,
//     fix the canonical shape from the first one and synthesize a variant for
//     each divergent call.
//  2. Augment: prepend the enclosing loop-nest iterators so f(j) nested in i
//     becomes f(i,j).
//  3. RewriteRules / ApplyAll: replace every stale call form in the relation
//     body and given clause.
package ufunc

import (
	"fmt"
	"strconv"
	"strings"

	"omegagen/internal/lexical"
)

// OriginKind tags how a function entered the table.
type OriginKind int

const (
	// OriginBase is a function named directly in the relation text.
	OriginBase OriginKind = iota
	// OriginVariant is synthesized for a call site whose argument shape
	// diverges from its base function.
	OriginVariant
)

func (k OriginKind) String() string {
	if k == OriginVariant {
		return "variant"
	}
	return "base"
}

// MarshalText encodes the kind by name so persisted tables stay readable.
func (k OriginKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names written by MarshalText.
func (k *OriginKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "base", "":
		*k = OriginBase
	case "variant":
		*k = OriginVariant
	default:
		return fmt.Errorf("unknown origin kind %q", text)
	}
	return nil
}

// Origin records where a function came from. For variants it names the base
// function and the 1-based argument position where the call diverged.
type Origin struct {
	Kind     OriginKind `json:"kind"`
	BaseName string     `json:"base_name,omitempty"`
	Position int        `json:"position,omitempty"`
}

// BaseOrigin returns the origin of a directly named function.
func BaseOrigin() Origin {
	return Origin{Kind: OriginBase}
}

// VariantOrigin returns the origin of a variant of base diverging at position.
func VariantOrigin(base string, position int) Origin {
	return Origin{Kind: OriginVariant, BaseName: base, Position: position}
}

// VariantName derives the engine-visible name of a variant. An underscore
// separates the position when the base name already ends in a digit, so ind0
// diverging at position 1 becomes ind0_1 rather than ind01.
func VariantName(base string, position int) string {
	name := base
	if lexical.EndsInDigit(name) {
		name += "_"
	}
	return name + strconv.Itoa(position)
}

// Function is one uninterpreted function known to the pipeline.
type Function struct {
	Name  string `json:"name"`
	Arity int    `json:"arity"`
	// Order is the first-seen declaration order.
	Order int `json:"order"`
	// Args is the canonical argument sequence, iterators where resolvable.
	Args   []string `json:"args"`
	Origin Origin   `json:"origin"`
	// OriginalArgs holds the argument tokens as written at the call site this
	// entry was derived from, before iterator substitution.
	OriginalArgs []string `json:"original_args,omitempty"`
	// OriginalArity is the arity before iterator-prefix augmentation.
	OriginalArity int `json:"original_arity,omitempty"`
}

// NewFunction returns a provisional function of arity 1.
func NewFunction(name string, order int) Function {
	return Function{Name: name, Arity: 1, Order: order, Origin: BaseOrigin()}
}

// IsVariant reports whether f was synthesized from another function.
func (f Function) IsVariant() bool {
	return f.Origin.Kind == OriginVariant
}

// OriginalName returns the base function name for variants and "" otherwise.
func (f Function) OriginalName() string {
	if f.IsVariant() {
		return f.Origin.BaseName
	}
	return ""
}

// SourceName is the name as it appears in the user's text: the base name for
// variants, the function's own name otherwise.
func (f Function) SourceName() string {
	if f.IsVariant() {
		return f.Origin.BaseName
	}
	return f.Name
}

// CallForm renders the canonical call, e.g. col(i,n).
func (f Function) CallForm() string {
	return f.Name + "(" + strings.Join(f.Args, ",") + ")"
}

// OriginalCallForm renders the call as it was written before canonicalization.
func (f Function) OriginalCallForm() string {
	return f.SourceName() + "(" + strings.Join(f.OriginalArgs, ",") + ")"
}

// ArrayForm renders the flattened array access equivalent to the call,
// e.g. rp[(i+1)].
func (f Function) ArrayForm() string {
	return f.SourceName() + "[(" + strings.Join(f.OriginalArgs, "),(") + ")]"
}

// Declaration renders the symbolic declaration entry, e.g. col(2).
func (f Function) Declaration() string {
	return f.Name + "(" + strconv.Itoa(f.Arity) + ")"
}

// Clone returns a deep copy of f.
func (f Function) Clone() Function {
	c := f
	c.Args = append([]string(nil), f.Args...)
	c.OriginalArgs = append([]string(nil), f.OriginalArgs...)
	return c
}

// String renders the function as name(arity) -> (args).
func (f Function) String() string {
	return fmt.Sprintf("%s(%d) -> (%s)", f.Name, f.Arity, strings.Join(f.Args, ","))
}
