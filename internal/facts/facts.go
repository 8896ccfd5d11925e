// Package facts exposes a pipeline's function table and iterator tuple as a
// Mangle (Datalog) fact base, so canonicalization results can be inspected
// with predicate queries instead of ad-hoc printing.
package facts

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"omegagen/internal/logging"
	"omegagen/internal/ufunc"
)

// Schema declares the extensional predicates loaded from a function table and
// the rules derived from them.
const Schema = `
Decl ufunc(Name, Arity, Order, Kind).
Decl variant_of(Variant, Base, Position).
Decl canonical_arg(Name, Position, Arg).
Decl original_arg(Name, Position, Arg).
Decl original_arity(Name, Arity).
Decl iterator(Name, Position).

Decl uses_iterator(Function, Iterator).
uses_iterator(F, I) :- canonical_arg(F, _, I), iterator(I, _).

Decl augmented(Function).
augmented(F) :- ufunc(F, A, _, _), original_arity(F, O), O < A.

Decl base_function(Function).
base_function(F) :- ufunc(F, _, _, /base).

Decl has_variant(Base, Variant).
has_variant(B, V) :- variant_of(V, B, _), base_function(B).
`

// Fact is one derived or loaded atom with its arguments converted to Go
// values: strings for names and strings, int64 for numbers.
type Fact struct {
	Predicate string
	Args      []interface{}
}

// String renders the fact in Mangle notation.
func (f Fact) String() string {
	parts := make([]string, len(f.Args))
	for i, arg := range f.Args {
		switch v := arg.(type) {
		case string:
			if strings.HasPrefix(v, "/") {
				parts[i] = v
			} else {
				parts[i] = fmt.Sprintf("%q", v)
			}
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return f.Predicate + "(" + strings.Join(parts, ", ") + ")."
}

// Base is an evaluated fact base. It is read-only once built.
type Base struct {
	programInfo    *analysis.ProgramInfo
	store          factstore.FactStore
	predicateIndex map[string]ast.PredicateSym
}

// Load builds a fact base from iterators and funcs and evaluates the rules
// of Schema over it.
func Load(iterators []string, funcs ufunc.Table) (*Base, error) {
	timer := logging.StartTimer(logging.CategoryFacts, "Load facts")
	defer timer.Stop()

	unit, err := parse.Unit(bytes.NewReader([]byte(Schema)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze schema: %w", err)
	}

	b := &Base{
		programInfo:    programInfo,
		store:          factstore.NewSimpleInMemoryStore(),
		predicateIndex: make(map[string]ast.PredicateSym, len(programInfo.Decls)),
	}
	for sym := range programInfo.Decls {
		b.predicateIndex[sym.Symbol] = sym
	}

	if err := b.addAll(iterators, funcs); err != nil {
		return nil, err
	}
	if _, err := mengine.EvalProgramWithStats(programInfo, b.store); err != nil {
		return nil, fmt.Errorf("failed to evaluate rules: %w", err)
	}

	logging.Facts("Loaded %d functions and %d iterators (%d facts)",
		len(funcs), len(iterators), b.store.EstimateFactCount())
	return b, nil
}

func (b *Base) addAll(iterators []string, funcs ufunc.Table) error {
	for i, it := range iterators {
		if err := b.add("iterator", ast.String(it), ast.Number(int64(i))); err != nil {
			return err
		}
	}

	for _, fn := range funcs.Functions() {
		kind, err := ast.Name("/" + fn.Origin.Kind.String())
		if err != nil {
			return fmt.Errorf("invalid kind for %s: %w", fn.Name, err)
		}
		name := ast.String(fn.Name)
		if err := b.add("ufunc", name, ast.Number(int64(fn.Arity)), ast.Number(int64(fn.Order)), kind); err != nil {
			return err
		}
		if fn.OriginalArity > 0 {
			if err := b.add("original_arity", name, ast.Number(int64(fn.OriginalArity))); err != nil {
				return err
			}
		}
		if fn.IsVariant() {
			if err := b.add("variant_of", name, ast.String(fn.Origin.BaseName), ast.Number(int64(fn.Origin.Position))); err != nil {
				return err
			}
		}
		for p, arg := range fn.Args {
			if err := b.add("canonical_arg", name, ast.Number(int64(p)), ast.String(arg)); err != nil {
				return err
			}
		}
		for p, arg := range fn.OriginalArgs {
			if err := b.add("original_arg", name, ast.Number(int64(p)), ast.String(arg)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Base) add(predicate string, args ...ast.BaseTerm) error {
	sym, ok := b.predicateIndex[predicate]
	if !ok {
		return fmt.Errorf("predicate %s is not declared in schema", predicate)
	}
	if len(args) != sym.Arity {
		return fmt.Errorf("predicate %s expects %d args, got %d", predicate, sym.Arity, len(args))
	}
	b.store.Add(ast.Atom{Predicate: sym, Args: args})
	return nil
}

// Predicates returns every declared predicate name, sorted.
func (b *Base) Predicates() []string {
	names := make([]string, 0, len(b.predicateIndex))
	for name := range b.predicateIndex {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Query returns the facts of predicate whose leading arguments match filters.
// A filter of "_" or "" matches anything; otherwise it is compared with the
// argument's printed value. Results are sorted by their Mangle rendering.
func (b *Base) Query(predicate string, filters ...string) ([]Fact, error) {
	sym, ok := b.predicateIndex[predicate]
	if !ok {
		return nil, fmt.Errorf("predicate %s is not declared", predicate)
	}
	if len(filters) > sym.Arity {
		return nil, fmt.Errorf("predicate %s takes %d args, got %d filters", predicate, sym.Arity, len(filters))
	}

	var results []Fact
	err := b.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		fact := Fact{Predicate: predicate, Args: make([]interface{}, len(atom.Args))}
		for i, arg := range atom.Args {
			fact.Args[i] = convertBaseTerm(arg)
		}
		if matches(fact, filters) {
			results = append(results, fact)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query %s failed: %w", predicate, err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].String() < results[j].String()
	})
	logging.FactsDebug("Query %s%v: %d results", predicate, filters, len(results))
	return results, nil
}

func matches(f Fact, filters []string) bool {
	for i, want := range filters {
		if want == "" || want == "_" {
			continue
		}
		if fmt.Sprint(f.Args[i]) != want {
			return false
		}
	}
	return true
}

func convertBaseTerm(term ast.BaseTerm) interface{} {
	c, ok := term.(ast.Constant)
	if !ok {
		return fmt.Sprintf("%v", term)
	}
	switch c.Type {
	case ast.StringType, ast.NameType:
		return c.Symbol
	case ast.NumberType:
		return c.NumValue
	default:
		return c.String()
	}
}
