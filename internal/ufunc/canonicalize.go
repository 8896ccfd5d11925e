package ufunc

// Result is the outcome of canonicalizing one relation.
type Result struct {
	Text         string
	Given        string
	Functions    Table
	Declarations []string
	Rules        []Rule
}

// Canonicalize runs the three passes over the functions registered for one
// relation. Call sites are looked up in both the body and the given clause,
// and the rewrite rules are applied to both.
func Canonicalize(text, given string, iterators []string, funcs Table) Result {
	scan := text
	if given != "" {
		scan += "&&" + given
	}

	discovered := DiscoverCallSites(scan, iterators, funcs)
	augmented, decls := Augment(discovered, iterators)
	rules := RewriteRules(augmented)
	rewritten := ApplyAll(rules, text, given)

	return Result{
		Text:         rewritten[0],
		Given:        rewritten[1],
		Functions:    augmented,
		Declarations: decls,
		Rules:        rules,
	}
}

// Macros maps each function's canonical call form to the equivalent flattened
// array access, e.g. rp1(i) -> rp[(i+1)] and col(i,n) -> col[(n)].
func Macros(t Table) map[string]string {
	macros := make(map[string]string, len(t))
	for _, fn := range t.Functions() {
		macros[fn.CallForm()] = fn.ArrayForm()
	}
	return macros
}
