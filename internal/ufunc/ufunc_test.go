package ufunc

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableOf(names ...string) Table {
	t := make(Table)
	for _, n := range names {
		t.Register(n)
	}
	return t
}

func signatures(t Table) []string {
	var out []string
	for _, fn := range t.Functions() {
		out = append(out, fn.String())
	}
	return out
}

func TestVariantName(t *testing.T) {
	assert.Equal(t, "g1", VariantName("g", 1))
	assert.Equal(t, "rp2", VariantName("rp", 2))
	assert.Equal(t, "ind0_1", VariantName("ind0", 1))
}

func TestFunctionForms(t *testing.T) {
	fn := Function{
		Name:         "rp1",
		Arity:        1,
		Args:         []string{"i"},
		Origin:       VariantOrigin("rp", 1),
		OriginalArgs: []string{"i+1"},
	}
	assert.True(t, fn.IsVariant())
	assert.Equal(t, "rp", fn.OriginalName())
	assert.Equal(t, "rp1(i)", fn.CallForm())
	assert.Equal(t, "rp(i+1)", fn.OriginalCallForm())
	assert.Equal(t, "rp[(i+1)]", fn.ArrayForm())
	assert.Equal(t, "rp1(1)", fn.Declaration())
	assert.Equal(t, "rp1(1) -> (i)", fn.String())

	base := NewFunction("col", 3)
	assert.False(t, base.IsVariant())
	assert.Equal(t, "", base.OriginalName())
	assert.Equal(t, "col", base.SourceName())
}

func TestDiscoverFirstShape(t *testing.T) {
	out := DiscoverCallSites("{i,j:f(j)=0}", []string{"i", "j"}, tableOf("f"))

	require.Len(t, out, 1)
	f := out["f"]
	assert.Equal(t, []string{"j"}, f.Args)
	assert.Equal(t, 1, f.Arity)
	assert.Empty(t, f.OriginalArgs, "iterator arguments are not renamed")
}

func TestDiscoverRenamesNonIterators(t *testing.T) {
	out := DiscoverCallSites("{[i,k]:f(i,k+1)>0}", []string{"i", "k"}, tableOf("f"))

	f := out["f"]
	assert.Equal(t, []string{"i", "k"}, f.Args)
	assert.Equal(t, []string{"i", "k+1"}, f.OriginalArgs)
}

func TestDiscoverVariant(t *testing.T) {
	in := tableOf("g")
	out := DiscoverCallSites("{[i,j]:g(j)<=i&&i<g(i)}", []string{"i", "j"}, in)

	require.Len(t, out, 2)
	g, g1 := out["g"], out["g1"]
	assert.Equal(t, []string{"i"}, g.Args, "lexicographically first list wins")
	assert.False(t, g.IsVariant())

	assert.True(t, g1.IsVariant())
	assert.Equal(t, VariantOrigin("g", 1), g1.Origin)
	assert.Equal(t, []string{"i"}, g1.Args)
	assert.Equal(t, []string{"j"}, g1.OriginalArgs)
	assert.Greater(t, g1.Order, g.Order)

	// Input table untouched.
	assert.Nil(t, in["g"].Args)
	assert.Len(t, in, 1)
}

func TestDiscoverExtendsShape(t *testing.T) {
	out := DiscoverCallSites("{[i,j]:h(i)<h(i,j)}", []string{"i", "j"}, tableOf("h"))

	require.Len(t, out, 1)
	assert.Equal(t, []string{"i", "j"}, out["h"].Args)
	assert.Equal(t, 2, out["h"].Arity)
}

func TestDiscoverVariantOverwritesByName(t *testing.T) {
	// Both divergent lists mismatch at position 1, so both derive f1; the later one wins.
	out := DiscoverCallSites("{[i,j,k]:f(i)<f(j)<f(k)}", []string{"i", "j", "k"}, tableOf("f"))

	require.Len(t, out, 2)
	assert.Equal(t, []string{"k"}, out["f1"].OriginalArgs)
}

func TestAugment(t *testing.T) {
	discovered := DiscoverCallSites("{i,j:f(j)=0}", []string{"i", "j"}, tableOf("f"))
	out, decls := Augment(discovered, []string{"i", "j"})

	f := out["f"]
	assert.Equal(t, []string{"i", "j"}, f.Args)
	assert.Equal(t, 2, f.Arity)
	assert.Equal(t, 1, f.OriginalArity)
	assert.Equal(t, []string{"j"}, f.OriginalArgs)
	assert.Equal(t, []string{"f(2)"}, decls)

	// Pass 1 output untouched.
	assert.Equal(t, []string{"j"}, discovered["f"].Args)
}

func TestCanonicalizeScenarioPrefix(t *testing.T) {
	res := Canonicalize("{i,j:f(j)=0}", "", []string{"i", "j"}, tableOf("f"))

	assert.Equal(t, "{i,j:f(i,j)=0}", res.Text)
	assert.Equal(t, []string{"f(2)"}, res.Declarations)
	assert.Equal(t, []Rule{{Old: "f(j)", New: "f(i,j)"}}, res.Rules)
}

func TestCanonicalizeScenarioVariant(t *testing.T) {
	res := Canonicalize("{[i,j]:g(i)<=j&&j<g(j)}", "", []string{"i", "j"}, tableOf("g"))

	assert.Equal(t, "{[i,j]:g(i)<=j&&j<g1(i)}", res.Text)
	assert.Equal(t, []string{"g(1)", "g1(1)"}, res.Declarations)
}

func TestCanonicalizeSpmv(t *testing.T) {
	text := "{[i,n,j]:0<=i<N&&rp(i)<=n<rp(i+1)&&j=col(n)}"
	iters := []string{"i", "n", "j"}
	res := Canonicalize(text, "", iters, tableOf("rp", "col"))

	assert.Equal(t, "{[i,n,j]:0<=i<N&&rp(i)<=n<rp1(i)&&j=col(i,n)}", res.Text)
	assert.Equal(t, []string{"col(2)", "rp(1)", "rp1(1)"}, res.Declarations)

	want := map[string]string{
		"col(i,n)": "col[(n)]",
		"rp(i)":    "rp[(i)]",
		"rp1(i)":   "rp[(i+1)]",
	}
	if diff := cmp.Diff(want, Macros(res.Functions)); diff != "" {
		t.Errorf("macros mismatch (-want +got):\n%s", diff)
	}
}

func TestCanonicalizeRewritesGiven(t *testing.T) {
	res := Canonicalize("{[i,j]:0<=j<f(j)}", "f(j)>0", []string{"i", "j"}, tableOf("f"))

	assert.Equal(t, "{[i,j]:0<=j<f(i,j)}", res.Text)
	assert.Equal(t, "f(i,j)>0", res.Given)
}

func TestCanonicalizeIdempotent(t *testing.T) {
	iters := []string{"i", "n", "j"}
	first := Canonicalize("{[i,n,j]:0<=i<N&&rp(i)<=n<rp(i+1)&&j=col(n)}", "", iters, tableOf("rp", "col"))

	// A second run sees the variant as a plain function of its own.
	second := Canonicalize(first.Text, first.Given, iters, tableOf(first.Functions.Names()...))

	assert.Equal(t, first.Text, second.Text)
	assert.Empty(t, second.Rules)
	if diff := cmp.Diff(signatures(first.Functions), signatures(second.Functions)); diff != "" {
		t.Errorf("table changed on re-canonicalization (-first +second):\n%s", diff)
	}
}

func TestArityMonotonic(t *testing.T) {
	iters := []string{"i", "j", "k"}
	tests := []struct {
		text  string
		funcs []string
	}{
		{"{[i,j,k]:f(k)<g(j)&&g(i)<h(i,k)}", []string{"f", "g", "h"}},
		{"{[i,j,k]:f(k+1)<f(j)}", []string{"f"}},
		{"{[i,j,k]:f()=0}", []string{"f"}},
	}
	for _, tt := range tests {
		discovered := DiscoverCallSites(tt.text, iters, tableOf(tt.funcs...))
		augmented, _ := Augment(discovered, iters)
		for name, fn := range augmented {
			assert.GreaterOrEqual(t, fn.Arity, discovered[name].Arity, "%s in %q", name, tt.text)
			assert.Equal(t, len(fn.Args), fn.Arity, "%s in %q", name, tt.text)
		}
	}
}

func TestRewriteSound(t *testing.T) {
	iters := []string{"i", "n", "j"}
	res := Canonicalize("{[i,n,j]:rp(i)<=n<rp(i+1)&&j=col(n)}", "col(n)>0", iters, tableOf("rp", "col"))

	for _, fn := range res.Functions.Functions() {
		if !fn.IsVariant() && fn.Arity <= fn.OriginalArity {
			continue
		}
		old := fn.OriginalCallForm()
		assert.False(t, strings.Contains(res.Text, old), "%s still in text", old)
		assert.False(t, strings.Contains(res.Given, old), "%s still in given", old)
	}
}

func TestDeclarationsDeterministic(t *testing.T) {
	iters := []string{"i", "j"}
	text := "{[i,j]:a(j)<b(i)&&b(j)<c(i+1)&&c(i)>a(i)}"
	first := Canonicalize(text, "", iters, tableOf("c", "a", "b"))
	for range 5 {
		again := Canonicalize(text, "", iters, tableOf("a", "b", "c"))
		assert.Equal(t, first.Declarations, again.Declarations)
		assert.Equal(t, first.Text, again.Text)
	}
}

func TestApplyAll(t *testing.T) {
	rules := []Rule{{Old: "f(j)", New: "f(i,j)"}, {Old: "", New: "x"}}
	out := ApplyAll(rules, "f(j)<f(j)", "", "g(j)")
	assert.Equal(t, []string{"f(i,j)<f(i,j)", "", "g(j)"}, out)
}

func TestTableMerge(t *testing.T) {
	dst := tableOf("f")
	src := Table{"f": {Name: "f", Arity: 2, Args: []string{"i", "j"}}, "g": NewFunction("g", 0)}
	dst.Merge(src)

	assert.Equal(t, 2, dst["f"].Arity, "last write wins")
	assert.True(t, dst.Has("g"))
	src["f"].Args[0] = "x"
	assert.Equal(t, "i", dst["f"].Args[0], "merge copies")
}
