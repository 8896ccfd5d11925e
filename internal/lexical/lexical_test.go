package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKeyword(t *testing.T) {
	assert.True(t, IsKeyword("exists"))
	assert.True(t, IsKeyword("Exists"))
	assert.True(t, IsKeyword("SYMBOLIC"))
	assert.False(t, IsKeyword("n"))
	assert.False(t, IsKeyword("existsx"))
}

func TestContainsKeyword(t *testing.T) {
	assert.True(t, ContainsKeyword("exists(k:0<=k)"))
	// Substring heuristic: "rand" contains "and".
	assert.True(t, ContainsKeyword("rand>0"))
	assert.True(t, ContainsKeyword("Range_N>0"))
	assert.False(t, ContainsKeyword("N>3"))
}

func TestSplitOnOperators(t *testing.T) {
	tests := []struct {
		text string
		ops  string
		want []string
	}{
		{"0<=i", RelationalOps, []string{"0", "i"}},
		{"i<n", RelationalOps, []string{"i", "n"}},
		{"N-1>=M+2", RelationalOps, []string{"N-1", "M+2"}},
		{"N-1>=M+2", ArithmeticOps, []string{"N", "1>=M", "2"}},
		{"f(i,j)=0", RelationalOps, []string{"f(i,j)", "0"}},
		{"<=", RelationalOps, nil},
		{"", RelationalOps, nil},
		{"===", RelationalOps, nil},
		{"+-", ArithmeticOps, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitOnOperators(tt.text, tt.ops), "split %q on %q", tt.text, tt.ops)
	}
}

func TestIteratorPrefix(t *testing.T) {
	iters := []string{"i", "ii", "j"}
	assert.Equal(t, "i", IteratorPrefix("i+1", iters))
	assert.Equal(t, "i", IteratorPrefix("ii", iters), "shortest prefix wins")
	assert.Equal(t, "j", IteratorPrefix("j-1", iters))
	assert.Equal(t, "", IteratorPrefix("k", iters))
	assert.Equal(t, "", IteratorPrefix("", iters))
	assert.Equal(t, "", IteratorPrefix("1+i", iters))
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"i", "n"}, Words("i<n"))
	assert.Equal(t, []string{"i"}, Words("0<=i"))
	assert.Equal(t, []string{"rp", "i", "n", "rp", "i"}, Words("rp(i)<=n<rp(i+1)"))
	assert.Equal(t, []string{"exists", "k", "k", "N_2"}, Words("exists(k:0<=k<N_2)"))
	assert.Nil(t, Words("0<=12"))
	assert.Nil(t, Words(""))
}

func TestCallArgs(t *testing.T) {
	assert.Equal(t, []string{"i", "i+1"}, CallArgs("rp(i)<=n<rp(i+1)", "rp"))
	assert.Equal(t, []string{"j"}, CallArgs("f(j)=0", "f"))
	// Nested calls stop at the first closing parenthesis.
	assert.Equal(t, []string{"g(i"}, CallArgs("f(g(i))=0", "f"))
	// Unterminated call keeps the remainder.
	assert.Equal(t, []string{"i,j"}, CallArgs("f(i,j", "f"))
	assert.Nil(t, CallArgs("f(i)", ""))
	assert.Nil(t, CallArgs("g(i)", "f"))
}

func TestEndsInDigit(t *testing.T) {
	assert.True(t, EndsInDigit("ind0"))
	assert.False(t, EndsInDigit("col"))
	assert.False(t, EndsInDigit(""))
}
