package script

import (
	"strconv"
	"strings"
)

// CodegenExpr renders the codegen fragment for one relation. With schedules
// it is a leading space followed by prefix:name pairs, where prefix is each
// statement up to its first space; without, it is (name).
func CodegenExpr(name string, schedules []string) string {
	if len(schedules) == 0 {
		return "(" + name + ")"
	}
	pairs := make([]string, 0, len(schedules))
	for _, sched := range schedules {
		prefix, _, _ := strings.Cut(sched, " ")
		pairs = append(pairs, prefix+":"+name)
	}
	return " " + strings.Join(pairs, ",")
}

// Placeholders returns n statement stubs s0(); ... followed by one blank line.
func Placeholders(n int) string {
	lines := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		lines = append(lines, "s"+strconv.Itoa(i)+"();")
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// OutIterators returns t1..tn.
func OutIterators(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "t" + strconv.Itoa(i+1)
	}
	return out
}

type scriptWriter struct {
	b strings.Builder
}

func (w *scriptWriter) statement(parts ...string) {
	for _, p := range parts {
		w.b.WriteString(p)
	}
	w.b.WriteString(";\n")
}

// render lays the plan out in the order the calculator expects. Nothing past
// the symbolic line is written when no relation had iterators.
func render(plan *Plan) string {
	var w scriptWriter
	if len(plan.Declarations) > 0 {
		w.statement("symbolic ", strings.Join(plan.Declarations, ","))
	}
	if len(plan.Iterators) == 0 {
		return w.b.String()
	}

	frags := make([]string, 0, len(plan.Relations))
	for _, rel := range plan.Relations {
		w.statement(rel.Name, " := ", rel.Text)
		frags = append(frags, CodegenExpr(rel.Name, rel.Schedule))
	}
	for _, rel := range plan.Relations {
		for _, sched := range rel.Schedule {
			w.statement(sched)
		}
	}

	directive := "codegen" + strings.Join(frags, ",")
	if plan.Givens != "" {
		directive += " given {[" + strings.Join(plan.Iterators, ",") + "] : " + plan.Givens + "}"
	}
	w.statement(directive)
	return w.b.String()
}
