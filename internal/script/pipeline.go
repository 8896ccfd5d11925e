package script

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"omegagen/internal/assemble"
	"omegagen/internal/engine"
	"omegagen/internal/logging"
	"omegagen/internal/relation"
	"omegagen/internal/ufunc"
)

// RelationResult is what one relation contributed to a Plan.
type RelationResult struct {
	// Name may differ from the request key when the text carries `name :=`.
	Name         string
	Text         string
	Given        string
	Iterators    []string
	Existentials []string
	Knowns       []string
	Symbols      []string
	Schedule     []string
	Functions    ufunc.Table
	Rules        []ufunc.Rule
}

// Plan is an assembled script together with the pieces it was built from.
type Plan struct {
	Script string
	// StatementCount is the schedule length of the last relation processed,
	// used for placeholder output when Script is empty.
	StatementCount int
	Declarations   []string
	Givens         string
	// Iterators is the widest tuple within this request.
	Iterators []string
	Relations []RelationResult
}

// State is the accumulator a Pipeline carries between requests.
type State struct {
	Iterators []string    `json:"iterators"`
	Functions ufunc.Table `json:"functions"`
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPromptMarker overrides the prompt line stripped from engine output.
func WithPromptMarker(marker string) Option {
	return func(p *Pipeline) {
		p.marker = marker
	}
}

// Pipeline canonicalizes requests and runs the resulting scripts. Its
// iterator tuple is replaced only by a strictly longer one and its function
// table merges by name, last write wins. It is not safe for concurrent use.
type Pipeline struct {
	engine    engine.Engine
	marker    string
	iterators []string
	funcs     ufunc.Table
}

// New creates a pipeline that sends scripts to eng. eng may be nil when only
// Build is used.
func New(eng engine.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine: eng,
		marker: engine.PromptMarker,
		funcs:  make(ufunc.Table),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Build canonicalizes every relation of req in order and assembles the
// script. The accumulator is widened after each relation.
func (p *Pipeline) Build(req Request) Plan {
	timer := logging.StartTimer(logging.CategoryScript, "Build")
	defer timer.Stop()

	plan := Plan{StatementCount: 1}
	var decls assemble.Declarations
	var givens []string
	if len(req.Givens) > 0 {
		givens = append(givens, strings.Join(req.Givens, assemble.ConjunctSep))
	}

	for _, key := range req.Names() {
		schedule := req.Schedule(key)
		plan.StatementCount = len(schedule)

		res := process(key, req.Relation(key), &decls)
		res.Schedule = schedule

		if res.Given != "" && !slices.Contains(givens, res.Given) {
			givens = append(givens, res.Given)
		}
		if len(res.Iterators) > len(plan.Iterators) {
			plan.Iterators = res.Iterators
		}
		p.widen(res)
		plan.Relations = append(plan.Relations, res)
	}

	plan.Declarations = decls.Items()
	plan.Givens = strings.Join(givens, assemble.ConjunctSep)
	plan.Script = render(&plan)
	logging.Script("Built script for %d relations: %d declarations, %d iterators",
		len(plan.Relations), len(plan.Declarations), len(plan.Iterators))
	return plan
}

// process runs one relation through preprocessing, classification, known
// splitting and canonicalization. Knowns are split before the rewrite so the
// given clause is rewritten with the body.
func process(key, raw string, decls *assemble.Declarations) RelationResult {
	body, name := relation.Preprocess(raw, key)
	rel := relation.Parse(name, body)
	cls := relation.Classify(rel)
	logging.RelationDebug("%s: iterators=%v conditions=%d knowns=%d symbols=%v functions=%v",
		name, rel.Iterators, len(rel.Conditions), len(cls.Knowns), cls.Symbols, cls.Functions.Names())

	rel, given := assemble.SplitKnowns(rel, cls.Knowns)
	if given != "" {
		logging.Relation("%s: moved %d known conditions to given", name, len(cls.Knowns))
	}
	decls.Add(cls.Symbols...)
	given = assemble.DefaultGiven(given, decls)

	canon := ufunc.Canonicalize(rel.Text, given, rel.Iterators, cls.Functions)
	decls.Add(canon.Declarations...)
	for _, rule := range canon.Rules {
		logging.CanonDebug("%s: %s -> %s", name, rule.Old, rule.New)
	}
	logging.Canon("%s: %d functions, %d rewrite rules", name, len(canon.Functions), len(canon.Rules))

	return RelationResult{
		Name:         name,
		Text:         canon.Text,
		Given:        canon.Given,
		Iterators:    rel.Iterators,
		Existentials: cls.Existentials,
		Knowns:       cls.Knowns,
		Symbols:      cls.Symbols,
		Functions:    canon.Functions,
		Rules:        canon.Rules,
	}
}

func (p *Pipeline) widen(res RelationResult) {
	if len(res.Iterators) > len(p.iterators) {
		logging.ScriptDebug("Widening iterators %v -> %v", p.iterators, res.Iterators)
		p.iterators = slices.Clone(res.Iterators)
	}
	p.funcs.Merge(res.Functions)
}

// Codegen builds req and runs the resulting script.
func (p *Pipeline) Codegen(ctx context.Context, req Request) (string, error) {
	plan := p.Build(req)
	return p.Run(ctx, plan.Script, plan.StatementCount)
}

// Run sends a prebuilt script to the engine and strips prompt lines from the
// output. An empty script never reaches the engine; statements placeholder
// lines are returned instead.
func (p *Pipeline) Run(ctx context.Context, script string, statements int) (string, error) {
	if script == "" {
		logging.ScriptDebug("Empty script, emitting %d placeholders", statements)
		return Placeholders(statements), nil
	}
	if p.engine == nil {
		return "", fmt.Errorf("%w: no engine configured", engine.ErrEngineUnavailable)
	}

	out, err := p.engine.Run(ctx, script)
	if err != nil {
		if !errors.Is(err, engine.ErrEngineUnavailable) {
			err = fmt.Errorf("%w: %w", engine.ErrEngineUnavailable, err)
		}
		return "", err
	}
	return engine.CleanOutput(out, p.marker), nil
}

// Macros maps every accumulated function's canonical call form to its array
// access form.
func (p *Pipeline) Macros() map[string]string {
	return ufunc.Macros(p.funcs)
}

// InIterators returns the widest iterator tuple seen so far.
func (p *Pipeline) InIterators() []string {
	return slices.Clone(p.iterators)
}

// OutIterators returns fresh positional names t1..tn matching InIterators.
func (p *Pipeline) OutIterators() []string {
	return OutIterators(len(p.iterators))
}

// Functions returns a copy of the accumulated function table.
func (p *Pipeline) Functions() ufunc.Table {
	return p.funcs.Clone()
}

// State returns a copy of the accumulator.
func (p *Pipeline) State() State {
	return State{Iterators: p.InIterators(), Functions: p.Functions()}
}

// Restore replaces the accumulator with s.
func (p *Pipeline) Restore(s State) {
	p.iterators = slices.Clone(s.Iterators)
	p.funcs = make(ufunc.Table, len(s.Functions))
	p.funcs.Merge(s.Functions)
}
