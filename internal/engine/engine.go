// Package engine talks to the external set-relation calculator that turns an
// assembled script into generated code. The pipeline only needs one call: hand
// over a script, get back text.
package engine

import (
	"context"
	"errors"
	"strings"
)

// PromptMarker is the interactive prompt the calculator echoes on its own line.
const PromptMarker = ">>>"

// ErrEngineUnavailable is wrapped by every transport failure reaching the
// engine. An empty result and a failed call must stay distinguishable.
var ErrEngineUnavailable = errors.New("engine unavailable")

// ErrOutputTruncated is wrapped when the engine printed more than the
// configured output limit.
var ErrOutputTruncated = errors.New("engine output truncated")

// Engine accepts one script and returns the engine's raw multi-line output.
type Engine interface {
	Run(ctx context.Context, script string) (string, error)
}

// Func adapts an ordinary function to the Engine interface.
type Func func(ctx context.Context, script string) (string, error)

// Run calls f(ctx, script).
func (f Func) Run(ctx context.Context, script string) (string, error) {
	return f(ctx, script)
}

// CleanOutput drops every line exactly equal to marker and rejoins the rest
// with newlines.
func CleanOutput(output, marker string) string {
	lines := strings.Split(output, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line != marker {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
