package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"omegagen/internal/script"
	"omegagen/internal/store"
)

var (
	sessionID  string
	noStore    bool
	explain    bool
	statements int
)

// codegenCmd canonicalizes a request and runs it through the engine
var codegenCmd = &cobra.Command{
	Use:   "codegen [request.yaml]",
	Short: "Canonicalize a request, run the engine and print the generated code",
	Long: `Loads a request (relations, schedules, order, givens) from YAML or JSON,
assembles the calculator script and prints the engine's output with prompt
lines removed. When no relation has iterators the engine is skipped and
placeholder statements s0(); s1(); ... are printed instead.

The resulting function table and iterator tuple are saved as a session so
macros, iterators and inspect can read them later.`,
	Args: cobra.ExactArgs(1),
	RunE: runCodegen,
}

// scriptCmd prints the assembled script without running it
var scriptCmd = &cobra.Command{
	Use:   "script [request.yaml]",
	Short: "Print the assembled calculator script",
	Args:  cobra.ExactArgs(1),
	RunE:  printScript,
}

// runCmd sends a prebuilt script to the engine
var runCmd = &cobra.Command{
	Use:   "run [script-file]",
	Short: "Run a prebuilt script through the engine",
	Long: `Sends a script file to the engine unchanged and prints the cleaned output.
Use "-" to read the script from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func runCodegen(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	req, err := script.LoadRequest(args[0])
	if err != nil {
		return err
	}

	p := newPipeline()

	var st *store.Store
	if cfg.Store.Enabled && !noStore {
		st, err = store.Open(cfg.Store.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open session store: %w", err)
		}
		defer st.Close()
	}

	id, err := beginSession(ctx, st, args[0], p)
	if err != nil {
		return err
	}

	plan := p.Build(req)
	start := time.Now()
	out, runErr := p.Run(ctx, plan.Script, plan.StatementCount)

	if st != nil {
		run := store.Run{SessionID: id, Script: plan.Script, Output: out,
			Statements: plan.StatementCount, Duration: time.Since(start)}
		if err := saveSession(ctx, st, p, run, runErr); err != nil {
			logger.Warn("Failed to persist session", zap.String("session", id), zap.Error(err))
		}
	}
	if runErr != nil {
		return fmt.Errorf("codegen %s: %w", args[0], runErr)
	}

	writeOutput(cmd.OutOrStdout(), out)
	return nil
}

// beginSession creates a session, or restores the one named by --session
// into p. It returns "" when st is nil.
func beginSession(ctx context.Context, st *store.Store, label string, p *script.Pipeline) (string, error) {
	if st == nil {
		return "", nil
	}
	if sessionID == "" {
		sess, err := st.CreateSession(ctx, label)
		if err != nil {
			return "", err
		}
		return sess.ID, nil
	}

	state, err := st.LoadState(ctx, sessionID)
	if err != nil {
		return "", err
	}
	p.Restore(state)
	return sessionID, nil
}

func saveSession(ctx context.Context, st *store.Store, p *script.Pipeline, run store.Run, runErr error) error {
	if err := st.SaveState(ctx, run.SessionID, p.State()); err != nil {
		return err
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	_, err := st.RecordRun(ctx, run)
	return err
}

func printScript(cmd *cobra.Command, args []string) error {
	req, err := script.LoadRequest(args[0])
	if err != nil {
		return err
	}

	plan := script.New(nil).Build(req)
	w := cmd.OutOrStdout()
	if explain {
		for _, rel := range plan.Relations {
			fmt.Fprintf(w, "# %s\n", rel.Name)
			fmt.Fprintf(w, "#   iterators: [%s]\n", strings.Join(rel.Iterators, ","))
			if len(rel.Symbols) > 0 {
				fmt.Fprintf(w, "#   symbols:   %s\n", strings.Join(rel.Symbols, ","))
			}
			if len(rel.Knowns) > 0 {
				fmt.Fprintf(w, "#   knowns:    %s\n", strings.Join(rel.Knowns, " && "))
			}
			for _, fn := range rel.Functions.Functions() {
				fmt.Fprintf(w, "#   function:  %s\n", fn)
			}
			for _, rule := range rel.Rules {
				fmt.Fprintf(w, "#   rewrite:   %s -> %s\n", rule.Old, rule.New)
			}
		}
	}
	if plan.Script == "" {
		fmt.Fprintf(w, "# empty script: %d placeholder statements\n", plan.StatementCount)
		return nil
	}
	fmt.Fprint(w, plan.Script)
	return nil
}

func runScript(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		text = ""
	}
	out, err := newPipeline().Run(ctx, text, statements)
	if err != nil {
		return err
	}
	writeOutput(cmd.OutOrStdout(), out)
	return nil
}

// codegenFile runs one request file through a fresh pipeline.
func codegenFile(ctx context.Context, path string) (string, error) {
	req, err := script.LoadRequest(path)
	if err != nil {
		return "", err
	}
	return newPipeline().Codegen(ctx, req)
}

func writeOutput(w io.Writer, out string) {
	fmt.Fprint(w, out)
	if out != "" && !strings.HasSuffix(out, "\n") {
		fmt.Fprintln(w)
	}
}

// errNoSession is returned by session readers when the store is disabled.
var errNoSession = errors.New("session store disabled (enable store in config)")
