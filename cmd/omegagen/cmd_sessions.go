package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"omegagen/internal/facts"
	"omegagen/internal/script"
	"omegagen/internal/store"
)

// macrosCmd prints the call-form to array-form macros of a session
var macrosCmd = &cobra.Command{
	Use:   "macros",
	Short: "Print #define macros mapping canonical calls to array accesses",
	Args:  cobra.NoArgs,
	RunE:  printMacros,
}

// iteratorsCmd prints the widest iterator tuple of a session
var iteratorsCmd = &cobra.Command{
	Use:   "iterators",
	Short: "Print the input iterators and the matching output iterators t1..tn",
	Args:  cobra.NoArgs,
	RunE:  printIterators,
}

// inspectCmd queries the function table as Mangle facts
var inspectCmd = &cobra.Command{
	Use:   "inspect [predicate] [filters...]",
	Short: "Query a session's function table as Datalog facts",
	Long: `Loads the session's function table and iterator tuple as Mangle facts and
prints every fact of the given predicate. Extra arguments filter on the
leading arguments ("_" matches anything). Without a predicate, the available
predicates are listed.

Example:
  omegagen inspect uses_iterator col
  omegagen inspect variant_of _ rp`,
	RunE: inspectFacts,
}

// sessionsCmd lists persisted sessions
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List persisted sessions, newest first",
	Args:  cobra.NoArgs,
	RunE:  listSessions,
}

// loadSessionPipeline restores the selected (or latest) session into a
// pipeline without an engine.
func loadSessionPipeline(ctx context.Context) (*script.Pipeline, error) {
	if !cfg.Store.Enabled {
		return nil, errNoSession
	}
	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	defer st.Close()

	id := sessionID
	if id == "" {
		latest, err := st.LatestSession(ctx)
		if err != nil {
			return nil, err
		}
		id = latest.ID
	}
	state, err := st.LoadState(ctx, id)
	if err != nil {
		return nil, err
	}

	p := script.New(nil)
	p.Restore(state)
	return p, nil
}

func printMacros(cmd *cobra.Command, args []string) error {
	p, err := loadSessionPipeline(baseContext(cmd))
	if err != nil {
		return err
	}

	macros := p.Macros()
	calls := make([]string, 0, len(macros))
	for call := range macros {
		calls = append(calls, call)
	}
	sort.Strings(calls)

	w := cmd.OutOrStdout()
	for _, call := range calls {
		fmt.Fprintf(w, "#define %s %s\n", call, macros[call])
	}
	return nil
}

func printIterators(cmd *cobra.Command, args []string) error {
	p, err := loadSessionPipeline(baseContext(cmd))
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "in:  [%s]\n", strings.Join(p.InIterators(), ","))
	fmt.Fprintf(w, "out: [%s]\n", strings.Join(p.OutIterators(), ","))
	return nil
}

func inspectFacts(cmd *cobra.Command, args []string) error {
	p, err := loadSessionPipeline(baseContext(cmd))
	if err != nil {
		return err
	}
	base, err := facts.Load(p.InIterators(), p.Functions())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(args) == 0 {
		for _, pred := range base.Predicates() {
			fmt.Fprintln(w, pred)
		}
		return nil
	}

	results, err := base.Query(args[0], args[1:]...)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintf(w, "No facts found for %s\n", args[0])
		return nil
	}
	for _, f := range results {
		fmt.Fprintln(w, f.String())
	}
	return nil
}

func listSessions(cmd *cobra.Command, args []string) error {
	if !cfg.Store.Enabled {
		return errNoSession
	}
	st, err := store.Open(cfg.Store.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer st.Close()

	sessions, err := st.ListSessions(baseContext(cmd))
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tUPDATED\tRUNS")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", s.ID, s.Label, s.UpdatedAt.Format("2006-01-02 15:04:05"), s.RunCount)
	}
	return tw.Flush()
}
