package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"omegagen/internal/logging"
)

// batchCmd runs several requests concurrently, one pipeline each
var batchCmd = &cobra.Command{
	Use:   "batch [request...]",
	Short: "Run several requests concurrently with isolated pipelines",
	Long: `Processes every request file with its own fresh pipeline, so no function
table or iterator tuple leaks between them. Outputs are printed in argument
order. The first failure cancels the remaining runs. Batch runs are not
persisted as sessions.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext(cmd)
	defer cancel()

	limit := cfg.Batch.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}

	results := make([]string, len(args))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range args {
		g.Go(func() error {
			out, err := codegenFile(gctx, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logging.Script("Batch completed: %d requests, concurrency %d", len(args), limit)

	w := cmd.OutOrStdout()
	for i, path := range args {
		fmt.Fprintf(w, "== %s ==\n", path)
		writeOutput(w, results[i])
	}
	return nil
}
