package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"omegagen/internal/config"
	"omegagen/internal/engine"
	"omegagen/internal/logging"
	"omegagen/internal/script"
)

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger

	// Loaded configuration
	cfg *config.Config

	// newEngine builds the engine used by a command; tests replace it.
	newEngine = func(c *config.Config) engine.Engine {
		return engine.NewExecEngine(c.ExecConfig())
	}
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "omegagen",
	Short: "omegagen - relation canonicalization and Omega codegen driver",
	Long: `omegagen turns relation descriptions with uninterpreted function calls into
scripts for the Omega calculator and relays the generated code.

Relations are canonicalized before the script is assembled: conditions that do
not mention iterators move into the given clause, uninterpreted functions get
their arity inferred from call sites, divergent call shapes become variants,
and enclosing loop iterators are prepended to function arguments.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if timeout > 0 {
			cfg.Engine.Timeout = timeout.String()
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		// Initialize logger
		opts := cfg.Logging.Options()
		opts.Verbose = verbose
		opts.Color = cfg.Logging.File == "" && isatty.IsTerminal(os.Stderr.Fd())
		if err := logging.Initialize(opts); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Root()
		logging.Boot("Loaded config from %s", configPath)
		logging.BootDebug("omegagen %s: engine=%s store=%v", cfg.Version, cfg.Engine.Binary, cfg.Store.Enabled)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "omegagen.yaml", "Config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Engine timeout (overrides config)")

	// Session selection
	codegenCmd.Flags().StringVar(&sessionID, "session", "", "Continue an existing session")
	codegenCmd.Flags().BoolVar(&noStore, "no-store", false, "Do not persist the session")
	macrosCmd.Flags().StringVar(&sessionID, "session", "", "Session to read (default: latest)")
	iteratorsCmd.Flags().StringVar(&sessionID, "session", "", "Session to read (default: latest)")
	inspectCmd.Flags().StringVar(&sessionID, "session", "", "Session to read (default: latest)")

	scriptCmd.Flags().BoolVar(&explain, "explain", false, "Print per-relation canonicalization details")
	runCmd.Flags().IntVar(&statements, "statements", 1, "Placeholder statement count for an empty script")

	// Add commands to root
	rootCmd.AddCommand(codegenCmd)
	rootCmd.AddCommand(scriptCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(macrosCmd)
	rootCmd.AddCommand(iteratorsCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// baseContext returns the command's context, or Background when the
// command was not started through Execute.
func baseContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// commandContext returns a context cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(baseContext(cmd), os.Interrupt, syscall.SIGTERM)
}

// newPipeline builds a fresh pipeline wired to the configured engine.
func newPipeline() *script.Pipeline {
	return script.New(newEngine(cfg), script.WithPromptMarker(cfg.GetPromptMarker()))
}
