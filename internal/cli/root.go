package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stratus-io/stratus/internal/logging"
)

var (
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "stratus",
	Short: "Declarative provisioning for tiered network topologies",
	Long: `Stratus reconciles a declared three-tier network topology (web,
application, database) against a cloud provider.

Resources are declared in a YAML plan, ordered by their dependencies and
resolved find-or-create, so re-running a plan never duplicates
infrastructure. Any failure rolls back everything the run created, in
reverse creation order.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel, logJSON)
	},
}

// Execute runs the root command. An interrupt cancels the run's context;
// the engine finishes in-flight provider calls and rolls back before the
// process exits.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(stateCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(versionCmd)
}
