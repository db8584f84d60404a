// Command bodycontrol runs the BodyControl infiltration simulation: a live
// server for the browser client, headless autopilot runs and session
// history.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	env := loadEnvironmentConfig()
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "bodycontrol",
		Short:         "Keep an android's body convincingly human",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeLogger(cmd.ErrOrStderr(), opts.logLevel, opts.logFormat)
		},
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "tuning YAML file (defaults built in)")
	pf.Uint64Var(&opts.seed, "seed", env.Seed, "random seed, 0 picks one (overrides $BODYCONTROL_SEED)")
	pf.StringVar(&opts.stateDir, "state-dir", env.StateDir, "state directory (overrides $BODYCONTROL_STATE_DIR)")
	pf.StringVar(&opts.dbDSN, "db-dsn", env.DBDSN, "session store DSN, SQLite path or Postgres URL (overrides $BODYCONTROL_DB_DSN or $DATABASE_URL)")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(serveCmd(opts, env))
	root.AddCommand(simulateCmd(opts))
	root.AddCommand(historyCmd(opts))
	root.AddCommand(versionCmd())
	return root
}
