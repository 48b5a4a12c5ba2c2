// elogger writes the elog entry of an ALPHA-g run from the data the Data
// Handler serves for it.
//
// Usage:
//
//	elogger create <run> [--config f] [--dry-run] [--force] [--attr k=v]...
//	elogger summary <run> [--config f] [-o file]
//	elogger ledger [--db path]
//	elogger check <run> [--config f]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ALPHA-g-Experiment/elogger/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	var gf globalFlags
	root := &cobra.Command{
		Use:   "elogger",
		Short: "Create the elog entry of an ALPHA-g run",
		Long: "elogger collects the final ODB and spill log of a run from the Data Handler,\n" +
			"renders the configured records with Chronobox plots and posts the entry to the elog.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logging.ParseLevel(gf.logLevel)
			if err != nil {
				return err
			}
			if gf.logFormat != "text" && gf.logFormat != "json" {
				return fmt.Errorf("unknown log format %q", gf.logFormat)
			}
			logging.Init(level, gf.logFormat, cmd.ErrOrStderr())
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&gf.configPath, "config", "c", "", "Configuration file, YAML or JSON (default: built-in)")
	pf.StringVar(&gf.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	pf.StringVar(&gf.logFormat, "log-format", "text", "Log format: text or json")

	root.AddCommand(newCreateCmd(&gf))
	root.AddCommand(newSummaryCmd(&gf))
	root.AddCommand(newLedgerCmd())
	root.AddCommand(newCheckCmd(&gf))
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
