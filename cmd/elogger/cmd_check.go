package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ALPHA-g-Experiment/elogger/internal/datahandler"
)

func newCheckCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <run>",
		Short: "Report whether the Data Handler can serve a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := parseRun(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(gf.configPath)
			if err != nil {
				return err
			}
			client, err := newDataHandler(cfg, nil)
			if err != nil {
				return err
			}
			ready, err := client.CheckReady(cmd.Context(), run)
			if err != nil {
				return err
			}
			if !ready {
				return &datahandler.NotReadyError{Run: run}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Run %d is ready\n", run)
			return nil
		},
	}
}
