package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ALPHA-g-Experiment/elogger/internal/elog"
	"github.com/ALPHA-g-Experiment/elogger/internal/logging"
	"github.com/ALPHA-g-Experiment/elogger/internal/snapshot"
)

func newSummaryCmd(gf *globalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "summary <run>",
		Short: "Print the spill log summary table of a run",
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
			snap, err := snapshot.NewLoader(client, logging.New("snapshot")).
				Load(cmd.Context(), run, []snapshot.Kind{snapshot.KindSpillLog})
			if err != nil {
				return err
			}

			table := elog.SpillLogSummary(snap.SpillLog, cfg.Summary.Columns)
			if output == "" {
				_, err = fmt.Fprint(cmd.OutOrStdout(), table)
				return err
			}
			if err := os.WriteFile(output, []byte(table), 0o644); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the table to this file instead of stdout")
	return cmd
}
