package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ALPHA-g-Experiment/elogger/internal/format"
	"github.com/ALPHA-g-Experiment/elogger/internal/store"
)

func newLedgerCmd() *cobra.Command {
	var (
		dbPath   string
		markdown bool
	)
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "List the entries elogger has posted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openLedger(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()
			subs, err := s.List()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(subs) == 0 {
				fmt.Fprintln(out, "No submissions recorded.")
				return nil
			}

			mode := format.Box
			if markdown {
				mode = format.Markdown
			}
			tb := format.NewTable(mode)
			tb.Header("Run", "Submitted", "Attachments", "Author", "Message", "Dry run")
			tb.Columns(
				format.ColumnConfig{Number: 3, Align: format.AlignRight},
				format.ColumnConfig{Number: 4, MaxWidth: 24},
			)
			for _, sub := range subs {
				msg := "-"
				if sub.MessageID != 0 {
					msg = strconv.Itoa(sub.MessageID)
				}
				dry := ""
				if sub.DryRun {
					dry = "yes"
				}
				tb.Row(sub.RunNumber, format.Ago(sub.SubmittedAt), sub.Attachments, sub.Author, msg, dry)
			}
			fmt.Fprintln(out, tb.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", store.DefaultDBPath, "Submission ledger DB path")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Print the ledger as a Markdown table")
	return cmd
}
