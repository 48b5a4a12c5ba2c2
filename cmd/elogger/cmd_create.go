package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ALPHA-g-Experiment/elogger/internal/elog"
	"github.com/ALPHA-g-Experiment/elogger/internal/elogpush"
	"github.com/ALPHA-g-Experiment/elogger/internal/logging"
	"github.com/ALPHA-g-Experiment/elogger/internal/metrics"
	"github.com/ALPHA-g-Experiment/elogger/internal/snapshot"
	"github.com/ALPHA-g-Experiment/elogger/internal/store"
)

type createFlags struct {
	dryRun      bool
	force       bool
	attrs       []string
	dbPath      string
	metricsFile string
}

func newCreateCmd(gf *globalFlags) *cobra.Command {
	var cf createFlags
	cmd := &cobra.Command{
		Use:   "create <run>",
		Short: "Build the elog entry of a run and post it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, gf, &cf, args[0])
		},
	}
	f := cmd.Flags()
	f.BoolVar(&cf.dryRun, "dry-run", false, "Print the entry instead of posting it")
	f.BoolVar(&cf.force, "force", false, "Post even if the run was already logged")
	f.StringArrayVarP(&cf.attrs, "attr", "a", nil, "Extra elog attribute key=value (repeatable)")
	f.StringVar(&cf.dbPath, "db", store.DefaultDBPath, "Submission ledger DB path (empty: in memory)")
	f.StringVar(&cf.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	return cmd
}

func runCreate(cmd *cobra.Command, gf *globalFlags, cf *createFlags, runArg string) error {
	ctx := cmd.Context()
	log := logging.New("create")

	run, err := parseRun(runArg)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(gf.configPath)
	if err != nil {
		return err
	}
	extra, err := parseAttrs(cf.attrs)
	if err != nil {
		return err
	}
	attrs := map[string]string{"Run": strconv.FormatUint(uint64(run), 10)}
	for k, v := range cfg.Elog.Attributes {
		attrs[k] = v
	}
	for k, v := range extra {
		attrs[k] = v
	}

	ledger, err := openLedger(cf.dbPath)
	if err != nil {
		return err
	}
	defer ledger.Close()
	if !cf.dryRun && !cf.force {
		prev, err := ledger.Latest(run)
		if err != nil {
			return err
		}
		if prev != nil {
			return fmt.Errorf("run %d was already logged on %s (message %d); use --force to post again",
				run, prev.SubmittedAt.Format("2006-01-02 15:04"), prev.MessageID)
		}
	}

	m := metrics.New()
	if cf.metricsFile != "" {
		defer func() {
			if werr := m.WriteTextfile(cf.metricsFile); werr != nil {
				log.Warn("failed to write metrics", "path", cf.metricsFile, "error", werr)
			}
		}()
	}

	client, err := newDataHandler(cfg, m)
	if err != nil {
		return err
	}
	var optional []snapshot.Kind
	if cfg.Summary.SequencerEvents {
		optional = append(optional, snapshot.KindSequencerEvents)
	}
	snap, err := snapshot.NewLoader(client, logging.New("snapshot")).
		Load(ctx, run, []snapshot.Kind{snapshot.KindFinalOdb, snapshot.KindSpillLog}, optional...)
	if err != nil {
		return err
	}
	for k, merr := range snap.Missing {
		log.Warn("optional data unavailable", "run", run, "kind", k.String(), "error", merr)
	}

	asm := elog.NewAssembler(client, elog.Settings{
		PlotParallelism: cfg.DataHandler.PlotParallelism,
		SummaryColumns:  cfg.Summary.Columns,
		SequencerEvents: cfg.Summary.SequencerEvents,
	}, elog.WithLogger(logging.New("elog")), elog.WithMetrics(m))
	entry, err := asm.Build(ctx, snap, cfg.Loggables)
	if err != nil {
		return err
	}

	var sub elogpush.Submitter = elogpush.DryRunSubmitter{W: cmd.OutOrStdout()}
	if !cf.dryRun {
		sub = elogpush.NewExecSubmitter(elogpush.Config{
			Client:  cfg.Elog.Client,
			Host:    cfg.Elog.Host,
			Port:    cfg.Elog.Port,
			Logbook: cfg.Elog.Logbook,
		}, logging.New("elogpush"))
	}
	attachments := entry.Attachments()
	id, err := sub.Submit(ctx, elogpush.Submission{
		Body:        entry.Text(),
		Attachments: attachments,
		Attributes:  attrs,
	})
	if err != nil {
		return fmt.Errorf("run %d: %w", run, err)
	}

	if _, err := ledger.Record(&store.Submission{
		RunNumber:   run,
		Attachments: len(attachments),
		Author:      attrs["Author"],
		DryRun:      cf.dryRun,
		MessageID:   id,
	}); err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	if !cf.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Posted run %d as message %d (%d attachments)\n", run, id, len(attachments))
	}
	return nil
}
