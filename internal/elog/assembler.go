package elog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ALPHA-g-Experiment/elogger/internal/chronobox"
	"github.com/ALPHA-g-Experiment/elogger/internal/datahandler"
	"github.com/ALPHA-g-Experiment/elogger/internal/format"
	"github.com/ALPHA-g-Experiment/elogger/internal/logging"
	"github.com/ALPHA-g-Experiment/elogger/internal/metrics"
	"github.com/ALPHA-g-Experiment/elogger/internal/odb"
	"github.com/ALPHA-g-Experiment/elogger/internal/resources"
	"github.com/ALPHA-g-Experiment/elogger/internal/rules"
	"github.com/ALPHA-g-Experiment/elogger/internal/runlog"
	"github.com/ALPHA-g-Experiment/elogger/internal/snapshot"
)

const blockIndent = 4

// Plotter renders a Chronobox timestamp plot to a file.
type Plotter interface {
	FetchPlot(ctx context.Context, run uint32, args datahandler.ChronoboxArgs) (string, error)
}

// Settings are the run-independent knobs of the assembler.
type Settings struct {
	// PlotParallelism bounds concurrent plot jobs for one record (min 1).
	PlotParallelism int
	// SummaryColumns are tabulated for every record in the summary attachment.
	SummaryColumns []string
	// SequencerEvents attaches the sequencer event table when loaded.
	SequencerEvents bool
}

// Assembler builds entries. It holds no per-run state and may be reused.
type Assembler struct {
	plotter  Plotter
	settings Settings
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tempDir  string
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

// WithMetrics records attachments and sentinels into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assembler) { a.metrics = m }
}

// WithTempDir sets where summary attachments are written (default os.TempDir).
func WithTempDir(dir string) Option {
	return func(a *Assembler) { a.tempDir = dir }
}

// NewAssembler returns an Assembler that fetches plots through p.
func NewAssembler(p Plotter, s Settings, opts ...Option) *Assembler {
	if s.PlotParallelism < 1 {
		s.PlotParallelism = 1
	}
	a := &Assembler{plotter: p, settings: s, logger: logging.Discard()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Build assembles the entry of snap's run: the shift comment, the summary
// attachments, then one block per record that matches a rule in ascending
// stop-time order.
func (a *Assembler) Build(ctx context.Context, snap *snapshot.Snapshot, rs []rules.Rule) (*Entry, error) {
	if snap.Odb == nil {
		return nil, fmt.Errorf("run %d: final ODB not loaded", snap.Run)
	}
	if snap.SpillLog == nil {
		return nil, fmt.Errorf("run %d: spill log not loaded", snap.Run)
	}

	e := NewEntry()
	if c := snap.Odb.Comment(); c != "" {
		e.write(format.Indent("Shift comment:\n"+c, blockIndent) + "\n\n")
	}

	path, err := a.writeTemp(SpillLogSummary(snap.SpillLog, a.settings.SummaryColumns))
	if err != nil {
		return nil, fmt.Errorf("run %d: spill log summary: %w", snap.Run, err)
	}
	e.write("Spill log summary: " + a.attach(e, path) + "\n")

	if a.settings.SequencerEvents {
		cell := DataHandlerError
		if snap.SequencerEvents != nil {
			path, err := a.writeTemp(renderTable(snap.SequencerEvents))
			if err != nil {
				return nil, fmt.Errorf("run %d: sequencer events: %w", snap.Run, err)
			}
			cell = a.attach(e, path)
		} else {
			// A body that arrived but did not parse is told apart from a
			// failed job.
			var pe *snapshot.ParseError
			if errors.As(snap.Missing[snapshot.KindSequencerEvents], &pe) {
				cell = DataHandlerParseError
			}
			a.metrics.SentinelEmitted(cell)
		}
		e.write("Sequencer events: " + cell + "\n")
	}
	e.write("\n")

	loggables := rules.Loggables(snap.SpillLog.Records, rs)
	sort.SliceStable(loggables, func(i, j int) bool {
		return loggables[i].Record.StopTime < loggables[j].Record.StopTime
	})
	a.logger.InfoContext(ctx, "assembling entry", "run", snap.Run,
		"records", len(snap.SpillLog.Records), "loggable", len(loggables))

	for _, lr := range loggables {
		a.AddRecord(ctx, e, snap.Run, lr, snap.Odb)
	}
	return e, nil
}

// AddRecord appends the block of one matched record to e. Failures for a
// single channel or resource become sentinel cells; the block is always
// written.
func (a *Assembler) AddRecord(ctx context.Context, e *Entry, run uint32, lr rules.LoggableRecord, doc *odb.Document) {
	rec := lr.Record
	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s\n", strings.ToUpper(rec.SequencerName), rec.EventDescription)

	if tc := lr.Config.ChronoboxTable; tc != nil {
		header := append([]string(nil), tc.ChannelNames...)
		row := make([]any, 0, 2*len(header))
		for _, ch := range tc.ChannelNames {
			if n, ok := rec.Count(ch); ok {
				row = append(row, strconv.FormatUint(uint64(n), 10))
			} else {
				a.metrics.SentinelEmitted(NotInSpillLog)
				row = append(row, NotInSpillLog)
			}
		}

		if tc.IncludeAttachments {
			row = append(row, a.plotCells(ctx, e, run, rec, tc.ChannelNames, doc)...)
			header = append(header, make([]string, len(tc.ChannelNames))...)
		}

		tb := format.NewTable(format.ASCII)
		tb.Header(header...)
		tb.Row(row...)
		b.WriteString(tb.String())
		b.WriteString("\n")
	}

	a.addExternalResources(ctx, e, &b, rec, lr.Config.ExternalResources, doc)

	e.write(format.Indent(b.String(), blockIndent))
}

type plotSlot struct {
	path     string
	sentinel string
}

// plotCells fetches one plot per channel, at most PlotParallelism at a time.
// Each job owns a slot; attachments are appended in channel order once all
// jobs are done, so references do not depend on completion order.
func (a *Assembler) plotCells(ctx context.Context, e *Entry, run uint32, rec runlog.Record, channels []string, doc *odb.Document) []any {
	slots := make([]plotSlot, len(channels))

	var g errgroup.Group
	g.SetLimit(a.settings.PlotParallelism)
	for i, name := range channels {
		ch, err := chronobox.Resolve(name, doc)
		if err != nil {
			a.logger.WarnContext(ctx, "channel not resolved", "run", run, "channel", name, "error", err)
			slots[i].sentinel = NotInODB
			continue
		}

		tMin, tMax := rec.StartTime, rec.StopTime
		args := datahandler.ChronoboxArgs{
			BoardName:     ch.Board,
			ChannelNumber: ch.Number,
			TMin:          &tMin,
			TMax:          &tMax,
		}
		g.Go(func() error {
			path, err := a.plotter.FetchPlot(ctx, run, args)
			if err != nil {
				a.logger.WarnContext(ctx, "plot job failed", "run", run, "channel", name, "coordinate", ch.String(), "error", err)
				slots[i].sentinel = DataHandlerError
				return nil
			}
			slots[i].path = path
			return nil
		})
	}
	_ = g.Wait()

	cells := make([]any, len(slots))
	for i, s := range slots {
		if s.path != "" {
			cells[i] = a.attach(e, s.path)
			continue
		}
		a.metrics.SentinelEmitted(s.sentinel)
		cells[i] = s.sentinel
	}
	return cells
}

// addExternalResources lists the resource files created during rec. Their
// window is the record's offset from the run start recorded in the ODB.
func (a *Assembler) addExternalResources(ctx context.Context, e *Entry, b *strings.Builder, rec runlog.Record, cfgs []rules.ExternalResource, doc *odb.Document) {
	if len(cfgs) == 0 {
		return
	}
	runStart, _, limitsErr := doc.RunTimeLimits()

	for _, cfg := range cfgs {
		if cfg.Header != "" {
			b.WriteString(cfg.Header + "\n")
		}
		if limitsErr != nil {
			a.logger.WarnContext(ctx, "run time limits unavailable", "error", limitsErr)
			a.metrics.SentinelEmitted(ExternalResourceError)
			b.WriteString(ExternalResourceError + "\n")
			continue
		}

		from := runStart.Add(offset(rec.StartTime))
		to := runStart.Add(offset(rec.StopTime))
		paths, err := resources.Find(cfg.BasePath, from, to)
		if err != nil {
			a.logger.WarnContext(ctx, "external resources unavailable", "base", cfg.BasePath, "error", err)
			a.metrics.SentinelEmitted(ExternalResourceError)
			b.WriteString(ExternalResourceError + "\n")
			continue
		}

		for _, p := range paths {
			line := []string{filepath.Base(p)}
			if cfg.IncludeDescription {
				desc, err := resources.Description(p)
				switch {
				case err != nil:
					a.metrics.SentinelEmitted(ExternalResourceError)
					line = append(line, ExternalResourceError)
				case desc != "":
					line = append(line, desc)
				}
			}
			if cfg.IncludeAttachment {
				line = append(line, a.attach(e, p))
			}
			b.WriteString(strings.Join(line, " ") + "\n")
		}
	}
}

func offset(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

func (a *Assembler) attach(e *Entry, path string) string {
	a.metrics.AttachmentAdded()
	return e.attach(path)
}
