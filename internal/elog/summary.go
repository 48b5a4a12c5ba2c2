package elog

import (
	"fmt"
	"os"
	"strings"

	"github.com/ALPHA-g-Experiment/elogger/internal/format"
	"github.com/ALPHA-g-Experiment/elogger/internal/runlog"
)

// SpillLogSummary tabulates every spill log record, in file order, with a
// count column per entry of columns.
func SpillLogSummary(log *runlog.SpillLog, columns []string) string {
	tb := format.NewTable(format.ASCII)
	tb.Header(append([]string{"Event", "Start time", "Stop time"}, columns...)...)

	for _, rec := range log.Records {
		row := []any{
			fmt.Sprintf("%s - %s", strings.ToUpper(rec.SequencerName), rec.EventDescription),
			format.Seconds(rec.StartTime),
			format.Seconds(rec.StopTime),
		}
		for _, col := range columns {
			if n, ok := rec.Count(col); ok {
				row = append(row, fmt.Sprint(n))
			} else {
				row = append(row, NotInSpillLog)
			}
		}
		tb.Row(row...)
	}
	return tb.String() + "\n"
}

func renderTable(t *runlog.Table) string {
	tb := format.NewTable(format.ASCII)
	tb.Header(t.Header...)
	for _, r := range t.Rows {
		row := make([]any, len(r))
		for i, v := range r {
			row[i] = v
		}
		tb.Row(row...)
	}
	return tb.String() + "\n"
}

// writeTemp writes content to a new .txt file that outlives the process.
func (a *Assembler) writeTemp(content string) (string, error) {
	f, err := os.CreateTemp(a.tempDir, "elogger-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temporary file: %w", err)
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return "", fmt.Errorf("write temporary file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temporary file: %w", err)
	}
	return f.Name(), nil
}
