// Package runlog parses the tabular payloads the Data Handler returns for a
// run: the spill log and the sequencer event table.
package runlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Fixed spill log columns. Every other column is a Chronobox channel count.
const (
	colSequencer   = "sequencer_name"
	colDescription = "event_description"
	colStart       = "start_time"
	colStop        = "stop_time"
)

// Record is one spill log row: a sequencer event with its time window (in
// seconds since the start of the run) and the counts it saw per Chronobox
// channel.
type Record struct {
	SequencerName    string
	EventDescription string
	StartTime        float64
	StopTime         float64
	// Counts is keyed by Chronobox channel name.
	Counts map[string]uint32
}

// Count returns the count for channel and whether the spill log has it.
func (r Record) Count(channel string) (uint32, bool) {
	v, ok := r.Counts[channel]
	return v, ok
}

// SpillLog is the parsed spill log of one run, in file order.
type SpillLog struct {
	Records []Record
}

// Table is a generic delimited table: a header row and data rows of the same
// width.
type Table struct {
	Header []string
	Rows   [][]string
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true
	return cr
}

// ParseSpillLog reads a spill log CSV. Lines starting with '#' are comments.
// Empty count cells are left out of Record.Counts.
func ParseSpillLog(r io.Reader) (*SpillLog, error) {
	cr := newReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &SpillLog{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read spill log header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := idx[h]; dup {
			return nil, fmt.Errorf("spill log header: duplicate column %q", h)
		}
		idx[h] = i
	}
	for _, col := range []string{colSequencer, colDescription, colStart, colStop} {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("spill log header: missing column %q", col)
		}
	}

	log := &SpillLog{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read spill log: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rec, err := parseRecord(header, idx, row)
		if err != nil {
			return nil, fmt.Errorf("spill log line %d: %w", line, err)
		}
		log.Records = append(log.Records, rec)
	}
	return log, nil
}

func parseRecord(header []string, idx map[string]int, row []string) (Record, error) {
	rec := Record{
		SequencerName:    row[idx[colSequencer]],
		EventDescription: row[idx[colDescription]],
		Counts:           make(map[string]uint32, len(row)-4),
	}

	var err error
	if rec.StartTime, err = parseTime(colStart, row[idx[colStart]]); err != nil {
		return Record{}, err
	}
	if rec.StopTime, err = parseTime(colStop, row[idx[colStop]]); err != nil {
		return Record{}, err
	}
	if rec.StartTime > rec.StopTime {
		return Record{}, fmt.Errorf("start time %v after stop time %v", rec.StartTime, rec.StopTime)
	}

	for i, name := range header {
		switch name = strings.TrimSpace(name); name {
		case colSequencer, colDescription, colStart, colStop:
			continue
		}
		cell := strings.TrimSpace(row[i])
		if cell == "" {
			continue
		}
		n, err := strconv.ParseUint(cell, 10, 32)
		if err != nil {
			return Record{}, fmt.Errorf("count %q: %w", name, err)
		}
		rec.Counts[name] = uint32(n)
	}
	return rec, nil
}

// parseTime reads a finite time offset in seconds.
func parseTime(col, cell string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", col, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: %v is not a finite time", col, v)
	}
	return v, nil
}

// ParseTable reads a comma-delimited table with '#' comments. The first row
// is the header.
func ParseTable(r io.Reader) (*Table, error) {
	cr := newReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read table header: %w", err)
	}

	t := &Table{Header: header}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read table: %w", err)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
