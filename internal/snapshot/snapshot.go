// Package snapshot loads the Data Handler payloads one elog entry is built
// from.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/ALPHA-g-Experiment/elogger/internal/datahandler"
	"github.com/ALPHA-g-Experiment/elogger/internal/logging"
	"github.com/ALPHA-g-Experiment/elogger/internal/odb"
	"github.com/ALPHA-g-Experiment/elogger/internal/runlog"
)

// Kind is one payload the loader can fetch.
type Kind int

const (
	KindFinalOdb Kind = iota
	KindSpillLog
	KindSequencerEvents
)

func (k Kind) String() string {
	switch k {
	case KindFinalOdb:
		return "final ODB"
	case KindSpillLog:
		return "spill log"
	case KindSequencerEvents:
		return "sequencer events"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) request(run uint32) (datahandler.Request, error) {
	switch k {
	case KindFinalOdb:
		return datahandler.FinalOdb{RunNumber: run}, nil
	case KindSpillLog:
		return datahandler.SpillLog{RunNumber: run}, nil
	case KindSequencerEvents:
		return datahandler.SequencerEvents{RunNumber: run}, nil
	}
	return nil, fmt.Errorf("unknown payload kind %d", int(k))
}

// ParseError means a payload arrived but its body could not be parsed.
type ParseError struct {
	Kind Kind
	Run  uint32
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s of run %d: %v", e.Kind, e.Run, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Snapshot is the data of one run. Fields of kinds that were not requested,
// or that failed, are nil.
type Snapshot struct {
	Run             uint32
	Odb             *odb.Document
	SpillLog        *runlog.SpillLog
	SequencerEvents *runlog.Table
	// Missing holds the failure of every optional kind that could not be
	// loaded.
	Missing map[Kind]error
}

// JobClient is the part of datahandler.Client the loader uses.
type JobClient interface {
	CheckReady(ctx context.Context, run uint32) (bool, error)
	SubmitJob(ctx context.Context, req datahandler.Request) ([]byte, error)
}

// Loader fetches snapshots through a JobClient.
type Loader struct {
	client JobClient
	logger *slog.Logger
}

// NewLoader returns a Loader. logger may be nil.
func NewLoader(client JobClient, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Loader{client: client, logger: logger}
}

// Load checks readiness and then fetches every required kind, then every
// optional kind. A not-ready run fails with *datahandler.NotReadyError before
// any job is submitted. The first required failure aborts the load and is
// returned together with what was loaded so far; optional failures are
// recorded in Snapshot.Missing.
func (l *Loader) Load(ctx context.Context, run uint32, required []Kind, optional ...Kind) (*Snapshot, error) {
	ready, err := l.client.CheckReady(ctx, run)
	if err != nil {
		return nil, fmt.Errorf("run %d: failed to query data handler state: %w", run, err)
	}
	if !ready {
		return nil, &datahandler.NotReadyError{Run: run}
	}

	snap := &Snapshot{Run: run, Missing: map[Kind]error{}}
	for _, k := range required {
		if err := l.fetch(ctx, snap, k); err != nil {
			return snap, err
		}
	}
	for _, k := range optional {
		if err := l.fetch(ctx, snap, k); err != nil {
			l.logger.WarnContext(ctx, "optional payload unavailable", "run", run, "kind", k.String(), "error", err)
			snap.Missing[k] = err
		}
	}
	return snap, nil
}

func (l *Loader) fetch(ctx context.Context, snap *Snapshot, k Kind) error {
	req, err := k.request(snap.Run)
	if err != nil {
		return err
	}
	body, err := l.client.SubmitJob(ctx, req)
	if err != nil {
		return fmt.Errorf("run %d: failed to fetch %s: %w", snap.Run, k, err)
	}

	switch k {
	case KindFinalOdb:
		doc, err := odb.Parse(body)
		if err != nil {
			return &ParseError{Kind: k, Run: snap.Run, Err: err}
		}
		snap.Odb = doc
	case KindSpillLog:
		log, err := runlog.ParseSpillLog(bytes.NewReader(body))
		if err != nil {
			return &ParseError{Kind: k, Run: snap.Run, Err: err}
		}
		snap.SpillLog = log
	case KindSequencerEvents:
		table, err := runlog.ParseTable(bytes.NewReader(body))
		if err != nil {
			return &ParseError{Kind: k, Run: snap.Run, Err: err}
		}
		snap.SequencerEvents = table
	}
	l.logger.DebugContext(ctx, "payload loaded", "run", snap.Run, "kind", k.String(), "bytes", len(body))
	return nil
}
