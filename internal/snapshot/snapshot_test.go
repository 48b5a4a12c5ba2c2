package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/ALPHA-g-Experiment/elogger/internal/datahandler"
)

// fakeClient answers jobs from a table of bodies keyed by request kind.
type fakeClient struct {
	ready    bool
	readyErr error
	bodies   map[string]string
	failures map[string]error
	checks   int
	jobs     []string
}

func (f *fakeClient) CheckReady(_ context.Context, _ uint32) (bool, error) {
	f.checks++
	return f.ready, f.readyErr
}

func (f *fakeClient) SubmitJob(_ context.Context, req datahandler.Request) ([]byte, error) {
	f.jobs = append(f.jobs, req.Kind())
	if err := f.failures[req.Kind()]; err != nil {
		return nil, err
	}
	return []byte(f.bodies[req.Kind()]), nil
}

const (
	odbJSON  = `{"Experiment": {"Edit on start": {"Comment": "test run"}}}`
	spillCSV = "# spill log\nsequencer_name,event_description,start_time,stop_time,chA\nseqA,fillA,100,200,5\n"
	seqCSV   = "sequencer_name,event\nseqA,start\n"
)

func TestLoad_NotReadySubmitsNothing(t *testing.T) {
	client := &fakeClient{ready: false}
	_, err := NewLoader(client, nil).Load(context.Background(), 11186, []Kind{KindFinalOdb, KindSpillLog})
	if !datahandler.IsNotReady(err) {
		t.Fatalf("expected NotReadyError, got %v", err)
	}
	if len(client.jobs) != 0 {
		t.Errorf("submitted %v before readiness", client.jobs)
	}
}

func TestLoad_ReadinessFailure(t *testing.T) {
	client := &fakeClient{readyErr: &datahandler.TransportError{Op: "GET /1", Err: errors.New("refused")}}
	_, err := NewLoader(client, nil).Load(context.Background(), 1, []Kind{KindSpillLog})
	if !datahandler.IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if len(client.jobs) != 0 {
		t.Errorf("submitted %v after failed readiness check", client.jobs)
	}
}

func TestLoad_AllKinds(t *testing.T) {
	client := &fakeClient{ready: true, bodies: map[string]string{
		"FinalOdb":        odbJSON,
		"SpillLog":        spillCSV,
		"SequencerEvents": seqCSV,
	}}
	snap, err := NewLoader(client, nil).Load(context.Background(), 42,
		[]Kind{KindFinalOdb, KindSpillLog}, KindSequencerEvents)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if client.checks != 1 {
		t.Errorf("checks = %d, want 1", client.checks)
	}
	if snap.Odb.Comment() != "test run" {
		t.Errorf("comment = %q", snap.Odb.Comment())
	}
	if len(snap.SpillLog.Records) != 1 || snap.SpillLog.Records[0].Counts["chA"] != 5 {
		t.Errorf("spill log = %+v", snap.SpillLog)
	}
	if len(snap.SequencerEvents.Rows) != 1 {
		t.Errorf("sequencer events = %+v", snap.SequencerEvents)
	}
	if len(snap.Missing) != 0 {
		t.Errorf("missing = %v", snap.Missing)
	}
}

func TestLoad_ParseErrorNamesPayloadAndKeepsSiblings(t *testing.T) {
	client := &fakeClient{ready: true, bodies: map[string]string{
		"FinalOdb": odbJSON,
		"SpillLog": "sequencer_name\nseqA\n",
	}}
	snap, err := NewLoader(client, nil).Load(context.Background(), 7, []Kind{KindFinalOdb, KindSpillLog})

	var pe *ParseError
	if !errors.As(err, &pe) || pe.Kind != KindSpillLog {
		t.Fatalf("expected spill log ParseError, got %v", err)
	}
	if snap == nil || snap.Odb == nil {
		t.Fatal("already loaded ODB should be kept")
	}
	if snap.SpillLog != nil {
		t.Error("failed spill log should be nil")
	}
}

func TestLoad_OptionalFailureIsRecorded(t *testing.T) {
	client := &fakeClient{
		ready:    true,
		bodies:   map[string]string{"FinalOdb": odbJSON, "SpillLog": spillCSV},
		failures: map[string]error{"SequencerEvents": &datahandler.ProtocolError{Op: "job", Msg: "not available"}},
	}
	snap, err := NewLoader(client, nil).Load(context.Background(), 7,
		[]Kind{KindFinalOdb, KindSpillLog}, KindSequencerEvents)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !datahandler.IsProtocol(snap.Missing[KindSequencerEvents]) {
		t.Errorf("missing = %v", snap.Missing)
	}
}

func TestLoad_RequiredJobFailureIsFatal(t *testing.T) {
	client := &fakeClient{
		ready:    true,
		failures: map[string]error{"FinalOdb": &datahandler.TimeoutError{Op: "job"}},
	}
	_, err := NewLoader(client, nil).Load(context.Background(), 7, []Kind{KindFinalOdb, KindSpillLog})
	if !datahandler.IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if len(client.jobs) != 1 {
		t.Errorf("jobs after fatal failure = %v", client.jobs)
	}
}
