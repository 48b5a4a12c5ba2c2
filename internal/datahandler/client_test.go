package datahandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"nhooyr.io/websocket"
)

// fakeDataHandler serves the readiness endpoint, the job websocket and the
// download endpoint the way the Data Handler does.
type fakeDataHandler struct {
	notReady  bool
	replies   []string // raw server envelopes sent after the request arrives
	dropConn  bool     // close right after the replies instead of waiting
	downloads map[string]string

	dials atomic.Int32

	mu       sync.Mutex
	requests []string
}

func (f *fakeDataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/ws":
		f.serveWS(w, r)
	case strings.HasPrefix(r.URL.Path, "/download/"):
		body, ok := f.downloads[strings.TrimPrefix(r.URL.Path, "/download/")]
		if !ok {
			http.Error(w, "expired token", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(body))
	default:
		if f.notReady {
			http.Error(w, "still processing", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<html>run</html>"))
	}
}

func (f *fakeDataHandler) serveWS(w http.ResponseWriter, r *http.Request) {
	f.dials.Add(1)
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close(websocket.StatusNormalClosure, "")

	ctx := context.Background()
	_, data, err := c.Read(ctx)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, string(data))
	f.mu.Unlock()

	for _, reply := range f.replies {
		if err := c.Write(ctx, websocket.MessageText, []byte(reply)); err != nil {
			return
		}
	}
	if f.dropConn {
		return
	}
	// Block until the client hangs up.
	_, _, _ = c.Read(ctx)
}

func (f *fakeDataHandler) lastRequest(t *testing.T) map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		t.Fatal("no request received")
	}
	var msg map[string]any
	if err := json.Unmarshal([]byte(f.requests[len(f.requests)-1]), &msg); err != nil {
		t.Fatalf("request is not JSON: %v", err)
	}
	return msg
}

func envelope(response string) string {
	return `{"service":"","context":"","response":` + response + `}`
}

func newTestClient(t *testing.T, f *fakeDataHandler, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)

	opts = append([]Option{WithHTTPClient(server.Client()), WithTempDir(t.TempDir())}, opts...)
	client, err := New(server.URL, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8085", "ftp://host"} {
		if _, err := New(u); err == nil {
			t.Errorf("New(%q): expected error", u)
		}
	}
	if _, err := New("http://localhost:8085", WithJobTimeout(0)); err == nil {
		t.Error("expected error for zero job timeout")
	}
}

func TestCheckReady(t *testing.T) {
	ready := newTestClient(t, &fakeDataHandler{})
	ok, err := ready.CheckReady(context.Background(), 11186)
	if err != nil || !ok {
		t.Fatalf("CheckReady = %v, %v; want true, nil", ok, err)
	}

	notReady := newTestClient(t, &fakeDataHandler{notReady: true})
	ok, err = notReady.CheckReady(context.Background(), 11186)
	if err != nil || ok {
		t.Fatalf("CheckReady = %v, %v; want false, nil", ok, err)
	}
}

func TestCheckReady_TransportError(t *testing.T) {
	server := httptest.NewServer(&fakeDataHandler{})
	client, err := New(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatal(err)
	}
	server.Close()

	_, err = client.CheckReady(context.Background(), 1)
	if !IsTransport(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestSubmitJob_RequiresReadiness(t *testing.T) {
	f := &fakeDataHandler{notReady: true}
	client := newTestClient(t, f)
	ctx := context.Background()

	if _, err := client.SubmitJob(ctx, SpillLog{RunNumber: 7}); !IsNotReady(err) {
		t.Fatalf("before readiness check: expected NotReadyError, got %v", err)
	}
	if ok, _ := client.CheckReady(ctx, 7); ok {
		t.Fatal("readiness check should report not ready")
	}
	if _, err := client.SubmitJob(ctx, SpillLog{RunNumber: 7}); !IsNotReady(err) {
		t.Fatalf("after failed readiness check: expected NotReadyError, got %v", err)
	}
	if n := f.dials.Load(); n != 0 {
		t.Errorf("websocket dialed %d times, want 0", n)
	}
}

func TestSubmitJob_Completes(t *testing.T) {
	f := &fakeDataHandler{
		replies: []string{
			envelope(`{"Text":"Processing..."}`),
			envelope(`{"Text":"Almost there"}`),
			envelope(`{"DownloadJWT":"tok123"}`),
		},
		downloads: map[string]string{"tok123": "sequencer_name,event_description\n"},
	}
	client := newTestClient(t, f)
	ctx := context.Background()
	if _, err := client.CheckReady(ctx, 11186); err != nil {
		t.Fatal(err)
	}

	body, err := client.SubmitJob(ctx, SpillLog{RunNumber: 11186})
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	if string(body) != "sequencer_name,event_description\n" {
		t.Errorf("body = %q", body)
	}

	msg := f.lastRequest(t)
	want := map[string]any{"SpillLog": map[string]any{"run_number": float64(11186)}}
	if diff := cmp.Diff(want, msg["request"]); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
	if ctxID, _ := msg["context"].(string); ctxID == "" {
		t.Error("expected a non-empty context id")
	}
}

func TestSubmitJob_EscapesDownloadToken(t *testing.T) {
	const token = "hdr.pay/load?sig=1"
	f := &fakeDataHandler{
		replies:   []string{envelope(`{"DownloadJWT":"` + token + `"}`)},
		downloads: map[string]string{token: "csv"},
	}
	client := newTestClient(t, f)
	ctx := context.Background()
	if _, err := client.CheckReady(ctx, 1); err != nil {
		t.Fatal(err)
	}

	body, err := client.SubmitJob(ctx, SpillLog{RunNumber: 1})
	if err != nil {
		t.Fatalf("SubmitJob: %v", err)
	}
	if string(body) != "csv" {
		t.Errorf("body = %q", body)
	}
}

func TestSubmitJob_Failures(t *testing.T) {
	tests := []struct {
		name    string
		f       *fakeDataHandler
		check   func(error) bool
		message string
	}{
		{
			name:    "server error",
			f:       &fakeDataHandler{replies: []string{envelope(`{"Text":"working"}`), envelope(`{"Error":"run not found"}`)}},
			check:   IsProtocol,
			message: "run not found",
		},
		{
			name:    "unknown variant",
			f:       &fakeDataHandler{replies: []string{envelope(`{"Progress":"50%"}`)}},
			check:   IsProtocol,
			message: "Progress",
		},
		{
			name:    "malformed envelope",
			f:       &fakeDataHandler{replies: []string{`not json`}},
			check:   IsProtocol,
			message: "malformed",
		},
		{
			name:  "closed without result",
			f:     &fakeDataHandler{replies: []string{envelope(`{"Text":"working"}`)}, dropConn: true},
			check: IsTransport,
		},
		{
			name:    "download fails",
			f:       &fakeDataHandler{replies: []string{envelope(`{"DownloadJWT":"gone"}`)}},
			check:   IsTransport,
			message: "404",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, tc.f)
			ctx := context.Background()
			if _, err := client.CheckReady(ctx, 3); err != nil {
				t.Fatal(err)
			}
			_, err := client.SubmitJob(ctx, FinalOdb{RunNumber: 3})
			if err == nil {
				t.Fatal("expected error")
			}
			if !tc.check(err) {
				t.Errorf("unexpected error class %q: %v", Class(err), err)
			}
			if tc.message != "" && !strings.Contains(err.Error(), tc.message) {
				t.Errorf("error %q does not mention %q", err, tc.message)
			}
		})
	}
}

func TestSubmitJob_Timeout(t *testing.T) {
	f := &fakeDataHandler{replies: []string{envelope(`{"Text":"Processing..."}`)}}
	client := newTestClient(t, f, WithJobTimeout(100*time.Millisecond))
	ctx := context.Background()
	if _, err := client.CheckReady(ctx, 5); err != nil {
		t.Fatal(err)
	}

	_, err := client.SubmitJob(ctx, SequencerEvents{RunNumber: 5})
	if !IsTimeout(err) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if Class(err) != "timeout" {
		t.Errorf("Class = %q", Class(err))
	}
}

func TestFetchPlot_WritesFile(t *testing.T) {
	f := &fakeDataHandler{
		replies:   []string{envelope(`{"DownloadJWT":"plot"}`)},
		downloads: map[string]string{"plot": "\x89PNG fake"},
	}
	client := newTestClient(t, f)
	ctx := context.Background()
	if _, err := client.CheckReady(ctx, 9); err != nil {
		t.Fatal(err)
	}

	tMin, tMax := 100.0, 200.0
	path, err := client.FetchPlot(ctx, 9, ChronoboxArgs{BoardName: "cb02", ChannelNumber: 17, TMin: &tMin, TMax: &tMax})
	if err != nil {
		t.Fatalf("FetchPlot: %v", err)
	}
	if !strings.HasSuffix(path, ".png") {
		t.Errorf("path %q should end in .png", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "\x89PNG fake" {
		t.Errorf("plot contents = %q", data)
	}

	want := map[string]any{"ChronoboxTimestamps": map[string]any{
		"run_number": float64(9),
		"args": map[string]any{
			"board_name":     "cb02",
			"channel_number": float64(17),
			"t_bins":         nil,
			"t_max":          200.0,
			"t_min":          100.0,
		},
	}}
	if diff := cmp.Diff(want, f.lastRequest(t)["request"]); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
}
