package datahandler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/ALPHA-g-Experiment/elogger/internal/logging"
	"github.com/ALPHA-g-Experiment/elogger/internal/metrics"
)

// DefaultJobTimeout bounds the wait for a job's terminal message.
const DefaultJobTimeout = 5 * time.Minute

// Client talks to one Data Handler instance.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	jobTimeout time.Duration
	tempDir    string

	mu    sync.Mutex
	ready map[uint32]bool
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
	jobTimeout time.Duration
	tempDir    string
}

// New creates a Client for the Data Handler at baseURL (http://host:port).
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("datahandler: baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	var wsURL string
	switch {
	case strings.HasPrefix(baseURL, "http://"):
		wsURL = "ws://" + strings.TrimPrefix(baseURL, "http://") + "/ws"
	case strings.HasPrefix(baseURL, "https://"):
		wsURL = "wss://" + strings.TrimPrefix(baseURL, "https://") + "/ws"
	default:
		return nil, fmt.Errorf("datahandler: baseURL %q must start with http:// or https://", baseURL)
	}

	cfg := &clientConfig{jobTimeout: DefaultJobTimeout}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Client{
		baseURL:    baseURL,
		wsURL:      wsURL,
		httpClient: httpClient,
		logger:     logger,
		metrics:    cfg.metrics,
		jobTimeout: cfg.jobTimeout,
		tempDir:    cfg.tempDir,
		ready:      make(map[uint32]bool),
	}, nil
}

// WithHTTPClient overrides the HTTP client used for every request, including
// the websocket handshake.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithMetrics records job outcomes into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cfg *clientConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithJobTimeout bounds how long a job may wait for its terminal message.
func WithJobTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		if d <= 0 {
			return fmt.Errorf("datahandler: job timeout must be positive, got %s", d)
		}
		cfg.jobTimeout = d
		return nil
	}
}

// WithTempDir sets the directory FetchPlot writes into (default os.TempDir).
func WithTempDir(dir string) Option {
	return func(cfg *clientConfig) error {
		cfg.tempDir = dir
		return nil
	}
}

// CheckReady requests GET /{run}. Any 2xx status means ready. A non-2xx status
// is (false, nil); only transport failures are errors.
func (c *Client) CheckReady(ctx context.Context, run uint32) (bool, error) {
	u := fmt.Sprintf("%s/%d", c.baseURL, run)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, &TransportError{Op: "readiness check", Err: err}
	}

	c.logger.InfoContext(ctx, "readiness check", "run", run, "url", u)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, &TransportError{Op: fmt.Sprintf("GET /%d", run), Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	c.logger.DebugContext(ctx, "readiness response", "run", run, "status", resp.StatusCode, "ready", ok)

	c.mu.Lock()
	c.ready[run] = ok
	c.mu.Unlock()
	return ok, nil
}

func (c *Client) isReady(run uint32) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready[run]
}

// SubmitJob runs one job and returns the downloaded result body. The
// readiness check for req's run must have succeeded on this Client first.
func (c *Client) SubmitJob(ctx context.Context, req Request) ([]byte, error) {
	if !c.isReady(req.Run()) {
		return nil, &NotReadyError{Run: req.Run()}
	}

	start := time.Now()
	body, err := c.submit(ctx, req)
	c.metrics.JobFinished(req.Kind(), Class(err), time.Since(start))
	if err != nil {
		c.logger.WarnContext(ctx, "job failed", "kind", req.Kind(), "run", req.Run(), "error", err)
		return nil, err
	}
	c.logger.InfoContext(ctx, "job complete", "kind", req.Kind(), "run", req.Run(),
		"size", humanize.Bytes(uint64(len(body))), "elapsed", time.Since(start).Round(time.Millisecond))
	return body, nil
}

func (c *Client) submit(ctx context.Context, req Request) ([]byte, error) {
	token, err := c.runJob(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.download(ctx, token)
}

// runJob owns the websocket for exactly one request; it is closed before the
// download starts.
func (c *Client) runJob(ctx context.Context, req Request) (string, error) {
	ctxID := uuid.NewString()
	payload, err := encodeRequest(ctxID, req)
	if err != nil {
		return "", &ProtocolError{Op: "submit job", Msg: "encode request", Err: err}
	}

	conn, _, err := websocket.Dial(ctx, c.wsURL, &websocket.DialOptions{HTTPClient: c.httpClient})
	if err != nil {
		return "", &TransportError{Op: "connect to data handler websocket", Err: err}
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(1 << 20)

	c.logger.InfoContext(ctx, "submitting job", "kind", req.Kind(), "run", req.Run(), "context", ctxID)

	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return "", &TransportError{Op: fmt.Sprintf("send %s request", req.Kind()), Err: err}
	}

	j := newJob(req)
	c.await(ctx, conn, j)
	c.logger.DebugContext(ctx, "job settled", "kind", req.Kind(), "state", j.state.String())
	if j.state != completed {
		return "", j.err
	}
	return j.token, nil
}

func (c *Client) download(ctx context.Context, token string) ([]byte, error) {
	u := c.baseURL + "/download/" + url.PathEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &TransportError{Op: "download", Err: err}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "GET /download", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &TransportError{Op: "GET /download", Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read download body", Err: err}
	}
	return body, nil
}

// FetchPlot runs a ChronoboxTimestamps job and writes the rendered plot to a
// new file that outlives the process. It returns the file path.
func (c *Client) FetchPlot(ctx context.Context, run uint32, args ChronoboxArgs) (string, error) {
	body, err := c.SubmitJob(ctx, ChronoboxTimestamps{RunNumber: run, Args: args})
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp(c.tempDir, "elogger-*.png")
	if err != nil {
		return "", fmt.Errorf("create plot file: %w", err)
	}
	if _, err := f.Write(body); err != nil {
		f.Close()
		return "", fmt.Errorf("write plot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close plot file: %w", err)
	}
	return f.Name(), nil
}
