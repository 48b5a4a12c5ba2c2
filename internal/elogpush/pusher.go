// Package elogpush posts an assembled entry to the logbook.
package elogpush

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ALPHA-g-Experiment/elogger/internal/logging"
)

// Submission is one logbook entry ready to post.
type Submission struct {
	Body        string
	Attachments []string
	Attributes  map[string]string
}

// Submitter posts entries. It returns the logbook message id, or 0 when the
// sink has none.
type Submitter interface {
	Submit(ctx context.Context, s Submission) (int, error)
}

// Config locates the logbook and its command line client.
type Config struct {
	Client  string
	Host    string
	Port    int
	Logbook string
}

// ExecSubmitter posts through the elog command line client.
type ExecSubmitter struct {
	cfg    Config
	logger *slog.Logger
}

// NewExecSubmitter returns an ExecSubmitter. A nil logger discards output.
func NewExecSubmitter(cfg Config, logger *slog.Logger) *ExecSubmitter {
	if cfg.Client == "" {
		cfg.Client = "elog"
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &ExecSubmitter{cfg: cfg, logger: logger}
}

// SubmitError is a post the elog client did not confirm.
type SubmitError struct {
	Output string
	Err    error
}

func (e *SubmitError) Error() string {
	msg := strings.TrimSpace(e.Output)
	if e.Err != nil {
		if msg == "" {
			return fmt.Sprintf("elog: %v", e.Err)
		}
		return fmt.Sprintf("elog: %v: %s", e.Err, msg)
	}
	return fmt.Sprintf("elog: submission not confirmed: %s", msg)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// IsSubmitError reports whether err is or wraps a *SubmitError.
func IsSubmitError(err error) bool {
	var se *SubmitError
	return errors.As(err, &se)
}

var messageID = regexp.MustCompile(`ID=(\d+)`)

// Submit writes the body to a temporary file and runs the client on it. The
// post counts as done only when the client reports success.
func (s *ExecSubmitter) Submit(ctx context.Context, sub Submission) (int, error) {
	body, err := os.CreateTemp("", "elogger-body-*.txt")
	if err != nil {
		return 0, fmt.Errorf("create body file: %w", err)
	}
	defer os.Remove(body.Name())
	if _, err := body.WriteString(sub.Body); err != nil {
		body.Close()
		return 0, fmt.Errorf("write body file: %w", err)
	}
	if err := body.Close(); err != nil {
		return 0, fmt.Errorf("close body file: %w", err)
	}

	args := s.args(sub, body.Name())
	s.logger.InfoContext(ctx, "posting entry", "logbook", s.cfg.Logbook, "attachments", len(sub.Attachments))
	s.logger.DebugContext(ctx, "elog command", "client", s.cfg.Client, "args", args)

	out, err := exec.CommandContext(ctx, s.cfg.Client, args...).CombinedOutput()
	if err != nil {
		return 0, &SubmitError{Output: string(out), Err: err}
	}
	if !strings.Contains(string(out), "successfully") {
		return 0, &SubmitError{Output: string(out)}
	}

	id := 0
	if m := messageID.FindStringSubmatch(string(out)); m != nil {
		id, _ = strconv.Atoi(m[1])
	}
	s.logger.InfoContext(ctx, "entry posted", "logbook", s.cfg.Logbook, "id", id)
	return id, nil
}

// args builds the client command line. Attributes are sorted by key.
func (s *ExecSubmitter) args(sub Submission, bodyPath string) []string {
	args := []string{
		"-h", s.cfg.Host,
		"-p", strconv.Itoa(s.cfg.Port),
		"-l", s.cfg.Logbook,
	}
	keys := make([]string, 0, len(sub.Attributes))
	for k := range sub.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-a", k+"="+sub.Attributes[k])
	}
	for _, f := range sub.Attachments {
		args = append(args, "-f", f)
	}
	return append(args, "-n", "1", "-m", bodyPath)
}

// DryRunSubmitter prints the entry instead of posting it.
type DryRunSubmitter struct {
	W io.Writer
}

// Submit writes the attributes, body and attachment list to W.
func (d DryRunSubmitter) Submit(_ context.Context, sub Submission) (int, error) {
	var b strings.Builder
	keys := make([]string, 0, len(sub.Attributes))
	for k := range sub.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, sub.Attributes[k])
	}
	if len(keys) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(sub.Body)
	if !strings.HasSuffix(sub.Body, "\n") {
		b.WriteString("\n")
	}
	if len(sub.Attachments) > 0 {
		b.WriteString("\nAttachments:\n")
		for i, f := range sub.Attachments {
			fmt.Fprintf(&b, "  elog:/%d %s\n", i+1, f)
		}
	}
	if _, err := io.WriteString(d.W, b.String()); err != nil {
		return 0, fmt.Errorf("dry run: %w", err)
	}
	return 0, nil
}
