package datahandler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nhooyr.io/websocket"
)

// jobState is the receive-loop state of one submitted job. awaitingResult is
// the only non-terminal state.
type jobState int

const (
	awaitingResult jobState = iota
	completed
	failed
	timedOut
)

func (s jobState) String() string {
	switch s {
	case awaitingResult:
		return "awaiting-result"
	case completed:
		return "completed"
	case failed:
		return "failed"
	case timedOut:
		return "timed-out"
	}
	return fmt.Sprintf("jobState(%d)", int(s))
}

type job struct {
	req   Request
	state jobState
	token string
	err   error
}

func newJob(req Request) *job {
	return &job{req: req, state: awaitingResult}
}

func (j *job) op() string {
	return fmt.Sprintf("%s job for run %d", j.req.Kind(), j.req.Run())
}

// handle applies one decoded server message.
func (j *job) handle(resp Response) {
	switch r := resp.(type) {
	case Text:
	case ServerError:
		j.fail(&ProtocolError{Op: j.op(), Msg: fmt.Sprintf("data handler internal error: `%s`", r.Message)})
	case DownloadToken:
		if r.Token == "" {
			j.fail(&ProtocolError{Op: j.op(), Msg: "empty download token"})
			return
		}
		j.token = r.Token
		j.state = completed
	default:
		j.fail(&ProtocolError{Op: j.op(), Msg: fmt.Sprintf("unhandled response %T", resp)})
	}
}

func (j *job) fail(err error) {
	j.err = err
	j.state = failed
}

func (j *job) timeout(after time.Duration) {
	j.err = &TimeoutError{Op: j.op(), After: after}
	j.state = timedOut
}

// await reads messages until the job leaves awaitingResult. A connection that
// closes first is a transport failure, never a silent success.
func (c *Client) await(ctx context.Context, conn *websocket.Conn, j *job) {
	jobCtx, cancel := context.WithTimeout(ctx, c.jobTimeout)
	defer cancel()

	for j.state == awaitingResult {
		typ, data, err := conn.Read(jobCtx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				j.fail(&TransportError{Op: j.op(), Err: ctx.Err()})
			case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
				j.timeout(c.jobTimeout)
			default:
				j.fail(&TransportError{Op: "read " + j.op() + " message", Err: err})
			}
			continue
		}
		if typ != websocket.MessageText {
			c.logger.DebugContext(ctx, "skipping non-text message", "kind", j.req.Kind(), "bytes", len(data))
			continue
		}

		resp, err := decodeResponse(data)
		if err != nil {
			j.fail(err)
			continue
		}
		if t, ok := resp.(Text); ok {
			c.logger.DebugContext(ctx, "data handler progress", "kind", j.req.Kind(), "text", t.Message)
		}
		j.handle(resp)
	}
}
