package datahandler

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Request is one job the Data Handler can run. The set of implementations is
// closed: ChronoboxTimestamps, FinalOdb, SequencerEvents and SpillLog.
type Request interface {
	// Kind is the wire tag of the request variant.
	Kind() string
	// Run is the run number the request is scoped to.
	Run() uint32

	isRequest()
}

// ChronoboxArgs selects one Chronobox channel and an optional time window.
// Nil fields are sent as null and left to the server's defaults.
type ChronoboxArgs struct {
	BoardName     string   `json:"board_name"`
	ChannelNumber uint8    `json:"channel_number"`
	TBins         *uint    `json:"t_bins"`
	TMax          *float64 `json:"t_max"`
	TMin          *float64 `json:"t_min"`
}

// ChronoboxTimestamps requests a rendered timestamp histogram for one channel.
type ChronoboxTimestamps struct {
	RunNumber uint32        `json:"run_number"`
	Args      ChronoboxArgs `json:"args"`
}

// FinalOdb requests the end-of-run ODB (JSON).
type FinalOdb struct {
	RunNumber uint32 `json:"run_number"`
}

// SequencerEvents requests the sequencer event table (CSV).
type SequencerEvents struct {
	RunNumber uint32 `json:"run_number"`
}

// SpillLog requests the spill log (CSV with '#' comments).
type SpillLog struct {
	RunNumber uint32 `json:"run_number"`
}

func (ChronoboxTimestamps) Kind() string { return "ChronoboxTimestamps" }
func (FinalOdb) Kind() string            { return "FinalOdb" }
func (SequencerEvents) Kind() string     { return "SequencerEvents" }
func (SpillLog) Kind() string            { return "SpillLog" }

func (r ChronoboxTimestamps) Run() uint32 { return r.RunNumber }
func (r FinalOdb) Run() uint32            { return r.RunNumber }
func (r SequencerEvents) Run() uint32     { return r.RunNumber }
func (r SpillLog) Run() uint32            { return r.RunNumber }

func (ChronoboxTimestamps) isRequest() {}
func (FinalOdb) isRequest()            {}
func (SequencerEvents) isRequest()     {}
func (SpillLog) isRequest()            {}

// clientMessage is the envelope sent over the websocket.
type clientMessage struct {
	Service string                 `json:"service"`
	Context string                 `json:"context"`
	Request map[string]interface{} `json:"request"`
}

func encodeRequest(ctxID string, req Request) ([]byte, error) {
	msg := clientMessage{
		Context: ctxID,
		Request: map[string]interface{}{req.Kind(): req},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Kind(), err)
	}
	return data, nil
}

// Response is one message received while a job runs. The set of
// implementations is closed: Text, ServerError and DownloadToken.
type Response interface {
	isResponse()
}

// Text is a progress message. It carries no state and is skipped.
type Text struct {
	Message string
}

// ServerError is a terminal failure reported by the server.
type ServerError struct {
	Message string
}

// DownloadToken completes a job; the result is at /download/<Token>.
type DownloadToken struct {
	Token string
}

func (Text) isResponse()          {}
func (ServerError) isResponse()   {}
func (DownloadToken) isResponse() {}

type serverMessage struct {
	Service  string          `json:"service"`
	Context  string          `json:"context"`
	Response json.RawMessage `json:"response"`
}

// decodeResponse parses one server envelope. Anything that is not exactly one
// known variant is an error.
func decodeResponse(data []byte) (Response, error) {
	var msg serverMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&msg); err != nil {
		return nil, &ProtocolError{Op: "decode message", Msg: "malformed envelope", Err: err}
	}
	if len(msg.Response) == 0 || bytes.Equal(msg.Response, []byte("null")) {
		return nil, &ProtocolError{Op: "decode message", Msg: "envelope has no response"}
	}

	var variants map[string]json.RawMessage
	if err := json.Unmarshal(msg.Response, &variants); err != nil {
		return nil, &ProtocolError{Op: "decode message", Msg: "response is not a tagged variant", Err: err}
	}
	if len(variants) != 1 {
		return nil, &ProtocolError{Op: "decode message", Msg: fmt.Sprintf("response has %d variants, want 1", len(variants))}
	}

	var (
		tag     string
		payload json.RawMessage
	)
	for k, v := range variants {
		tag, payload = k, v
	}

	var s string
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, &ProtocolError{Op: "decode message", Msg: fmt.Sprintf("%s payload is not a string", tag), Err: err}
	}
	switch tag {
	case "Text":
		return Text{Message: s}, nil
	case "Error":
		return ServerError{Message: s}, nil
	case "DownloadJWT":
		return DownloadToken{Token: s}, nil
	}
	return nil, &ProtocolError{Op: "decode message", Msg: fmt.Sprintf("unknown response variant %q", tag)}
}
