// Package odb wraps the end-of-run ODB: an arbitrary nested JSON document
// queried by JSON-pointer paths. Lookups never fail on missing keys; they
// report absence instead.
package odb

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/valyala/fastjson"
)

// Well-known paths.
const (
	CommentPath      = "/Experiment/Edit on start/Comment"
	StartTimeBinPath = "/Runinfo/Start time binary"
	StopTimeBinPath  = "/Runinfo/Stop time binary"
	experimentTZ     = "Europe/Zurich"
)

// Document is a parsed ODB. A nil Document is empty.
type Document struct {
	root *fastjson.Value
}

// Parse decodes an ODB dump. The top level must be an object.
func Parse(data []byte) (*Document, error) {
	var p fastjson.Parser
	// Parse copies data, so the document does not alias the caller's buffer.
	root, err := p.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse odb: %w", err)
	}
	if root.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("parse odb: top level is %s, want object", root.Type())
	}
	return &Document{root: root}, nil
}

// keys splits an RFC 6901 pointer into the key path fastjson expects.
// Array elements are addressed by their decimal index.
func keys(pointer string) ([]string, bool) {
	if pointer == "" {
		return nil, true
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false
	}
	toks := strings.Split(pointer[1:], "/")
	for i, tok := range toks {
		toks[i] = strings.ReplaceAll(strings.ReplaceAll(tok, "~1", "/"), "~0", "~")
	}
	return toks, true
}

// Lookup resolves an RFC 6901 JSON pointer ("" is the whole document).
func (d *Document) Lookup(pointer string) (*fastjson.Value, bool) {
	if d == nil || d.root == nil {
		return nil, false
	}
	path, ok := keys(pointer)
	if !ok {
		return nil, false
	}
	v := d.root.Get(path...)
	return v, v != nil
}

// String returns the string at pointer.
func (d *Document) String(pointer string) (string, bool) {
	v, ok := d.Lookup(pointer)
	if !ok || v.Type() != fastjson.TypeString {
		return "", false
	}
	return string(v.GetStringBytes()), true
}

// Array returns the elements of the array at pointer.
func (d *Document) Array(pointer string) ([]*fastjson.Value, bool) {
	v, ok := d.Lookup(pointer)
	if !ok {
		return nil, false
	}
	a, err := v.Array()
	if err != nil {
		return nil, false
	}
	return a, true
}

// Comment is the shift comment entered at the start of the run, or "".
func (d *Document) Comment() string {
	s, _ := d.String(CommentPath)
	return strings.TrimSpace(s)
}

// RunTimeLimits returns the run start and stop times in the experiment's
// time zone (Europe/Zurich).
func (d *Document) RunTimeLimits() (start, stop time.Time, err error) {
	loc, err := time.LoadLocation(experimentTZ)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("load %s time zone: %w", experimentTZ, err)
	}
	if start, err = d.hexTime(StartTimeBinPath, loc); err != nil {
		return time.Time{}, time.Time{}, err
	}
	if stop, err = d.hexTime(StopTimeBinPath, loc); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, stop, nil
}

// hexTime reads a "0x..."-encoded unix time in seconds.
func (d *Document) hexTime(pointer string, loc *time.Location) (time.Time, error) {
	s, ok := d.String(pointer)
	if !ok {
		return time.Time{}, fmt.Errorf("odb: %s is missing or not a string", pointer)
	}
	hex, ok := strings.CutPrefix(s, "0x")
	if !ok {
		return time.Time{}, fmt.Errorf("odb: %s = %q has no 0x prefix", pointer, s)
	}
	secs, err := strconv.ParseInt(hex, 16, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("odb: parse %s: %w", pointer, err)
	}
	return time.Unix(secs, 0).In(loc), nil
}
