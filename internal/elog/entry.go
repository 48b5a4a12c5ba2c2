// Package elog assembles the elog entry of one run: a plain-text body built
// from the spill log records that match a rule, and the ordered list of files
// attached to it.
package elog

import (
	"fmt"
	"strings"
)

// Sentinels stand in for table cells that could not be filled.
const (
	NotInSpillLog         = "<NOT_IN_SPILL_LOG>"
	NotInODB              = "<NOT_IN_ODB>"
	DataHandlerError      = "<DATA_HANDLER_ERROR>"
	DataHandlerParseError = "<DATA_HANDLER_PARSE_ERROR>"
	ExternalResourceError = "<EXTERNAL_RESOURCE_ERROR>"
)

// Reference is how the body points at the n-th (1-based) attachment.
func Reference(n int) string {
	return fmt.Sprintf("elog:/%d", n)
}

// Entry is the body and attachments of one elog entry. Attachments are only
// added through attach, which hands back the matching reference, so every
// reference in the body has a file and every file has a reference.
type Entry struct {
	text        strings.Builder
	attachments []string
}

// NewEntry returns an empty entry.
func NewEntry() *Entry {
	return &Entry{}
}

// Text is the body so far.
func (e *Entry) Text() string { return e.text.String() }

// Attachments returns a copy of the attachment paths in reference order.
func (e *Entry) Attachments() []string {
	return append([]string(nil), e.attachments...)
}

func (e *Entry) attach(path string) string {
	e.attachments = append(e.attachments, path)
	return Reference(len(e.attachments))
}

func (e *Entry) write(s string) {
	e.text.WriteString(s)
}
