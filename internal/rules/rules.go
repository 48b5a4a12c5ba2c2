// Package rules maps spill log records to the operator-configured entries
// that say whether and how each record is logged.
package rules

import "github.com/ALPHA-g-Experiment/elogger/internal/runlog"

// Rule selects the records of one (sequencer, event description) pair.
type Rule struct {
	SequencerName    string      `json:"sequencer_name" yaml:"sequencer_name"`
	EventDescription string      `json:"event_description" yaml:"event_description"`
	Config           EntryConfig `json:"config" yaml:"config"`
}

// EntryConfig says what to log for a matched record.
type EntryConfig struct {
	ChronoboxTable    *ChronoboxTable    `json:"chronobox_table,omitempty" yaml:"chronobox_table,omitempty"`
	ExternalResources []ExternalResource `json:"external_resources,omitempty" yaml:"external_resources,omitempty"`
}

// ChronoboxTable lists the channels tabulated for a record. With
// IncludeAttachments, a timestamp plot is attached per channel.
type ChronoboxTable struct {
	ChannelNames       []string `json:"channel_names" yaml:"channel_names"`
	IncludeAttachments bool     `json:"include_attachments,omitempty" yaml:"include_attachments,omitempty"`
}

// ExternalResource is a directory of time-stamped PNG files produced by
// another system (cameras, analysis daemons) during the run.
type ExternalResource struct {
	BasePath           string `json:"base_path" yaml:"base_path"`
	Header             string `json:"header,omitempty" yaml:"header,omitempty"`
	IncludeDescription bool   `json:"include_description,omitempty" yaml:"include_description,omitempty"`
	IncludeAttachment  bool   `json:"include_attachment,omitempty" yaml:"include_attachment,omitempty"`
}

// Matches reports whether r is keyed to rec.
func (r Rule) Matches(rec runlog.Record) bool {
	return r.SequencerName == rec.SequencerName && r.EventDescription == rec.EventDescription
}

// LoggableRecord is a record paired with the entry config of its rule.
type LoggableRecord struct {
	Record runlog.Record
	Config EntryConfig
}

// Match returns the first rule in rules keyed to rec. Configuration order
// breaks ties.
func Match(rec runlog.Record, rules []Rule) (*Rule, bool) {
	for i := range rules {
		if rules[i].Matches(rec) {
			return &rules[i], true
		}
	}
	return nil, false
}

// Loggables keeps the records that match a rule, in input order. Records
// without a rule are dropped.
func Loggables(records []runlog.Record, rules []Rule) []LoggableRecord {
	var out []LoggableRecord
	for _, rec := range records {
		if rule, ok := Match(rec, rules); ok {
			out = append(out, LoggableRecord{Record: rec, Config: rule.Config})
		}
	}
	return out
}
