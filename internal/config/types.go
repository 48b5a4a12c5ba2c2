package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ALPHA-g-Experiment/elogger/internal/rules"
)

// Config is the full elogger configuration. It is loaded once and treated as
// read-only afterwards.
type Config struct {
	Elog        ElogConfig        `json:"elog" yaml:"elog"`
	DataHandler DataHandlerConfig `json:"data_handler" yaml:"data_handler"`
	Summary     SummaryConfig     `json:"summary" yaml:"summary"`
	Loggables   []rules.Rule      `json:"loggables" yaml:"loggables"`
}

// ElogConfig locates the logbook and the command line client that posts to it.
type ElogConfig struct {
	Client     string            `json:"client" yaml:"client"`
	Host       string            `json:"host" yaml:"host"`
	Port       int               `json:"port" yaml:"port"`
	Logbook    string            `json:"logbook" yaml:"logbook"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// DataHandlerConfig locates the Data Handler.
type DataHandlerConfig struct {
	Host       string   `json:"host" yaml:"host"`
	Port       int      `json:"port" yaml:"port"`
	JobTimeout Duration `json:"job_timeout,omitempty" yaml:"job_timeout,omitempty"`
	// PlotParallelism bounds concurrent plot jobs within one record.
	PlotParallelism int `json:"plot_parallelism,omitempty" yaml:"plot_parallelism,omitempty"`
}

// BaseURL is the Data Handler's HTTP root.
func (d DataHandlerConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", d.Host, d.Port)
}

// SummaryConfig controls the run-level attachments.
type SummaryConfig struct {
	// Columns are the Chronobox channels tabulated for every spill log record.
	Columns []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	// SequencerEvents also attaches the sequencer event table.
	SequencerEvents bool `json:"sequencer_events,omitempty" yaml:"sequencer_events,omitempty"`
}

// Duration is a time.Duration written as "90s", "5m" in config files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) set(s string) error {
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.set(s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	return d.set(s)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }
