package config

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/ALPHA-g-Experiment/elogger/internal/rules"
)

func testdataPath(name string) string {
	_, f, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(f), "testdata", name)
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(testdataPath("elogger.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Elog.Client != "/usr/local/bin/elog" || cfg.Elog.Attributes["Type"] != "Run summary" {
		t.Errorf("elog config: %+v", cfg.Elog)
	}
	if cfg.DataHandler.JobTimeout.Std() != 90*time.Second || cfg.DataHandler.PlotParallelism != 4 {
		t.Errorf("data handler config: %+v", cfg.DataHandler)
	}
	if cfg.DataHandler.BaseURL() != "http://localhost:8085" {
		t.Errorf("BaseURL = %q", cfg.DataHandler.BaseURL())
	}
	if !cfg.Summary.SequencerEvents {
		t.Error("summary.sequencer_events should be set")
	}

	want := []rules.Rule{
		{
			SequencerName:    "cat",
			EventDescription: "Hot Dump",
			Config: rules.EntryConfig{
				ChronoboxTable: &rules.ChronoboxTable{ChannelNames: []string{"SiPM_A", "SiPM_B"}, IncludeAttachments: true},
				ExternalResources: []rules.ExternalResource{
					{BasePath: "/data/camera", Header: "Camera", IncludeDescription: true, IncludeAttachment: true},
				},
			},
		},
		{SequencerName: "atm", EventDescription: "Mixing"},
	}
	if diff := cmp.Diff(want, cfg.Loggables); diff != "" {
		t.Errorf("loggables mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_JSONAppliesDefaults(t *testing.T) {
	cfg, err := Load(testdataPath("elogger.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Elog.Client != "elog" {
		t.Errorf("default client = %q", cfg.Elog.Client)
	}
	if cfg.DataHandler.JobTimeout.Std() != 5*time.Minute {
		t.Errorf("default job timeout = %s", cfg.DataHandler.JobTimeout)
	}
	if cfg.DataHandler.PlotParallelism != 1 {
		t.Errorf("default plot parallelism = %d", cfg.DataHandler.PlotParallelism)
	}
	if len(cfg.Loggables) != 1 || cfg.Loggables[0].Config.ChronoboxTable.ChannelNames[0] != "PMT_1" {
		t.Errorf("loggables: %+v", cfg.Loggables)
	}
}

func TestParse_DetectsJSON(t *testing.T) {
	data := []byte(`{"elog":{"host":"h","port":1,"logbook":"l"},"data_handler":{"host":"h","port":2}}`)
	if _, err := Parse(data, ""); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if cfg.DataHandler.Port != 8085 || cfg.Elog.Logbook != "AutoAlphaG" {
		t.Errorf("default config: %+v", cfg)
	}
}

func TestParse_ValidationListsEveryProblem(t *testing.T) {
	data := []byte(`
elog: {host: "", port: 0, logbook: ""}
data_handler: {host: localhost, port: 70000}
summary: {columns: [" "]}
loggables:
  - sequencer_name: ""
    event_description: x
    config:
      chronobox_table: {channel_names: [A, ""]}
      external_resources: [{header: no base}]
`)
	_, err := Parse(data, ".yaml")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"elog.host is required",
		"elog.port 0 out of range",
		"elog.logbook is required",
		"data_handler.port 70000 out of range",
		"summary.columns[0] is empty",
		"loggables[0]: sequencer_name is required",
		"loggables[0]: chronobox_table.channel_names[1] is empty",
		"loggables[0]: external_resources[0].base_path is required",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %q:\n%v", want, err)
		}
	}
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	data := []byte("elog: {host: h, port: 1, logbook: l, colour: red}\ndata_handler: {host: h, port: 2}\n")
	if _, err := Parse(data, ".yaml"); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParse_BadDuration(t *testing.T) {
	data := []byte("elog: {host: h, port: 1, logbook: l}\ndata_handler: {host: h, port: 2, job_timeout: soon}\n")
	_, err := Parse(data, ".yaml")
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("expected invalid duration error, got %v", err)
	}
}
