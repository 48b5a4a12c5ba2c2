package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

const (
	defaultJobTimeout      = Duration(5 * time.Minute)
	defaultPlotParallelism = 1
)

// Default returns the built-in configuration.
func Default() (*Config, error) {
	return Parse(defaultYAML, ".yaml")
}

// Load reads a config file (YAML or JSON), applies defaults and validates it.
// Format is detected by extension (.yaml/.yml → YAML, .json → JSON) or by
// content (first non-whitespace char).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, defaults and validates configuration bytes. ext is a format
// hint; empty means detect from content.
func Parse(data []byte, ext string) (*Config, error) {
	var cfg Config
	if err := decode(data, ext, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(data []byte, ext string, cfg *Config) error {
	ext = strings.ToLower(ext)
	if ext == ".yml" {
		ext = ".yaml"
	}
	if ext == "" && strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		ext = ".json"
	}

	if ext == ".json" {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("parse config json: %w", err)
		}
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config yaml: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.DataHandler.JobTimeout == 0 {
		c.DataHandler.JobTimeout = defaultJobTimeout
	}
	if c.DataHandler.PlotParallelism == 0 {
		c.DataHandler.PlotParallelism = defaultPlotParallelism
	}
	if c.Elog.Client == "" {
		c.Elog.Client = "elog"
	}
}

// Validate reports every problem in c at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Elog.Host == "" {
		errs = append(errs, errors.New("elog.host is required"))
	}
	if c.Elog.Port < 1 || c.Elog.Port > 65535 {
		errs = append(errs, fmt.Errorf("elog.port %d out of range", c.Elog.Port))
	}
	if c.Elog.Logbook == "" {
		errs = append(errs, errors.New("elog.logbook is required"))
	}
	if c.DataHandler.Host == "" {
		errs = append(errs, errors.New("data_handler.host is required"))
	}
	if c.DataHandler.Port < 1 || c.DataHandler.Port > 65535 {
		errs = append(errs, fmt.Errorf("data_handler.port %d out of range", c.DataHandler.Port))
	}
	if c.DataHandler.JobTimeout < 0 {
		errs = append(errs, errors.New("data_handler.job_timeout must be positive"))
	}
	if c.DataHandler.PlotParallelism < 0 {
		errs = append(errs, errors.New("data_handler.plot_parallelism must be positive"))
	}
	for i, col := range c.Summary.Columns {
		if strings.TrimSpace(col) == "" {
			errs = append(errs, fmt.Errorf("summary.columns[%d] is empty", i))
		}
	}
	for i, rule := range c.Loggables {
		where := fmt.Sprintf("loggables[%d]", i)
		if rule.SequencerName == "" {
			errs = append(errs, fmt.Errorf("%s: sequencer_name is required", where))
		}
		if rule.EventDescription == "" {
			errs = append(errs, fmt.Errorf("%s: event_description is required", where))
		}
		if t := rule.Config.ChronoboxTable; t != nil {
			for j, name := range t.ChannelNames {
				if strings.TrimSpace(name) == "" {
					errs = append(errs, fmt.Errorf("%s: chronobox_table.channel_names[%d] is empty", where, j))
				}
			}
		}
		for j, res := range rule.Config.ExternalResources {
			if res.BasePath == "" {
				errs = append(errs, fmt.Errorf("%s: external_resources[%d].base_path is required", where, j))
			}
		}
	}
	return errors.Join(errs...)
}
