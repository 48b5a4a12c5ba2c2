package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ALPHA-g-Experiment/elogger/internal/config"
	"github.com/ALPHA-g-Experiment/elogger/internal/datahandler"
	"github.com/ALPHA-g-Experiment/elogger/internal/logging"
	"github.com/ALPHA-g-Experiment/elogger/internal/metrics"
	"github.com/ALPHA-g-Experiment/elogger/internal/store"
)

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func parseRun(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid run number %q", s)
	}
	return uint32(n), nil
}

// parseAttrs turns repeated --attr key=value flags into a map.
func parseAttrs(kvs []string) (map[string]string, error) {
	out := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid attribute %q (want key=value)", kv)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

func newDataHandler(cfg *config.Config, m *metrics.Metrics) (*datahandler.Client, error) {
	client, err := datahandler.New(cfg.DataHandler.BaseURL(),
		datahandler.WithLogger(logging.New("datahandler")),
		datahandler.WithMetrics(m),
		datahandler.WithJobTimeout(cfg.DataHandler.JobTimeout.Std()),
	)
	if err != nil {
		return nil, fmt.Errorf("create data handler client: %w", err)
	}
	return client, nil
}

// openLedger opens the SQLite ledger at path. An empty path keeps the ledger
// in memory for this invocation only.
func openLedger(path string) (store.Store, error) {
	if path == "" {
		return store.NewMemStore(), nil
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return s, nil
}
