// Package store keeps the ledger of elog submissions, so a run is not logged
// twice by accident.
package store

import (
	"sort"
	"sync"
	"time"
)

// DefaultDBPath is the default path for the ledger database.
const DefaultDBPath = ".elogger/ledger.db"

// Submission is one posted (or dry-run) entry.
type Submission struct {
	ID          int64
	RunNumber   uint32
	SubmittedAt time.Time
	Attachments int
	Author      string
	DryRun      bool
	// MessageID is the logbook id of the entry, 0 if unknown.
	MessageID int
}

// Store is the submission ledger.
type Store interface {
	// Record appends s and returns its ledger id. A zero SubmittedAt is set
	// to now.
	Record(s *Submission) (int64, error)
	// Latest returns the most recent non-dry-run submission of run, or nil.
	Latest(run uint32) (*Submission, error)
	// List returns every submission, oldest first.
	List() ([]*Submission, error)
	Close() error
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu   sync.Mutex
	subs []*Submission
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) Record(s *Submission) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.ID = int64(len(m.subs) + 1)
	if cp.SubmittedAt.IsZero() {
		cp.SubmittedAt = time.Now().UTC()
	}
	m.subs = append(m.subs, &cp)
	return cp.ID, nil
}

func (m *MemStore) Latest(run uint32) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.subs) - 1; i >= 0; i-- {
		if s := m.subs[i]; s.RunNumber == run && !s.DryRun {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemStore) List() ([]*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Submission, len(m.subs))
	for i, s := range m.subs {
		cp := *s
		out[i] = &cp
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) Close() error { return nil }
