// Package inmemory provides a process-local ResultStore implementation,
// suitable for local runs and tests. It shares the exact query semantics of
// the persistent stores.
package inmemory

import (
	"context"
	"sync"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/store"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

const moduleName = "inmemory_store"

// Store is an in-memory, append-only job record store. Safe for concurrent
// use. Records are deep-copied on the way in and out, so callers can never
// mutate stored state.
type Store struct {
	mu      sync.RWMutex
	records map[string]*model.JobRecord
	ordered []*model.JobRecord
	seq     int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		records: make(map[string]*model.JobRecord),
	}
}

// Put appends a record, assigning the next sequence number. Rejects duplicate
// ids with ErrRecordExists.
func (s *Store) Put(ctx context.Context, record *model.JobRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[record.ID]; exists {
		return exception.NewPipelineErrorf(moduleName,
			"record '%s' already stored", record.ID, false, false, exception.ErrRecordExists)
	}

	s.seq++
	record.Sequence = s.seq
	stored := record.Clone()
	s.records[stored.ID] = stored
	s.ordered = append(s.ordered, stored)
	logger.Debugf("Stored job record '%s' (stage '%s', sequence %d).", stored.ID, stored.Name, stored.Sequence)
	return nil
}

// Query returns copies of all records matching the filter, ordered by
// sequence.
func (s *Store) Query(ctx context.Context, filter store.Filter) ([]*model.JobRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.JobRecord
	for _, r := range s.ordered {
		if store.MatchesAll(r, filter) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// FindByID returns a copy of the record with the given id.
func (s *Store) FindByID(ctx context.Context, id string) (*model.JobRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, exception.NewPipelineErrorf(moduleName,
			"record '%s' not found", id, false, false, exception.ErrRecordNotFound)
	}
	return r.Clone(), nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

var _ store.ResultStore = (*Store)(nil)
