// Package store provides RecordStore implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/sales-analytics/analytics"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records []analytics.Record
}

func NewMemory() *Memory {
	return &Memory{}
}

// InsertBatch appends the batch. All-or-nothing is trivial here: a single
// append under the lock.
func (m *Memory) InsertBatch(_ context.Context, records []analytics.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return len(records), nil
}

// DeleteAll drops every record and returns how many were dropped.
func (m *Memory) DeleteAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.records))
	m.records = nil
	return n, nil
}

// Aggregate filters to the inclusive range and folds into group rows.
func (m *Memory) Aggregate(_ context.Context, q analytics.AggregateQuery) ([]analytics.GroupRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc := analytics.NewGroupAccumulator(q.GroupBy)
	matched := false
	for _, rec := range m.records {
		if q.Range.Contains(rec.Date) {
			acc.Add(rec)
			matched = true
		}
	}
	if !matched {
		return nil, nil
	}
	return acc.Rows(), nil
}

// Len reports the current record count. Test helper.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
