package audit

import (
	"context"
	"errors"
	"sync"

	"github.com/radialtimeline/beats-gateway/backend/models"
)

// MemoryStore is a bounded in-memory Store. When capacity is reached the
// oldest records are evicted first.
type MemoryStore struct {
	mu       sync.RWMutex
	records  []*models.AnalysisRecord
	byID     map[string]*models.AnalysisRecord
	capacity int
}

// NewMemoryStore creates a MemoryStore holding at most capacity records
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{
		records:  make([]*models.AnalysisRecord, 0, capacity),
		byID:     make(map[string]*models.AnalysisRecord),
		capacity: capacity,
	}
}

// Save stores a record, evicting the oldest when full
func (s *MemoryStore) Save(_ context.Context, record *models.AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) >= s.capacity {
		evicted := s.records[0]
		s.records = s.records[1:]
		delete(s.byID, evicted.RequestID)
	}

	s.records = append(s.records, record)
	s.byID[record.RequestID] = record
	return nil
}

// List returns the most recent records, newest first
func (s *MemoryStore) List(_ context.Context, limit int) ([]*models.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}

	out := make([]*models.AnalysisRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Get returns a record by request ID
func (s *MemoryStore) Get(_ context.Context, requestID string) (*models.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byID[requestID]
	if !ok {
		return nil, ErrNotFound
	}
	return record, nil
}

// ErrNotFound is returned when a record is not in the store
var ErrNotFound = errors.New("analysis record not found")
