package audit

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/radialtimeline/beats-gateway/backend/models"
	"go.uber.org/zap"
)

// blockingStore lets tests hold workers mid-save
type blockingStore struct {
	mu      sync.Mutex
	saved   []*models.AnalysisRecord
	release chan struct{}
}

func (s *blockingStore) Save(ctx context.Context, record *models.AnalysisRecord) error {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, record)
	return nil
}

func (s *blockingStore) List(ctx context.Context, limit int) ([]*models.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved, nil
}

func (s *blockingStore) Get(ctx context.Context, requestID string) (*models.AnalysisRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.saved {
		if r.RequestID == requestID {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

func (s *blockingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func TestService_RecordAndDrain(t *testing.T) {
	store := &blockingStore{}
	service := NewService(store, zap.NewNop(), DefaultConfig())

	if err := service.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < 10; i++ {
		record := models.NewAnalysisRecord("anthropic", "claude-sonnet-4-20250514", "save-the-cat", "prompt")
		record.RequestID = fmt.Sprintf("req-%d", i)
		if err := service.Record(record); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	if err := service.Stop(2 * time.Second); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if store.count() != 10 {
		t.Errorf("saved %d records, want 10 (drain on stop)", store.count())
	}
}

func TestService_RecordBeforeStart(t *testing.T) {
	service := NewService(&blockingStore{}, zap.NewNop(), DefaultConfig())

	record := models.NewAnalysisRecord("gemini", "gemini-2.0-flash", "story-circle", "prompt")
	if err := service.Record(record); err == nil {
		t.Error("Record() before Start() should fail")
	}
}

func TestService_DoubleStart(t *testing.T) {
	service := NewService(&blockingStore{}, zap.NewNop(), DefaultConfig())

	if err := service.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := service.Start(); err == nil {
		t.Error("Second Start() should fail")
	}

	_ = service.Stop(time.Second)
}

func TestService_StopWithoutStart(t *testing.T) {
	service := NewService(&blockingStore{}, zap.NewNop(), DefaultConfig())

	if err := service.Stop(time.Second); err == nil {
		t.Error("Stop() without Start() should fail")
	}
}

func TestService_DropsWhenBufferFull(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	service := NewService(store, zap.NewNop(), Config{BufferSize: 1, WorkerCount: 1})

	if err := service.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Workers are blocked, so records pile up until the buffer rejects
	dropped := 0
	for i := 0; i < 10; i++ {
		record := models.NewAnalysisRecord("anthropic", "claude-sonnet-4-20250514", "save-the-cat", "prompt")
		if err := service.Record(record); err != nil {
			dropped++
		}
	}

	if dropped == 0 {
		t.Error("Expected at least one dropped record with a full buffer")
	}

	close(store.release)
	_ = service.Stop(2 * time.Second)
}

func TestService_StoreAccessor(t *testing.T) {
	store := &blockingStore{}
	service := NewService(store, zap.NewNop(), DefaultConfig())

	if service.Store() != Store(store) {
		t.Error("Store() should return the configured store")
	}
}
