package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/radialtimeline/beats-gateway/backend/models"
	"go.uber.org/zap"
)

// Store persists analysis records. Implementations must be safe for
// concurrent use.
type Store interface {
	Save(ctx context.Context, record *models.AnalysisRecord) error
	List(ctx context.Context, limit int) ([]*models.AnalysisRecord, error)
	Get(ctx context.Context, requestID string) (*models.AnalysisRecord, error)
}

// Service handles asynchronous audit logging of analysis requests
type Service struct {
	store       Store
	logger      *zap.Logger
	eventChan   chan *models.AnalysisRecord
	workerCount int
	bufferSize  int
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
	mu          sync.Mutex
}

// Config holds configuration for the audit Service
type Config struct {
	BufferSize  int // Size of the event buffer channel
	WorkerCount int // Number of concurrent workers
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:  1000,
		WorkerCount: 2,
	}
}

// NewService creates a new audit Service instance
func NewService(store Store, logger *zap.Logger, config Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())

	return &Service{
		store:       store,
		logger:      logger,
		eventChan:   make(chan *models.AnalysisRecord, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop gracefully stops the audit service, draining pending records
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_records", len(s.eventChan)))

	// No more records will be accepted
	close(s.eventChan)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// Record enqueues a record asynchronously (non-blocking).
// Returns an error when the buffer is full; the record is dropped.
func (s *Service) Record(record *models.AnalysisRecord) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return fmt.Errorf("audit service not started")
	}
	s.mu.Unlock()

	select {
	case s.eventChan <- record:
		return nil
	default:
		s.logger.Warn("audit record channel full, dropping record",
			zap.String("request_id", record.RequestID),
			zap.String("provider", record.Provider))
		return fmt.Errorf("audit record buffer full")
	}
}

// Store exposes the underlying store for read paths
func (s *Service) Store() Store {
	return s.store
}

// worker processes records from the event channel
func (s *Service) worker(id int) {
	defer s.wg.Done()

	for record := range s.eventChan {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.Save(ctx, record); err != nil {
			s.logger.Error("failed to save audit record",
				zap.Int("worker", id),
				zap.String("request_id", record.RequestID),
				zap.Error(err))
		}
		cancel()
	}
}
