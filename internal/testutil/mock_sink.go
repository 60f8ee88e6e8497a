package testutil

import (
	"context"
	"sync"

	"github.com/taxonomix/backend/internal/models"
)

// MockSink implements pipeline.Sink in memory.
type MockSink struct {
	mu     sync.Mutex
	tables map[string]*models.Table

	// Err, when set, is returned by every Save.
	Err error
	// Panic makes Save panic, to exercise task recovery.
	Panic bool
}

// NewMockSink creates an empty sink.
func NewMockSink() *MockSink {
	return &MockSink{tables: make(map[string]*models.Table)}
}

func (s *MockSink) Save(_ context.Context, filename string, t *models.Table) error {
	if s.Panic {
		panic("sink exploded")
	}
	if s.Err != nil {
		return s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[filename] = t.Clone()
	return nil
}

// Table returns what was saved under filename, or nil.
func (s *MockSink) Table(filename string) *models.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[filename]
}

// Len returns the number of saved outputs.
func (s *MockSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables)
}
