package jobs

import (
	"context"
	"sort"
	"sync"
)

// Field names written by the Tracker.
const (
	FieldStatus  = "status"
	FieldPercent = "percent"
	FieldMessage = "message"
	FieldTotal   = "total"
)

// Store keeps per-job field maps. Writes are partial and last-write-wins per
// field; reads of an unknown job return an empty map.
type Store interface {
	SetFields(ctx context.Context, id string, fields map[string]string) error
	GetFields(ctx context.Context, id string) (map[string]string, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]map[string]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]map[string]string)}
}

func (s *MemoryStore) SetFields(_ context.Context, id string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		job = make(map[string]string, len(fields))
		s.jobs[id] = job
	}
	for k, v := range fields {
		job[k] = v
	}
	return nil
}

func (s *MemoryStore) GetFields(_ context.Context, id string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.jobs[id]))
	for k, v := range s.jobs[id] {
		out[k] = v
	}
	return out, nil
}

// IDs returns every known job id, sorted.
func (s *MemoryStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// writeOrder returns the keys of fields with status last, so a reader never
// sees a terminal status ahead of its percent or message.
func writeOrder(fields map[string]string) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != FieldStatus {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := fields[FieldStatus]; ok {
		keys = append(keys, FieldStatus)
	}
	return keys
}
