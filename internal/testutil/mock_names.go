// Package testutil provides fakes for the services injected into the
// pipeline, the resolver and the HTTP handlers.
package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/taxonomix/backend/internal/models"
)

// MockMatchService implements names.MatchService with canned answers and a
// per-name call counter. Unknown names answer NONE.
type MockMatchService struct {
	mu      sync.Mutex
	matches map[string]models.NameMatch
	errs    map[string]error
	calls   map[string]int

	// Gate, when set, blocks every Match until it is closed.
	Gate chan struct{}
	// Started, when set, receives each name as its call begins.
	Started chan string
}

// NewMockMatchService creates an empty fake.
func NewMockMatchService() *MockMatchService {
	return &MockMatchService{
		matches: make(map[string]models.NameMatch),
		errs:    make(map[string]error),
		calls:   make(map[string]int),
	}
}

// WithMatch registers an answer for name.
func (m *MockMatchService) WithMatch(name, scientificName string, matchType models.MatchType) *MockMatchService {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[name] = models.NameMatch{
		Input:          name,
		ScientificName: scientificName,
		MatchType:      matchType,
		Confidence:     99,
	}
	return m
}

// WithError makes lookups of name fail.
func (m *MockMatchService) WithError(name string, err error) *MockMatchService {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[name] = err
	return m
}

func (m *MockMatchService) Match(ctx context.Context, name string) (models.NameMatch, error) {
	m.mu.Lock()
	m.calls[name]++
	match, ok := m.matches[name]
	err := m.errs[name]
	m.mu.Unlock()

	if m.Started != nil {
		m.Started <- name
	}
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return models.NameMatch{}, ctx.Err()
		}
	}

	if err != nil {
		return models.NameMatch{}, err
	}
	if !ok {
		return models.NameMatch{Input: name, MatchType: models.MatchNone}, nil
	}
	return match, nil
}

// Calls returns how many times name was looked up.
func (m *MockMatchService) Calls(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

// TotalCalls returns the number of lookups across all names.
func (m *MockMatchService) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// ErrCacheUnavailable is returned by MockCache when Fail is set.
var ErrCacheUnavailable = errors.New("cache unavailable")

// MockCache implements names.Cache in memory and counts operations.
type MockCache struct {
	mu      sync.RWMutex
	entries map[string]models.NameMatch
	gets    int
	sets    int

	// Fail makes every operation return ErrCacheUnavailable.
	Fail bool
}

// NewMockCache creates an empty cache.
func NewMockCache() *MockCache {
	return &MockCache{entries: make(map[string]models.NameMatch)}
}

func (c *MockCache) Get(_ context.Context, name string) (models.NameMatch, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.Fail {
		return models.NameMatch{}, false, ErrCacheUnavailable
	}
	m, ok := c.entries[name]
	return m, ok, nil
}

func (c *MockCache) Set(_ context.Context, name string, match models.NameMatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.Fail {
		return ErrCacheUnavailable
	}
	c.entries[name] = match
	return nil
}

func (c *MockCache) Has(_ context.Context, name string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Fail {
		return false, ErrCacheUnavailable
	}
	_, ok := c.entries[name]
	return ok, nil
}

func (c *MockCache) Close() error { return nil }

// Put seeds an entry without counting it as a Set.
func (c *MockCache) Put(name string, match models.NameMatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = match
}

// Sets returns how many writes were attempted.
func (c *MockCache) Sets() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sets
}

// Gets returns how many reads were attempted.
func (c *MockCache) Gets() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gets
}
