// mock_storage.go - Mock upload storage and job submission for testing
package testutil

import (
	"fmt"
	"io"
	"sync"

	"github.com/taxonomix/backend/internal/storage"
)

// MockUploadStore implements api.UploadStore in memory
type MockUploadStore struct {
	files map[string][]byte
	mu    sync.RWMutex

	// Err, when set, is returned by every SaveUpload.
	Err error
}

// NewMockUploadStore creates an empty upload store
func NewMockUploadStore() *MockUploadStore {
	return &MockUploadStore{files: make(map[string][]byte)}
}

func (m *MockUploadStore) SaveUpload(name string, r io.Reader) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	if name == "" || name == "." || name == ".." {
		return 0, fmt.Errorf("%w: %q", storage.ErrInvalidName, name)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
	return int64(len(data)), nil
}

// Data returns the stored bytes for name
func (m *MockUploadStore) Data(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	return data, ok
}

// Submission is one recorded call to MockSubmitter.Submit
type Submission struct {
	ID       string
	Filename string
	Data     []byte
}

// MockSubmitter implements api.JobSubmitter by recording submissions
type MockSubmitter struct {
	mu          sync.Mutex
	submissions []Submission
}

// NewMockSubmitter creates a submitter that hands out sequential ids
func NewMockSubmitter() *MockSubmitter {
	return &MockSubmitter{}
}

func (m *MockSubmitter) Submit(filename string, data []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := generateTestID(len(m.submissions) + 1)
	m.submissions = append(m.submissions, Submission{ID: id, Filename: filename, Data: data})
	return id
}

// Submissions returns a copy of everything submitted so far
func (m *MockSubmitter) Submissions() []Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Submission(nil), m.submissions...)
}

func generateTestID(n int) string {
	return fmt.Sprintf("test-job-%04d", n)
}
