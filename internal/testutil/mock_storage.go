package testutil

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/storage"
)

// MockStore is an in-memory storage.Store. FailOn makes Save fail for the
// named file so partial-ingest paths can be exercised.
type MockStore struct {
	mu     sync.RWMutex
	files  map[string][]byte
	mod    map[string]time.Time
	writes int
	FailOn string
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		files: make(map[string][]byte),
		mod:   make(map[string]time.Time),
	}
}

func (m *MockStore) Root() string { return "/mock" }

func (m *MockStore) Save(name string, r io.Reader) (*models.FileInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return m.SaveBytes(name, data)
}

func (m *MockStore) SaveBytes(name string, data []byte) (*models.FileInfo, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, err
	}
	if m.FailOn != "" && name == m.FailOn {
		return nil, errors.New("mock write failure")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
	m.mod[name] = time.Now()
	m.writes++
	return m.info(name), nil
}

func (m *MockStore) Get(name string) (*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.files[name]; !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, name)
	}
	return m.info(name), nil
}

func (m *MockStore) List() ([]*models.FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*models.FileInfo, 0, len(names))
	for _, name := range names {
		out = append(out, m.info(name))
	}
	return out, nil
}

func (m *MockStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; !ok {
		return fmt.Errorf("%w: %s", models.ErrArtifactNotFound, name)
	}
	delete(m.files, name)
	delete(m.mod, name)
	return nil
}

func (m *MockStore) GetFilePath(name string) (string, error) {
	if _, err := m.Get(name); err != nil {
		return "", err
	}
	return m.Root() + "/" + name, nil
}

var _ storage.Store = (*MockStore)(nil)

// Data returns the stored bytes of a file.
func (m *MockStore) Data(name string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[name]
	return data, ok
}

// Writes returns how many successful writes the store has seen.
func (m *MockStore) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *MockStore) info(name string) *models.FileInfo {
	return &models.FileInfo{Name: name, Size: int64(len(m.files[name])), ModifiedAt: m.mod[name]}
}
