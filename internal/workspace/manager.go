// Package workspace hands out request-scoped workspace directories so that
// concurrent runs never observe each other's inputs or outputs.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/storage"
)

// Workspace is one run's view of the file store.
type Workspace struct {
	ID        string
	Store     *storage.LocalStore
	CreatedAt time.Time
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.Store.Root()
}

// Manager creates, resolves and expires run workspaces under a root
// directory. With isolation disabled every run shares the root.
type Manager struct {
	root    string
	isolate bool
	shared  *storage.LocalStore
	log     logger.Logger

	mu     sync.Mutex
	active map[string]int
}

// NewManager creates a workspace manager rooted at root.
func NewManager(root string, isolate bool, log logger.Logger) (*Manager, error) {
	shared, err := storage.NewLocalStore(root)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Manager{
		root:    root,
		isolate: isolate,
		shared:  shared,
		log:     log,
		active:  make(map[string]int),
	}, nil
}

// Isolated reports whether runs get their own directories.
func (m *Manager) Isolated() bool {
	return m.isolate
}

// Shared returns the store for the root directory.
func (m *Manager) Shared() *storage.LocalStore {
	return m.shared
}

// Create allocates a workspace for a new run and marks it active until
// Release is called.
func (m *Manager) Create() (*Workspace, error) {
	id := uuid.New().String()
	ws := &Workspace{ID: id, Store: m.shared, CreatedAt: time.Now()}

	if m.isolate {
		store, err := storage.NewLocalStore(filepath.Join(m.root, id))
		if err != nil {
			return nil, err
		}
		ws.Store = store
	}

	m.mu.Lock()
	m.active[id]++
	m.mu.Unlock()

	m.log.Debugf("workspace %s created at %s", shortID(id), ws.Dir())
	return ws, nil
}

// Release marks a workspace as no longer in use by a run. Its files stay on
// disk until the retention cleanup removes them.
func (m *Manager) Release(ws *Workspace) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := m.active[ws.ID]; n <= 1 {
		delete(m.active, ws.ID)
	} else {
		m.active[ws.ID] = n - 1
	}
}

// Open resolves an existing workspace by run ID. An empty ID resolves to the
// shared root.
func (m *Manager) Open(id string) (*Workspace, error) {
	if id == "" || !m.isolate {
		return &Workspace{ID: id, Store: m.shared}, nil
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
	}

	dir := filepath.Join(m.root, id)
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
	}
	store, err := storage.NewLocalStore(dir)
	if err != nil {
		return nil, err
	}
	return &Workspace{ID: id, Store: store, CreatedAt: fi.ModTime()}, nil
}

// Locate finds the workspace holding the report called name when no run ID is
// given. With isolation it searches finished run workspaces, newest copy
// first, then the shared root. Runs still in progress are not searched.
func (m *Manager) Locate(name string) (*Workspace, error) {
	if !m.isolate {
		return m.Open("")
	}
	if err := storage.ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, name)
	}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("reading workspaces: %w", err)
	}

	type candidate struct {
		id  string
		dir string
		mod time.Time
	}
	var found []candidate
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		if _, err := uuid.Parse(id); err != nil || m.busy(id) {
			continue
		}
		dir := filepath.Join(m.root, id)
		fi, err := os.Stat(filepath.Join(dir, name))
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		found = append(found, candidate{id: id, dir: dir, mod: fi.ModTime()})
	}

	if len(found) == 0 {
		if _, err := m.shared.Get(name); err != nil {
			return nil, err
		}
		return &Workspace{Store: m.shared}, nil
	}

	sort.Slice(found, func(i, j int) bool {
		if found[i].mod.Equal(found[j].mod) {
			return found[i].id < found[j].id
		}
		return found[i].mod.After(found[j].mod)
	})
	newest := found[0]
	store, err := storage.NewLocalStore(newest.dir)
	if err != nil {
		return nil, err
	}
	return &Workspace{ID: newest.id, Store: store, CreatedAt: newest.mod}, nil
}

func (m *Manager) busy(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[id]
	return ok
}

// CleanupOld removes isolated workspaces last modified more than maxAge ago.
// Workspaces of runs still in progress are kept. It returns the number of
// workspaces removed.
func (m *Manager) CleanupOld(maxAge time.Duration) int {
	if !m.isolate || maxAge <= 0 {
		return 0
	}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		m.log.Warnf("workspace cleanup: %v", err)
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id := e.Name()
		if _, err := uuid.Parse(id); err != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil || fi.ModTime().After(cutoff) {
			continue
		}

		if m.busy(id) {
			continue
		}

		if err := os.RemoveAll(filepath.Join(m.root, id)); err != nil {
			m.log.Warnf("workspace cleanup %s: %v", shortID(id), err)
			continue
		}
		removed++
		m.log.Infof("cleaned up workspace %s", shortID(id))
	}
	return removed
}

// shortID safely truncates an ID for logging
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
