package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/microgrid-sizing/backend/internal/models"
)

// Store defines the interface for a workspace file store. Files are keyed by
// their bare name; the directory is shared with the optimizer, which writes
// into it directly.
type Store interface {
	Root() string
	Save(name string, r io.Reader) (*models.FileInfo, error)
	SaveBytes(name string, data []byte) (*models.FileInfo, error)
	Get(name string) (*models.FileInfo, error)
	List() ([]*models.FileInfo, error)
	Delete(name string) error
	GetFilePath(name string) (string, error)
}

// LocalStore implements Store using a local directory.
type LocalStore struct {
	mu  sync.Mutex
	dir string
}

// NewLocalStore creates a new LocalStore rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating workspace directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// StagingPrefix starts the names of temporary files holding in-progress
// writes.
const StagingPrefix = ".upload-"

// IsStaging reports whether name is an in-progress write.
func IsStaging(name string) bool {
	return strings.HasPrefix(name, StagingPrefix)
}

// ValidateName checks that name is a non-empty bare file name.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: file has no name", models.ErrInvalidArtifact)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q is not a plain file name", models.ErrInvalidArtifact, name)
	}
	return nil
}

// Root returns the workspace directory.
func (s *LocalStore) Root() string {
	return s.dir
}

// Save writes r to the workspace under name, replacing any existing file.
// The content is staged in a temporary file so readers never see a partial
// write.
func (s *LocalStore) Save(name string, r io.Reader) (*models.FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.dir, StagingPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("writing file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, name)
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("moving file into place: %w", err)
	}
	return s.stat(name)
}

// SaveBytes is Save for in-memory content.
func (s *LocalStore) SaveBytes(name string, data []byte) (*models.FileInfo, error) {
	return s.Save(name, bytes.NewReader(data))
}

// Get retrieves file metadata by name.
func (s *LocalStore) Get(name string) (*models.FileInfo, error) {
	if err := ValidateName(name); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, name)
	}
	return s.stat(name)
}

func (s *LocalStore) stat(name string) (*models.FileInfo, error) {
	fi, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, name)
		}
		return nil, fmt.Errorf("stat %s: %w", name, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", models.ErrArtifactNotFound, name)
	}
	return &models.FileInfo{
		Name:       name,
		Size:       fi.Size(),
		ModifiedAt: fi.ModTime(),
	}, nil
}

// List returns every regular file in the workspace, sorted by name. Staging
// files of in-progress writes are skipped.
func (s *LocalStore) List() ([]*models.FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing workspace: %w", err)
	}

	list := make([]*models.FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || IsStaging(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		list = append(list, &models.FileInfo{
			Name:       e.Name(),
			Size:       fi.Size(),
			ModifiedAt: fi.ModTime(),
		})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list, nil
}

// Delete removes a file from the workspace.
func (s *LocalStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("%w: %s", models.ErrArtifactNotFound, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", models.ErrArtifactNotFound, name)
		}
		return fmt.Errorf("deleting file: %w", err)
	}
	return nil
}

// GetFilePath returns the absolute path to an existing file.
func (s *LocalStore) GetFilePath(name string) (string, error) {
	if _, err := s.Get(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}
