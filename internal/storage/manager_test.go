// manager_test.go - Tests for the workspace file store
package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/microgrid-sizing/backend/internal/models"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates workspace directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "tmp_uploads")

		store, err := NewLocalStore(dir)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		if store.Root() != dir {
			t.Errorf("Expected root %s, got %s", dir, store.Root())
		}
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Error("Expected workspace directory to be created")
		}
	})
}

func TestLocalStore_Save(t *testing.T) {
	t.Run("saves file under its exact name", func(t *testing.T) {
		store := createTestStore(t)

		content := "t,demand\n0,10\n"
		info, err := store.Save("demand.csv", strings.NewReader(content))
		if err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if info.Name != "demand.csv" {
			t.Errorf("Expected name 'demand.csv', got %v", info.Name)
		}
		if info.Size != int64(len(content)) {
			t.Errorf("Expected size %d, got %d", len(content), info.Size)
		}

		data, err := os.ReadFile(filepath.Join(store.Root(), "demand.csv"))
		if err != nil {
			t.Fatalf("Failed to read saved file: %v", err)
		}
		if string(data) != content {
			t.Errorf("Expected content %q, got %q", content, string(data))
		}
	})

	t.Run("last write wins", func(t *testing.T) {
		store := createTestStore(t)

		if _, err := store.Save("instance.json", strings.NewReader("first")); err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}
		if _, err := store.SaveBytes("instance.json", []byte("second")); err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		data, _ := os.ReadFile(filepath.Join(store.Root(), "instance.json"))
		if string(data) != "second" {
			t.Errorf("Expected overwritten content, got %q", string(data))
		}
		files, _ := store.List()
		if len(files) != 1 {
			t.Errorf("Expected 1 file after overwrite, got %d", len(files))
		}
	})

	t.Run("saves empty file", func(t *testing.T) {
		store := createTestStore(t)

		info, err := store.Save("empty.txt", strings.NewReader(""))
		if err != nil {
			t.Fatalf("Failed to save empty file: %v", err)
		}
		if info.Size != 0 {
			t.Errorf("Expected size 0, got %d", info.Size)
		}
	})

	t.Run("rejects invalid names", func(t *testing.T) {
		store := createTestStore(t)

		for _, name := range []string{"", "   ", "..", "../escape.csv", "dir/file.csv", `dir\file.csv`} {
			_, err := store.Save(name, strings.NewReader("x"))
			if !errors.Is(err, models.ErrInvalidArtifact) {
				t.Errorf("name %q: expected ErrInvalidArtifact, got %v", name, err)
			}
		}
		files, _ := store.List()
		if len(files) != 0 {
			t.Errorf("Expected no files written, got %d", len(files))
		}
	})
}

func TestLocalStore_Get(t *testing.T) {
	t.Run("gets existing file", func(t *testing.T) {
		store := createTestStore(t)
		if _, err := store.SaveBytes("report.xlsx", []byte("xx")); err != nil {
			t.Fatalf("Failed to save file: %v", err)
		}

		info, err := store.Get("report.xlsx")
		if err != nil {
			t.Fatalf("Failed to get file: %v", err)
		}
		if info.Size != 2 {
			t.Errorf("Expected size 2, got %d", info.Size)
		}
	})

	t.Run("returns not found for missing file", func(t *testing.T) {
		store := createTestStore(t)

		_, err := store.Get("missing.png")
		if !errors.Is(err, models.ErrArtifactNotFound) {
			t.Errorf("Expected ErrArtifactNotFound, got %v", err)
		}
	})

	t.Run("returns not found for directories and traversal", func(t *testing.T) {
		store := createTestStore(t)
		os.Mkdir(filepath.Join(store.Root(), "sub"), 0755)

		for _, name := range []string{"sub", "../secret"} {
			if _, err := store.Get(name); !errors.Is(err, models.ErrArtifactNotFound) {
				t.Errorf("name %q: expected ErrArtifactNotFound, got %v", name, err)
			}
		}
	})
}

func TestLocalStore_List(t *testing.T) {
	t.Run("lists files sorted by name", func(t *testing.T) {
		store := createTestStore(t)
		for _, name := range []string{"c.xlsx", "a.csv", "b.html"} {
			if _, err := store.SaveBytes(name, []byte(name)); err != nil {
				t.Fatalf("Failed to save file: %v", err)
			}
		}
		os.Mkdir(filepath.Join(store.Root(), "nested"), 0755)

		files, err := store.List()
		if err != nil {
			t.Fatalf("Failed to list files: %v", err)
		}
		got := make([]string, len(files))
		for i, f := range files {
			got[i] = f.Name
		}
		want := []string{"a.csv", "b.html", "c.xlsx"}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("Expected %v, got %v", want, got)
		}
	})

	t.Run("skips staging files", func(t *testing.T) {
		store := createTestStore(t)
		os.WriteFile(filepath.Join(store.Root(), ".upload-123"), []byte("partial"), 0644)

		files, err := store.List()
		if err != nil {
			t.Fatalf("Failed to list files: %v", err)
		}
		if len(files) != 0 {
			t.Errorf("Expected staging files to be hidden, got %d files", len(files))
		}
	})
}

func TestLocalStore_Delete(t *testing.T) {
	t.Run("deletes existing file", func(t *testing.T) {
		store := createTestStore(t)
		store.SaveBytes("gone.txt", []byte("x"))

		if err := store.Delete("gone.txt"); err != nil {
			t.Fatalf("Failed to delete file: %v", err)
		}
		if _, err := store.Get("gone.txt"); !errors.Is(err, models.ErrArtifactNotFound) {
			t.Error("Expected file to be gone")
		}
	})

	t.Run("returns not found for missing file", func(t *testing.T) {
		store := createTestStore(t)
		if err := store.Delete("nope.txt"); !errors.Is(err, models.ErrArtifactNotFound) {
			t.Errorf("Expected ErrArtifactNotFound, got %v", err)
		}
	})
}

func TestLocalStore_GetFilePath(t *testing.T) {
	store := createTestStore(t)
	store.SaveBytes("plot.html", []byte("<html/>"))

	path, err := store.GetFilePath("plot.html")
	if err != nil {
		t.Fatalf("Failed to get path: %v", err)
	}
	if path != filepath.Join(store.Root(), "plot.html") {
		t.Errorf("Unexpected path %s", path)
	}

	if _, err := store.GetFilePath("absent.html"); err == nil {
		t.Error("Expected error for absent file")
	}
}
