// Package ingest persists uploaded input artifacts into a run workspace.
package ingest

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/storage"
)

// Artifact is a named byte stream uploaded by a client.
type Artifact struct {
	// Field is the form field the artifact arrived in; used in errors only.
	Field string
	Name  string
	Body  io.Reader
}

// Ingest writes the artifact into the store under its exact name, replacing
// any file of the same name, and returns the resulting path. Content is not
// inspected.
func Ingest(store storage.Store, a Artifact) (string, error) {
	if err := storage.ValidateName(a.Name); err != nil {
		return "", describe(a, err)
	}
	if a.Body == nil {
		return "", fmt.Errorf("%w: %s has no content stream", models.ErrInvalidArtifact, label(a))
	}
	if _, err := store.Save(a.Name, a.Body); err != nil {
		return "", fmt.Errorf("saving %s: %w", label(a), err)
	}
	return filepath.Join(store.Root(), a.Name), nil
}

// Validate checks every artifact without writing anything.
func Validate(artifacts ...Artifact) error {
	for _, a := range artifacts {
		if err := storage.ValidateName(a.Name); err != nil {
			return describe(a, err)
		}
		if a.Body == nil {
			return fmt.Errorf("%w: %s has no content stream", models.ErrInvalidArtifact, label(a))
		}
	}
	return nil
}

// All validates every artifact before writing any of them, so a bad name
// leaves the workspace untouched. Paths are returned in input order.
func All(store storage.Store, artifacts ...Artifact) ([]string, error) {
	if err := Validate(artifacts...); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		p, err := Ingest(store, a)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// Names returns the artifact names, the set WorkspaceDiff excludes.
func Names(artifacts ...Artifact) []string {
	names := make([]string, len(artifacts))
	for i, a := range artifacts {
		names[i] = a.Name
	}
	return names
}

func label(a Artifact) string {
	if a.Field != "" {
		return a.Field
	}
	return fmt.Sprintf("%q", a.Name)
}

func describe(a Artifact, err error) error {
	if a.Field == "" {
		return err
	}
	return fmt.Errorf("%s: %w", a.Field, err)
}
