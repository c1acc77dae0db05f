// Package wsdiff finds the files an optimizer run added to its workspace.
package wsdiff

import (
	"fmt"
	"os"
	"sort"

	"github.com/microgrid-sizing/backend/internal/storage"
)

// Set is a set of file names.
type Set map[string]struct{}

// NewSet builds a set from names.
func NewSet(names ...string) Set {
	s := make(Set, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether name is in the set.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Snapshot returns the names of the regular files directly inside dir.
// Staging files of in-progress writes are left out.
func Snapshot(dir string) (Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", dir, err)
	}
	s := make(Set, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && !storage.IsStaging(e.Name()) {
			s[e.Name()] = struct{}{}
		}
	}
	return s, nil
}

// NewOutputs returns the names in post that are not input names, sorted.
// An output written under an input's name is not reported.
func NewOutputs(post Set, inputs ...string) []string {
	skip := NewSet(inputs...)
	out := make([]string, 0, len(post))
	for name := range post {
		if !skip.Has(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Missing returns the manifest entries absent from reports, in manifest
// order.
func Missing(manifest, reports []string) []string {
	have := NewSet(reports...)
	var missing []string
	for _, m := range manifest {
		if !have.Has(m) {
			missing = append(missing, m)
		}
	}
	return missing
}
