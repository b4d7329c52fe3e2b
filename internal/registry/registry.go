// Package registry tracks which documents have been fully ingested.
package registry

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
)

// Registry is the set of document names known to be processed. It only
// grows; re-ingesting a document requires editing the backing file by hand.
type Registry struct {
	names map[string]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Load reads a registry from path. A missing or empty file yields an empty
// registry. A corrupt file also yields an empty registry with a logged
// warning: losing the registry only causes reprocessing, never data loss.
func Load(path string) (*Registry, error) {
	r := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return r, nil
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		slog.Warn("registry file is corrupt, starting empty", "path", path, "err", err)
		return r, nil
	}
	for _, n := range names {
		r.names[n] = struct{}{}
	}
	return r, nil
}

// Save writes the registry to path as a sorted JSON array. Sorting keeps
// the serialization deterministic for stable diffs.
func (r *Registry) Save(path string) error {
	names := make([]string, 0, len(r.names))
	for n := range r.names {
		names = append(names, n)
	}
	sort.Strings(names)

	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Contains reports whether the document name is registered.
func (r *Registry) Contains(name string) bool {
	_, ok := r.names[name]
	return ok
}

// Add registers a document name.
func (r *Registry) Add(name string) {
	r.names[name] = struct{}{}
}

// Len returns the number of registered documents.
func (r *Registry) Len() int { return len(r.names) }
