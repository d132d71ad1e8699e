// Package manifest owns the benchmark image manifest: entry lifecycle
// (ready/todo), URL deduplication, resolution into a local image cache, and
// reconciliation with externally completed labeling work. Every operation
// preserves the invariant that a ready entry carries a non-empty URL.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"repath/benchkit/internal/jsonio"
)

// Entry lifecycle states.
const (
	StatusReady = "ready"
	StatusTodo  = "todo"
)

// Entry is one benchmark sample. An entry with neither expected_any nor
// expected_all is a negative: the model must produce no detections for it.
type Entry struct {
	Name         string   `json:"name"`
	URL          string   `json:"url"`
	ExpectedAny  []string `json:"expected_any,omitempty"`
	ExpectedAll  []string `json:"expected_all,omitempty"`
	ItemID       string   `json:"item_id,omitempty"`
	Status       string   `json:"status"`
	Required     bool     `json:"required,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	SourceURL    string   `json:"source_url,omitempty"`
	ResolveError string   `json:"resolve_error,omitempty"`
}

// HasURL reports whether the entry carries a usable URL.
func (e *Entry) HasURL() bool {
	return strings.TrimSpace(e.URL) != ""
}

// IsNegative reports whether the entry expects zero detections.
func (e *Entry) IsNegative() bool {
	return len(CleanLabels(e.ExpectedAny)) == 0 && len(CleanLabels(e.ExpectedAll)) == 0
}

// SourceInfo records where a generated manifest came from.
type SourceInfo struct {
	Manifest        string   `json:"manifest,omitempty"`
	AppendManifests []string `json:"append_manifests,omitempty"`
	MissingAppends  []string `json:"missing_append_manifests,omitempty"`
	Completed       string   `json:"completed,omitempty"`
	CacheDir        string   `json:"cache_dir,omitempty"`
}

// Manifest is the canonical list of benchmark entries plus generator metadata.
type Manifest struct {
	Name        string      `json:"name,omitempty"`
	Version     string      `json:"version,omitempty"`
	GeneratedAt string      `json:"generated_at,omitempty"`
	Source      *SourceInfo `json:"source,omitempty"`
	Images      []Entry     `json:"images"`
}

// Load reads and validates a manifest file. A file without an images array is
// a structural input error and aborts the run.
func Load(path string) (*Manifest, error) {
	var m Manifest
	if err := jsonio.Read(path, &m); err != nil {
		return nil, err
	}
	if m.Images == nil {
		return nil, errors.New("manifest must be an object with an images array")
	}
	return &m, nil
}

// Save atomically rewrites the full manifest. The manifest is a snapshot
// artifact: each run reads everything, computes the next state, and replaces
// the file in one write.
func Save(path string, m *Manifest) error {
	if m == nil {
		return errors.New("nil manifest")
	}
	return jsonio.Write(path, m)
}

// Counts summarizes entry lifecycle state for reports.
type Counts struct {
	Total      int `json:"total"`
	Ready      int `json:"ready"`
	Todo       int `json:"todo"`
	WithURL    int `json:"with_url"`
	MissingURL int `json:"missing_url"`
}

// CountEntries tallies lifecycle state across the manifest.
func CountEntries(m *Manifest) Counts {
	c := Counts{Total: len(m.Images)}
	for i := range m.Images {
		entry := &m.Images[i]
		switch strings.ToLower(strings.TrimSpace(entry.Status)) {
		case StatusReady:
			c.Ready++
		case StatusTodo:
			c.Todo++
		}
		if entry.HasURL() {
			c.WithURL++
		} else {
			c.MissingURL++
		}
	}
	return c
}

// IndexByName groups entries by trimmed name. Names repeat when variants of
// the same sample coexist, so each name maps to every matching slot.
func IndexByName(m *Manifest) map[string][]*Entry {
	out := make(map[string][]*Entry)
	for i := range m.Images {
		name := strings.TrimSpace(m.Images[i].Name)
		if name == "" {
			continue
		}
		out[name] = append(out[name], &m.Images[i])
	}
	return out
}

// CheckReadyInvariant returns the names of entries violating
// status=ready => url non-empty. An empty result is the expected state after
// any manifest operation.
func CheckReadyInvariant(m *Manifest) []string {
	var bad []string
	for i := range m.Images {
		entry := &m.Images[i]
		if strings.EqualFold(strings.TrimSpace(entry.Status), StatusReady) && !entry.HasURL() {
			bad = append(bad, entry.Name)
		}
	}
	return bad
}

// NormalizeLabel applies NFKC normalization and trims whitespace.
func NormalizeLabel(label string) string {
	return strings.TrimSpace(norm.NFKC.String(label))
}

// CleanLabels normalizes a label list, dropping empties while preserving order.
func CleanLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		label = NormalizeLabel(label)
		if label == "" {
			continue
		}
		out = append(out, label)
	}
	return out
}

// SortedLabels returns the cleaned labels in ascending order. Used wherever a
// label set participates in a comparison key.
func SortedLabels(labels []string) []string {
	out := CleanLabels(labels)
	sort.Strings(out)
	return out
}

// signatureKey is the canonical identity of an entry for exact-duplicate
// removal: name, url, status and both expected sets, order-independent.
func signatureKey(e *Entry) string {
	payload := struct {
		Name        string   `json:"name"`
		URL         string   `json:"url"`
		Status      string   `json:"status"`
		ExpectedAny []string `json:"expected_any"`
		ExpectedAll []string `json:"expected_all"`
	}{
		Name:        strings.TrimSpace(e.Name),
		URL:         strings.TrimSpace(e.URL),
		Status:      strings.TrimSpace(e.Status),
		ExpectedAny: SortedLabels(e.ExpectedAny),
		ExpectedAll: SortedLabels(e.ExpectedAll),
	}
	key, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(key)
}

// RemoveExactDuplicates drops entries whose full content signature repeats,
// keeping the first occurrence. Returns how many rows were removed.
func RemoveExactDuplicates(m *Manifest) int {
	seen := make(map[string]struct{})
	kept := m.Images[:0]
	removed := 0
	for i := range m.Images {
		key := signatureKey(&m.Images[i])
		if _, ok := seen[key]; ok {
			removed++
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, m.Images[i])
	}
	m.Images = kept
	return removed
}
