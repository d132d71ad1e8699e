package manifest

import (
	"reflect"
	"strings"
	"testing"
)

func dupManifest() *Manifest {
	return &Manifest{Images: []Entry{
		{Name: "first", URL: "http://example.com/a.jpg", Status: StatusReady},
		{Name: "second", URL: "http://example.com/a.jpg", Status: StatusReady},
		{Name: "third", URL: "http://example.com/b.jpg", Status: StatusReady},
	}}
}

func TestDedupeByURLKeepFirst(t *testing.T) {
	m := dupManifest()
	result := DedupeByURL(m, DedupOptions{})

	if len(result.DuplicateGroups) != 1 {
		t.Fatalf("duplicate groups = %d, want 1", len(result.DuplicateGroups))
	}
	group := result.DuplicateGroups[0]
	if group.KeepName != "first" || !reflect.DeepEqual(group.DuplicateNames, []string{"second"}) {
		t.Errorf("group = %+v", group)
	}

	demoted := m.Images[1]
	if demoted.Status != StatusTodo || demoted.URL != "" {
		t.Errorf("demoted entry = %+v, want todo with cleared url", demoted)
	}
	if !strings.Contains(demoted.Notes, "Needs unique URL") {
		t.Errorf("demoted notes = %q, want dedup marker", demoted.Notes)
	}
	if m.Images[0].Status != StatusReady || m.Images[2].Status != StatusReady {
		t.Error("keeper or unrelated entry was touched")
	}
	if result.Before.Ready != 3 || result.After.Ready != 2 {
		t.Errorf("counts before/after = %+v / %+v", result.Before, result.After)
	}
}

func TestDedupeByURLKeepLast(t *testing.T) {
	m := dupManifest()
	result := DedupeByURL(m, DedupOptions{KeepLast: true})
	if got := result.DuplicateGroups[0].KeepName; got != "second" {
		t.Errorf("keep name = %q, want second", got)
	}
	if m.Images[0].Status != StatusTodo {
		t.Error("first occurrence should be demoted with keep-last")
	}
}

func TestDedupeByURLKeepURL(t *testing.T) {
	m := dupManifest()
	DedupeByURL(m, DedupOptions{KeepURL: true})
	if m.Images[1].URL == "" {
		t.Error("keep-url should preserve the demoted entry's URL")
	}
	if m.Images[1].Status != StatusTodo {
		t.Error("demoted entry should still move to todo")
	}
}

func TestDedupeByURLIdempotent(t *testing.T) {
	m := dupManifest()
	first := DedupeByURL(m, DedupOptions{})
	if len(first.Changes) != 1 {
		t.Fatalf("first pass changes = %d, want 1", len(first.Changes))
	}
	notes := m.Images[1].Notes

	second := DedupeByURL(m, DedupOptions{})
	if len(second.Changes) != 0 {
		t.Errorf("second pass changes = %d, want 0", len(second.Changes))
	}
	if m.Images[1].Notes != notes {
		t.Errorf("second pass altered notes: %q -> %q", notes, m.Images[1].Notes)
	}
}
