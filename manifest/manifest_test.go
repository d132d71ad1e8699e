package manifest

import (
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadRejectsManifestWithoutImages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(path, []byte(`{"name":"bench"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted a manifest without an images array")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	m := &Manifest{
		Name: "bench",
		Images: []Entry{
			{Name: "cup-1", URL: "cache/cup-1.jpg", ExpectedAny: []string{"cup"}, Status: StatusReady},
			{Name: "todo-1", Status: StatusTodo},
		},
	}
	if err := Save(path, m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Images, m.Images) {
		t.Errorf("round trip changed images: %+v", loaded.Images)
	}
}

func TestCleanLabels(t *testing.T) {
	got := CleanLabels([]string{"  cup ", "", "ｂｏｔｔｌｅ"})
	want := []string{"cup", "bottle"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CleanLabels = %v, want %v", got, want)
	}
}

func TestRemoveExactDuplicates(t *testing.T) {
	m := &Manifest{Images: []Entry{
		{Name: "a", URL: "u1", ExpectedAny: []string{"cup", "bottle"}, Status: StatusReady},
		{Name: "a", URL: "u1", ExpectedAny: []string{"bottle", "cup"}, Status: StatusReady},
		{Name: "a", URL: "u2", ExpectedAny: []string{"cup"}, Status: StatusReady},
	}}
	if removed := RemoveExactDuplicates(m); removed != 1 {
		t.Fatalf("removed = %d, want 1 (label order must not matter)", removed)
	}
	if len(m.Images) != 2 {
		t.Errorf("kept %d entries, want 2", len(m.Images))
	}
}

func TestCountEntries(t *testing.T) {
	m := &Manifest{Images: []Entry{
		{Name: "a", URL: "u", Status: StatusReady},
		{Name: "b", Status: StatusTodo},
		{Name: "c", URL: "u2", Status: StatusTodo},
	}}
	c := CountEntries(m)
	want := Counts{Total: 3, Ready: 1, Todo: 2, WithURL: 2, MissingURL: 1}
	if c != want {
		t.Errorf("CountEntries = %+v, want %+v", c, want)
	}
}

// Operations must leave ready entries with a URL no matter the entry mix.
func TestOperationsPreserveReadyInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 50; trial++ {
		m := &Manifest{}
		for i := 0; i < 20; i++ {
			entry := Entry{Name: randomName(rng)}
			if rng.Intn(2) == 0 {
				entry.URL = randomName(rng)
			}
			if entry.URL != "" && rng.Intn(3) > 0 {
				entry.Status = StatusReady
			} else {
				entry.Status = StatusTodo
			}
			m.Images = append(m.Images, entry)
		}

		DedupeByURL(m, DedupOptions{KeepLast: rng.Intn(2) == 0})
		if bad := CheckReadyInvariant(m); len(bad) > 0 {
			t.Fatalf("trial %d: dedupe broke ready invariant for %v", trial, bad)
		}

		var rows []CompletedRow
		for i := 0; i < 5; i++ {
			rows = append(rows, CompletedRow{Name: randomName(rng), URL: randomName(rng)})
		}
		SyncCompleted(m, rows, rng.Intn(2) == 0)
		if bad := CheckReadyInvariant(m); len(bad) > 0 {
			t.Fatalf("trial %d: sync broke ready invariant for %v", trial, bad)
		}
	}
}

func randomName(rng *rand.Rand) string {
	names := []string{"cup-1", "cup-2", "bottle-1", "bag-1", "can-1", "jar-1", "box-1", "lid-1"}
	return names[rng.Intn(len(names))]
}
