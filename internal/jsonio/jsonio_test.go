package jsonio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	in := map[string]int{"rows": 3}
	if err := Write(path, in); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("output missing trailing newline")
	}
	if !strings.Contains(string(data), "  \"rows\": 3") {
		t.Errorf("output not two-space indented: %q", data)
	}

	var out map[string]int
	if err := Read(path, &out); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out["rows"] != 3 {
		t.Errorf("round trip = %v", out)
	}
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")
	if err := Write(path, struct{}{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}
