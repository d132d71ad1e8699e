package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plastic Bottle #1", "plastic-bottle-1"},
		{"  spaced  out  ", "spaced-out"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtensionFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://example.com/a.PNG", ".png"},
		{"http://example.com/a.jpg?x=1#frag", ".jpg"},
		{"http://example.com/no-extension", ".jpg"},
		{"http://example.com/a.webp", ".webp"},
	}
	for _, tt := range tests {
		if got := ExtensionFromURL(tt.in); got != tt.want {
			t.Errorf("ExtensionFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveAllDownloadsOnceAndCaches(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	resolver := &Resolver{CacheDir: cacheDir, Retries: 1, RetryDelay: time.Millisecond}

	m := &Manifest{Images: []Entry{
		{Name: "cup-1", URL: server.URL + "/cup.jpg", Status: StatusTodo},
	}}

	result := resolver.ResolveAll(context.Background(), m, nil)
	if result.Resolved != 1 || result.Downloaded != 1 {
		t.Fatalf("result = %+v", result)
	}
	entry := m.Images[0]
	if entry.Status != StatusReady || entry.SourceURL != server.URL+"/cup.jpg" {
		t.Errorf("entry = %+v", entry)
	}
	if _, err := os.Stat(filepath.FromSlash(entry.URL)); err != nil {
		t.Errorf("cached file missing: %v", err)
	}

	// Second pass hits the cache, not the server.
	resolver.ResolveAll(context.Background(), m, nil)
	if hits.Load() != 1 {
		t.Errorf("server hits = %d, want 1", hits.Load())
	}
}

func TestResolveAllRecordsDownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	resolver := &Resolver{CacheDir: t.TempDir(), Retries: 2, RetryDelay: time.Millisecond}
	m := &Manifest{Images: []Entry{
		{Name: "gone", URL: server.URL + "/gone.jpg", Status: StatusReady},
	}}

	result := resolver.ResolveAll(context.Background(), m, nil)
	if result.Unresolved != 1 {
		t.Fatalf("result = %+v", result)
	}
	entry := m.Images[0]
	if entry.Status != StatusTodo || entry.URL != "" {
		t.Errorf("entry = %+v, want demoted with cleared url", entry)
	}
	if entry.ResolveError == "" {
		t.Error("resolve_error not recorded")
	}
}

func TestResolveAllDisableDownload(t *testing.T) {
	resolver := &Resolver{CacheDir: t.TempDir(), DisableDownload: true}
	m := &Manifest{Images: []Entry{
		{Name: "remote", URL: "http://example.invalid/a.jpg", Status: StatusReady},
	}}
	resolver.ResolveAll(context.Background(), m, nil)
	if got := m.Images[0].ResolveError; got != "download_disabled" {
		t.Errorf("resolve_error = %q, want download_disabled", got)
	}
}

func TestResolveAllCopiesLocalFiles(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "local.jpg")
	if err := os.WriteFile(src, []byte("local-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	cacheDir := filepath.Join(dir, "cache")
	resolver := &Resolver{CacheDir: cacheDir}
	m := &Manifest{Images: []Entry{
		{Name: "local-1", URL: src, Status: StatusTodo},
		{Name: "missing-1", URL: filepath.Join(dir, "nope.jpg"), Status: StatusTodo},
	}}

	result := resolver.ResolveAll(context.Background(), m, nil)
	if result.CopiedLocal != 1 || result.Resolved != 1 || result.Unresolved != 1 {
		t.Fatalf("result = %+v", result)
	}
	if m.Images[0].Status != StatusReady {
		t.Errorf("local entry = %+v", m.Images[0])
	}
	if got := m.Images[1].ResolveError; got != "local_not_found" {
		t.Errorf("missing entry resolve_error = %q", got)
	}
}

func TestResolveAllCompletedOverrideWins(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("override-bytes"))
	}))
	defer server.Close()

	resolver := &Resolver{CacheDir: t.TempDir(), Retries: 1, RetryDelay: time.Millisecond}
	m := &Manifest{Images: []Entry{
		{Name: "cup-1", URL: "http://stale.invalid/old.jpg", Status: StatusTodo},
	}}

	resolver.ResolveAll(context.Background(), m, map[string]string{
		"cup-1": server.URL + "/new.jpg",
	})
	if got := m.Images[0].SourceURL; got != server.URL+"/new.jpg" {
		t.Errorf("source_url = %q, want completed override", got)
	}
	if m.Images[0].Status != StatusReady {
		t.Errorf("entry = %+v", m.Images[0])
	}
}

func TestResolvePathSharedWithEvaluation(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "img.png")
	if err := os.WriteFile(src, []byte("png-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	resolver := &Resolver{CacheDir: filepath.Join(dir, "cache")}
	path, err := resolver.ResolvePath(context.Background(), "img-1", src)
	if err != nil {
		t.Fatalf("ResolvePath: %v", err)
	}
	if path != src {
		t.Errorf("path = %q, want direct local path", path)
	}

	if _, err := resolver.ResolvePath(context.Background(), "none", ""); err == nil {
		t.Error("ResolvePath accepted an empty url")
	}
}
