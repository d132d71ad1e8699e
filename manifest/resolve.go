package manifest

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var (
	httpURLPattern = regexp.MustCompile(`(?i)^https?://`)
	fileURLPattern = regexp.MustCompile(`(?i)^file://`)
	extPattern     = regexp.MustCompile(`\.([a-zA-Z0-9]{2,6})(?:[?#].*)?$`)
	nonAlnum       = regexp.MustCompile(`[^a-z0-9]+`)
)

// IsHTTPURL reports whether value is an http(s) URL.
func IsHTTPURL(value string) bool { return httpURLPattern.MatchString(value) }

// IsFileURL reports whether value is a file:// URL.
func IsFileURL(value string) bool { return fileURLPattern.MatchString(value) }

// SanitizeName lowers the name and collapses every non-alphanumeric run to a
// single dash, capped at 120 characters, for cache file naming.
func SanitizeName(value string) string {
	text := nonAlnum.ReplaceAllString(strings.ToLower(value), "-")
	text = strings.Trim(text, "-")
	if len(text) > 120 {
		text = text[:120]
	}
	return text
}

// ExtensionFromURL infers a file extension from the URL path, defaulting to
// .jpg when none is recognizable.
func ExtensionFromURL(value string) string {
	match := extPattern.FindStringSubmatch(value)
	if match == nil {
		return ".jpg"
	}
	return "." + strings.ToLower(match[1])
}

// Resolver fetches manifest entry sources into a local image cache. Downloads
// are sequential with bounded retries; existing cache files are never
// re-fetched, so repeated runs are cheap and idempotent.
type Resolver struct {
	CacheDir         string
	Client           *http.Client
	Retries          int
	RetryDelay       time.Duration
	DisableDownload  bool
	DisableCopyLocal bool
	Logger           *log.Logger
}

// CachePath derives the content-addressed cache location for an entry.
func (r *Resolver) CachePath(name, sourceURL string) string {
	base := SanitizeName(name)
	if base == "" {
		base = "sample"
	}
	return filepath.Join(r.CacheDir, base+ExtensionFromURL(sourceURL))
}

func (r *Resolver) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return &http.Client{Timeout: 90 * time.Second}
}

func (r *Resolver) retries() int {
	if r.Retries > 0 {
		return r.Retries
	}
	return 3
}

func (r *Resolver) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

// download fetches url into outFile with bounded retries and linear backoff.
func (r *Resolver) download(ctx context.Context, rawURL, outFile string) error {
	if err := os.MkdirAll(filepath.Dir(outFile), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	delay := r.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= r.retries(); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = r.downloadOnce(ctx, rawURL, outFile)
		if lastErr == nil {
			return nil
		}
		r.logf("download attempt %d/%d failed for %s: %v", attempt, r.retries(), rawURL, lastErr)
		if attempt < r.retries() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * delay):
			}
		}
	}
	return lastErr
}

func (r *Resolver) downloadOnce(ctx context.Context, rawURL, outFile string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	tmp := outFile + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, outFile)
}

func copyLocal(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

// localPathFromURL maps file:// URLs and plain paths to a filesystem path.
// HTTP URLs return empty.
func localPathFromURL(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" || IsHTTPURL(value) {
		return ""
	}
	if IsFileURL(value) {
		parsed, err := url.Parse(value)
		if err != nil {
			return ""
		}
		return filepath.FromSlash(parsed.Path)
	}
	return value
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ResolvePath resolves one (name, url) pair to a local image path without
// mutating any manifest entry. Remote URLs are downloaded into the cache on
// first use; file:// URLs and plain paths resolve directly.
func (r *Resolver) ResolvePath(ctx context.Context, name, rawURL string) (string, error) {
	value := strings.TrimSpace(rawURL)
	if value == "" {
		return "", fmt.Errorf("entry %q has no url", name)
	}
	if IsHTTPURL(value) {
		cached := r.CachePath(name, value)
		if !fileExists(cached) {
			if r.DisableDownload {
				return "", fmt.Errorf("download disabled for %q", name)
			}
			if err := r.download(ctx, value, cached); err != nil {
				return "", fmt.Errorf("download %q: %w", name, err)
			}
		}
		return cached, nil
	}
	local := localPathFromURL(value)
	if local == "" || !fileExists(local) {
		return "", fmt.Errorf("local image not found for %q: %s", name, value)
	}
	return local, nil
}

// ResolveResult summarizes a full-manifest resolution pass.
type ResolveResult struct {
	Resolved         int `json:"resolved"`
	Unresolved       int `json:"unresolved"`
	Downloaded       int `json:"downloaded"`
	CopiedLocal      int `json:"copied_local"`
	DedupedExactRows int `json:"deduped_exact_rows"`
}

func failEntry(entry *Entry, reason string) {
	entry.URL = ""
	entry.Status = StatusTodo
	entry.ResolveError = reason
}

// ResolveAll resolves every entry's source into the cache and rewrites the
// entry's url/status in place. completed maps entry names to URL overrides
// from finished labeling work and wins over the stored URL. Exact duplicate
// rows produced by merged manifests are removed afterwards.
func (r *Resolver) ResolveAll(ctx context.Context, m *Manifest, completed map[string]string) ResolveResult {
	var result ResolveResult

	for i := range m.Images {
		entry := &m.Images[i]
		name := strings.TrimSpace(entry.Name)

		source := strings.TrimSpace(entry.URL)
		if override, ok := completed[name]; ok && strings.TrimSpace(override) != "" {
			source = strings.TrimSpace(override)
		}
		entry.SourceURL = source
		entry.ResolveError = ""

		if source == "" {
			entry.URL = ""
			entry.Status = StatusTodo
			continue
		}

		if IsHTTPURL(source) {
			cached := r.CachePath(name, source)
			if !fileExists(cached) {
				if r.DisableDownload {
					failEntry(entry, "download_disabled")
					continue
				}
				if err := r.download(ctx, source, cached); err != nil {
					failEntry(entry, fmt.Sprintf("download_failed: %v", err))
					continue
				}
				result.Downloaded++
			}
			entry.URL = filepath.ToSlash(cached)
			entry.Status = StatusReady
			continue
		}

		local := localPathFromURL(source)
		if local == "" || !fileExists(local) {
			failEntry(entry, "local_not_found")
			continue
		}

		if r.DisableCopyLocal {
			entry.URL = filepath.ToSlash(local)
		} else {
			cached := r.CachePath(name, local)
			if !fileExists(cached) {
				if err := copyLocal(local, cached); err != nil {
					failEntry(entry, fmt.Sprintf("copy_failed: %v", err))
					continue
				}
				result.CopiedLocal++
			}
			entry.URL = filepath.ToSlash(cached)
		}
		entry.Status = StatusReady
	}

	result.DedupedExactRows = RemoveExactDuplicates(m)

	for i := range m.Images {
		status := strings.ToLower(strings.TrimSpace(m.Images[i].Status))
		if status == StatusReady {
			result.Resolved++
		} else {
			result.Unresolved++
		}
	}
	return result
}

// LoadCompletedURLMap reads a completed-work CSV and returns name to URL
// overrides for rows that carry both. A missing file yields an empty map.
func LoadCompletedURLMap(path string) (map[string]string, error) {
	out := make(map[string]string)
	if !fileExists(path) {
		return out, nil
	}
	rows, err := LoadCompletedRows(path)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.Name != "" && row.URL != "" {
			out[row.Name] = row.URL
		}
	}
	return out, nil
}

// AppendImages merges the images of additional manifest files into m,
// returning which paths loaded and which were missing.
func AppendImages(m *Manifest, paths []string) (loaded, missing []string, err error) {
	for _, path := range paths {
		if !fileExists(path) {
			missing = append(missing, path)
			continue
		}
		extra, loadErr := Load(path)
		if loadErr != nil {
			return loaded, missing, fmt.Errorf("append manifest %s: %w", path, loadErr)
		}
		m.Images = append(m.Images, extra.Images...)
		loaded = append(loaded, path)
	}
	return loaded, missing, nil
}
