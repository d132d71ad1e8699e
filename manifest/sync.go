package manifest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"repath/benchkit/internal/jsonio"
)

// completedNote stamps entries confirmed by completed labeling work.
const completedNote = "Completed."

// CompletedRow is one row of externally completed labeling work.
type CompletedRow struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Notes string `json:"notes"`
}

// needsUniqueURL reports whether the completed row carries the dedup marker
// asking for its stored URL to be cleared.
func (r CompletedRow) needsUniqueURL() bool {
	return strings.Contains(strings.ToLower(r.Notes), "needs unique url")
}

// LoadCompletedRows reads completed work from a JSON array or a CSV file
// (columns name, url and the sixth notes column, header optional).
func LoadCompletedRows(path string) ([]CompletedRow, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var raw []CompletedRow
		if err := jsonio.Read(path, &raw); err != nil {
			return nil, err
		}
		out := make([]CompletedRow, 0, len(raw))
		for _, row := range raw {
			name := strings.TrimSpace(row.Name)
			if name == "" {
				continue
			}
			out = append(out, CompletedRow{
				Name:  name,
				URL:   strings.TrimSpace(row.URL),
				Notes: strings.TrimSpace(row.Notes),
			})
		}
		return out, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open completed file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read completed file: %w", err)
	}

	var out []CompletedRow
	for i, cols := range records {
		if len(cols) == 0 {
			continue
		}
		name := strings.TrimSpace(cols[0])
		if name == "" {
			continue
		}
		if i == 0 && strings.Contains(strings.ToLower(strings.Join(cols, ",")), "name") {
			continue
		}
		row := CompletedRow{Name: name}
		if len(cols) > 1 {
			row.URL = strings.TrimSpace(cols[1])
		}
		if len(cols) > 5 {
			row.Notes = strings.TrimSpace(cols[5])
		}
		out = append(out, row)
	}
	return out, nil
}

// SyncChange records one field mutation applied during a sync pass.
type SyncChange struct {
	Type string `json:"type"`
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`
}

// SyncResult is the outcome of reconciling completed work into the manifest.
type SyncResult struct {
	CompletedRowsApplied  int          `json:"completed_rows_applied"`
	UnknownCompletedNames []string     `json:"unknown_completed_names"`
	SkippedMissingURL     []string     `json:"skipped_missing_url_names"`
	Changes               []SyncChange `json:"changes"`
	Counts                Counts       `json:"counts"`
}

// SyncCompleted applies completed labeling rows to the manifest. A non-empty
// completed URL overwrites a differing stored URL; an empty completed URL
// clears the stored one only when clearEmptyURL is set or the row carries the
// "needs unique url" marker. Entries that end up with a URL are promoted to
// ready and locked for this run; ready entries without a URL that were not
// locked are demoted back to todo. Repeating a run with the same rows is a
// no-op: no new change records, no duplicated notes.
func SyncCompleted(m *Manifest, rows []CompletedRow, clearEmptyURL bool) SyncResult {
	result := SyncResult{CompletedRowsApplied: len(rows)}

	byName := IndexByName(m)
	locked := make(map[string]struct{})

	for _, row := range rows {
		slots := byName[row.Name]
		if len(slots) == 0 {
			result.UnknownCompletedNames = append(result.UnknownCompletedNames, row.Name)
			continue
		}

		for _, entry := range slots {
			prevStatus := strings.ToLower(strings.TrimSpace(entry.Status))
			nextURL := strings.TrimSpace(row.URL)
			currentURL := strings.TrimSpace(entry.URL)

			if nextURL != "" && currentURL != nextURL {
				entry.URL = nextURL
				result.Changes = append(result.Changes, SyncChange{Type: "url", Name: row.Name, From: currentURL, To: nextURL})
			} else if nextURL == "" && currentURL != "" && (clearEmptyURL || row.needsUniqueURL()) {
				entry.URL = ""
				result.Changes = append(result.Changes, SyncChange{Type: "url", Name: row.Name, From: currentURL, To: ""})
			}

			if !entry.HasURL() {
				result.SkippedMissingURL = append(result.SkippedMissingURL, row.Name)
				continue
			}

			if prevStatus != StatusReady {
				entry.Status = StatusReady
				result.Changes = append(result.Changes, SyncChange{Type: "status", Name: row.Name, From: prevStatus, To: StatusReady})
			}
			locked[row.Name] = struct{}{}

			if !strings.Contains(strings.ToLower(entry.Notes), strings.ToLower(completedNote)) {
				note := strings.TrimSpace(entry.Notes)
				if note == "" {
					entry.Notes = completedNote
				} else {
					entry.Notes = note + " " + completedNote
				}
			}
		}
	}

	// Generic reconciliation: URL presence decides the status of every entry
	// not explicitly locked by a completed row this run.
	for i := range m.Images {
		entry := &m.Images[i]
		status := strings.ToLower(strings.TrimSpace(entry.Status))
		name := strings.TrimSpace(entry.Name)

		if entry.HasURL() && status != StatusReady {
			entry.Status = StatusReady
			result.Changes = append(result.Changes, SyncChange{Type: "status", Name: entry.Name, From: status, To: StatusReady})
			continue
		}
		if !entry.HasURL() && status == StatusReady {
			if _, ok := locked[name]; ok {
				continue
			}
			entry.Status = StatusTodo
			result.Changes = append(result.Changes, SyncChange{Type: "status", Name: entry.Name, From: StatusReady, To: StatusTodo})
		}
	}

	result.Counts = CountEntries(m)
	return result
}
