package manifest

import "strings"

// dedupNote marks entries demoted by URL deduplication. Sync recognizes the
// "needs unique url" phrase and clears stale URLs from completed rows.
const dedupNote = "Needs unique URL (deduped)."

// DedupOptions selects which duplicate survives and what happens to the rest.
type DedupOptions struct {
	// KeepLast keeps the last occurrence of each URL instead of the first.
	KeepLast bool
	// KeepURL preserves the URL on demoted duplicates instead of clearing it.
	KeepURL bool
}

// EntrySnapshot captures the mutable fields of an entry for change records.
type EntrySnapshot struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	URL    string `json:"url"`
	Notes  string `json:"notes"`
}

// DedupChange records one demotion performed by DedupeByURL.
type DedupChange struct {
	Name string        `json:"name"`
	From EntrySnapshot `json:"from"`
	To   EntrySnapshot `json:"to"`
}

// DuplicateGroup lists the entries sharing one URL.
type DuplicateGroup struct {
	URL            string   `json:"url"`
	KeepName       string   `json:"keep_name"`
	DuplicateNames []string `json:"duplicate_names"`
}

// DedupResult is the outcome of one deduplication pass.
type DedupResult struct {
	DuplicateGroups []DuplicateGroup `json:"duplicate_groups"`
	Changes         []DedupChange    `json:"changes"`
	Before          Counts           `json:"before"`
	After           Counts           `json:"after"`
}

func snapshot(e *Entry) EntrySnapshot {
	return EntrySnapshot{Name: e.Name, Status: e.Status, URL: e.URL, Notes: e.Notes}
}

func appendDedupNote(notes string) string {
	base := strings.TrimSpace(notes)
	if base == "" {
		return dedupNote
	}
	if strings.Contains(base, dedupNote) {
		return base
	}
	return base + " " + dedupNote
}

// DedupeByURL groups entries by URL and demotes every duplicate beyond the
// keeper to todo. The operation is idempotent: demotions that would change
// nothing produce no change records and the audit note is never duplicated.
func DedupeByURL(m *Manifest, opts DedupOptions) DedupResult {
	result := DedupResult{Before: CountEntries(m)}

	var order []string
	groups := make(map[string][]*Entry)
	for i := range m.Images {
		url := strings.TrimSpace(m.Images[i].URL)
		if url == "" {
			continue
		}
		if _, ok := groups[url]; !ok {
			order = append(order, url)
		}
		groups[url] = append(groups[url], &m.Images[i])
	}

	for _, url := range order {
		rows := groups[url]
		if len(rows) < 2 {
			continue
		}
		keeperPos := 0
		if opts.KeepLast {
			keeperPos = len(rows) - 1
		}

		group := DuplicateGroup{URL: url, KeepName: rows[keeperPos].Name}
		for pos, entry := range rows {
			if pos == keeperPos {
				continue
			}
			group.DuplicateNames = append(group.DuplicateNames, entry.Name)

			prev := snapshot(entry)
			entry.Status = StatusTodo
			if !opts.KeepURL {
				entry.URL = ""
			}
			entry.Notes = appendDedupNote(entry.Notes)

			next := snapshot(entry)
			if next != prev {
				result.Changes = append(result.Changes, DedupChange{Name: prev.Name, From: prev, To: next})
			}
		}
		result.DuplicateGroups = append(result.DuplicateGroups, group)
	}

	result.After = CountEntries(m)
	return result
}
