// Package queue turns ranked priority candidates into labeling batches and a
// retraining sample queue.
package queue

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"repath/benchkit/manifest"
	"repath/benchkit/priority"
)

// BandLimits caps how many candidates each batch band may hold.
type BandLimits struct {
	Urgent int `json:"urgent_limit"`
	High   int `json:"high_limit"`
	Medium int `json:"medium_limit"`
}

// BatchRow joins one priority candidate back to its manifest entry.
type BatchRow struct {
	Batch          string   `json:"batch"`
	Name           string   `json:"name"`
	ItemID         string   `json:"item_id"`
	CanonicalLabel string   `json:"canonical_label"`
	PrimaryOutcome string   `json:"primary_outcome"`
	PriorityScore  float64  `json:"priority_score"`
	PriorityBand   string   `json:"priority_band"`
	URL            string   `json:"url"`
	Status         string   `json:"status"`
	Required       bool     `json:"required"`
	Reasons        []string `json:"reasons"`
}

// PlanSummary counts the selected batch rows.
type PlanSummary struct {
	UrgentCount   int `json:"urgent_count"`
	HighCount     int `json:"high_count"`
	MediumCount   int `json:"medium_count"`
	TotalSelected int `json:"total_selected"`
}

// PlanInputs names the files a batch plan was derived from.
type PlanInputs struct {
	Priority string `json:"priority"`
	Manifest string `json:"manifest"`
}

// Batches groups the selected rows per band plus the combined list.
type Batches struct {
	Urgent   []BatchRow `json:"urgent"`
	High     []BatchRow `json:"high"`
	Medium   []BatchRow `json:"medium"`
	Combined []BatchRow `json:"combined"`
}

// Plan is the persisted labeling batch artifact.
type Plan struct {
	GeneratedAt string      `json:"generated_at,omitempty"`
	Inputs      PlanInputs  `json:"inputs"`
	Config      BandLimits  `json:"config"`
	Summary     PlanSummary `json:"summary"`
	Batches     Batches     `json:"batches"`
}

// selectBand picks up to limit candidates of one band, in the candidates'
// ranked order, joining each to its manifest entry's current url/status.
func selectBand(candidates []priority.Candidate, byName map[string][]*manifest.Entry, band string, limit int) []BatchRow {
	var rows []BatchRow
	for _, candidate := range candidates {
		if len(rows) >= limit {
			break
		}
		if candidate.PriorityBand != band {
			continue
		}

		row := BatchRow{
			Batch:          band,
			Name:           candidate.Name,
			ItemID:         candidate.ItemID,
			CanonicalLabel: candidate.CanonicalLabel,
			PrimaryOutcome: candidate.PrimaryOutcome,
			PriorityScore:  candidate.PriorityScore,
			PriorityBand:   candidate.PriorityBand,
			Reasons:        candidate.Reasons,
		}
		if slots := byName[strings.TrimSpace(candidate.Name)]; len(slots) > 0 {
			entry := slots[0]
			row.URL = entry.URL
			row.Status = entry.Status
			row.Required = entry.Required
		}
		rows = append(rows, row)
	}
	return rows
}

// BuildBatches selects up to the band limits from the ranked candidates.
func BuildBatches(candidates []priority.Candidate, m *manifest.Manifest, limits BandLimits) *Plan {
	byName := manifest.IndexByName(m)

	urgent := selectBand(candidates, byName, priority.BandUrgent, max(0, limits.Urgent))
	high := selectBand(candidates, byName, priority.BandHigh, max(0, limits.High))
	medium := selectBand(candidates, byName, priority.BandMedium, max(0, limits.Medium))

	combined := make([]BatchRow, 0, len(urgent)+len(high)+len(medium))
	combined = append(combined, urgent...)
	combined = append(combined, high...)
	combined = append(combined, medium...)

	return &Plan{
		Config: limits,
		Summary: PlanSummary{
			UrgentCount:   len(urgent),
			HighCount:     len(high),
			MediumCount:   len(medium),
			TotalSelected: len(combined),
		},
		Batches: Batches{
			Urgent:   urgent,
			High:     high,
			Medium:   medium,
			Combined: combined,
		},
	}
}

var batchCSVHeader = []string{
	"batch", "name", "item_id", "canonical_label", "primary_outcome",
	"priority_score", "priority_band", "url", "status", "required", "reasons",
}

// WriteBatchCSV writes one batch file; reasons are joined with " | " so the
// column stays a single cell.
func WriteBatchCSV(path string, rows []BatchRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create batch csv: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(batchCSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		record := []string{
			row.Batch,
			row.Name,
			row.ItemID,
			row.CanonicalLabel,
			row.PrimaryOutcome,
			strconv.FormatFloat(row.PriorityScore, 'g', -1, 64),
			row.PriorityBand,
			row.URL,
			row.Status,
			strconv.FormatBool(row.Required),
			strings.Join(row.Reasons, " | "),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush batch csv: %w", err)
	}
	return nil
}
