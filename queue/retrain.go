package queue

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"repath/benchkit/priority"
)

// RetrainHeader is the fixed retraining queue CSV layout.
var RetrainHeader = []string{"name", "url", "item_id", "canonical_label", "source", "notes"}

// QueueRow is one retraining placeholder, to be filled with a real image
// before the next training pass.
type QueueRow struct {
	Name           string `json:"name"`
	URL            string `json:"url"`
	ItemID         string `json:"item_id"`
	CanonicalLabel string `json:"canonical_label"`
	Source         string `json:"source"`
	Notes          string `json:"notes"`
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify collapses a label into a queue-row identifier fragment.
func Slugify(value string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(value), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 80 {
		slug = slug[:80]
	}
	return slug
}

// BuildRetrainingQueue emits variants placeholder rows per selected positive
// label and matching hard-negative rows per over-triggering label. Negative
// rows carry no canonical label of their own; their notes name the false
// positive label they are meant to suppress.
func BuildRetrainingQueue(stats []priority.LabelStats, positiveTop, negativeTop, variants int) []QueueRow {
	positiveTop = max(1, positiveTop)
	negativeTop = max(1, negativeTop)
	variants = max(1, variants)

	var positives, negatives []priority.LabelStats
	for _, row := range stats {
		switch row.RecommendedAction {
		case priority.ActionCollectMorePositives:
			positives = append(positives, row)
		case priority.ActionAddHardNegatives:
			negatives = append(negatives, row)
		}
	}

	sort.SliceStable(positives, func(i, j int) bool {
		if positives[i].PriorityScore != positives[j].PriorityScore {
			return positives[i].PriorityScore > positives[j].PriorityScore
		}
		if positives[i].MissCount != positives[j].MissCount {
			return positives[i].MissCount > positives[j].MissCount
		}
		return positives[i].Label < positives[j].Label
	})
	sort.SliceStable(negatives, func(i, j int) bool {
		if negatives[i].PriorityScore != negatives[j].PriorityScore {
			return negatives[i].PriorityScore > negatives[j].PriorityScore
		}
		if negatives[i].FalsePositiveCount != negatives[j].FalsePositiveCount {
			return negatives[i].FalsePositiveCount > negatives[j].FalsePositiveCount
		}
		return negatives[i].Label < negatives[j].Label
	})

	if len(positives) > positiveTop {
		positives = positives[:positiveTop]
	}
	if len(negatives) > negativeTop {
		negatives = negatives[:negativeTop]
	}

	var out []QueueRow
	for _, row := range positives {
		slug := Slugify(row.Label)
		if slug == "" {
			slug = "label"
		}
		for v := 1; v <= variants; v++ {
			out = append(out, QueueRow{
				Name:           fmt.Sprintf("retrain_positive_%s_v%d", slug, v),
				ItemID:         fmt.Sprintf("retrain-%s-v%d", slug, v),
				CanonicalLabel: row.Label,
				Source:         "retraining_queue",
				Notes: fmt.Sprintf("action=%s; priority_score=%s; variant=%d",
					priority.ActionCollectMorePositives, formatScore(row.PriorityScore), v),
			})
		}
	}
	for _, row := range negatives {
		slug := Slugify(row.Label)
		if slug == "" {
			slug = "label"
		}
		for v := 1; v <= variants; v++ {
			out = append(out, QueueRow{
				Name:   fmt.Sprintf("retrain_negative_%s_v%d", slug, v),
				ItemID: fmt.Sprintf("retrain-negative-%s-v%d", slug, v),
				Source: "retraining_queue_negative",
				Notes: fmt.Sprintf("target_false_positive_label=%s; action=%s; priority_score=%s; variant=%d",
					row.Label, priority.ActionAddHardNegatives, formatScore(row.PriorityScore), v),
			})
		}
	}
	return out
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteQueueCSV writes the retraining queue with its fixed header.
func WriteQueueCSV(path string, rows []QueueRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create queue csv: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(RetrainHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		record := []string{row.Name, row.URL, row.ItemID, row.CanonicalLabel, row.Source, row.Notes}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush queue csv: %w", err)
	}
	return nil
}
