package priority

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"repath/benchkit/evaluate"
	"repath/benchkit/manifest"
)

// LabelStats aggregates evaluation errors for one canonical label.
type LabelStats struct {
	Label              string   `json:"label"`
	PriorityScore      float64  `json:"priority_score"`
	ExpectedCount      int      `json:"expected_count"`
	MissCount          int      `json:"miss_count"`
	HitCount           int      `json:"hit_count"`
	FalsePositiveCount int      `json:"false_positive_count"`
	HitRate            float64  `json:"hit_rate"`
	RecommendedAction  string   `json:"recommended_action"`
	Reasons            []string `json:"reasons"`
}

// LabelCount pairs a label with an occurrence count.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// PairCount counts one expected->predicted confusion pair.
type PairCount struct {
	Pair  string `json:"pair"`
	Count int    `json:"count"`
}

// AnalysisCounts sizes the analyzed input.
type AnalysisCounts struct {
	ResultRows          int `json:"result_rows"`
	ExpectedLabels      int `json:"expected_labels"`
	FalsePositiveLabels int `json:"false_positive_labels"`
}

// Analysis is the persisted error-driven priority report.
type Analysis struct {
	GeneratedAt            string           `json:"generated_at,omitempty"`
	Source                 string           `json:"source,omitempty"`
	Summary                evaluate.Summary `json:"summary"`
	Counts                 AnalysisCounts   `json:"counts"`
	TopMissedLabels        []LabelCount     `json:"top_missed_labels"`
	TopFalsePositiveLabels []LabelCount     `json:"top_false_positive_labels"`
	TopConfusionPairs      []PairCount      `json:"top_confusion_pairs"`
	PriorityTable          []LabelStats     `json:"priority_table"`
}

// Analyze folds evaluation rows into per-label aggregates and the priority
// ranking. The score is miss_count*2 + false_positive_count +
// (1-hit_rate)*expected_count, ordered by descending priority, miss count and
// false-positive count with the label as the final deterministic key.
func Analyze(results *evaluate.Results, topN int) *Analysis {
	if topN < 1 {
		topN = 25
	}

	expectedCount := make(map[string]int)
	hitCount := make(map[string]int)
	missCount := make(map[string]int)
	fpCount := make(map[string]int)
	pairFP := make(map[string]int)

	for _, row := range results.Rows {
		expected := labelSet(row.ExpectedAny)
		predicted := labelSet(row.PredictedLabels)

		for label := range expected {
			expectedCount[label]++
			if _, ok := predicted[label]; ok {
				hitCount[label]++
			} else {
				missCount[label]++
			}
		}

		for predLabel := range predicted {
			if _, ok := expected[predLabel]; ok {
				continue
			}
			fpCount[predLabel]++
			// Credit every co-occurring expected label with the confusion.
			for expLabel := range expected {
				pairFP[expLabel+" -> "+predLabel]++
			}
		}
	}

	labels := make(map[string]struct{}, len(expectedCount)+len(fpCount))
	for label := range expectedCount {
		labels[label] = struct{}{}
	}
	for label := range fpCount {
		labels[label] = struct{}{}
	}

	table := make([]LabelStats, 0, len(labels))
	for label := range labels {
		expected := expectedCount[label]
		miss := missCount[label]
		hit := hitCount[label]
		fp := fpCount[label]

		hitRate := 0.0
		if expected > 0 {
			hitRate = float64(hit) / float64(expected)
		}
		priority := float64(miss*2 + fp)
		var reasons []string
		if miss > 0 {
			reasons = append(reasons, fmt.Sprintf("missed on %d expected images (+%d)", miss, miss*2))
		}
		if fp > 0 {
			reasons = append(reasons, fmt.Sprintf("false positives on %d images (+%d)", fp, fp))
		}
		if expected > 0 {
			gap := (1 - hitRate) * float64(expected)
			priority += gap
			if gap > 0 {
				reasons = append(reasons, fmt.Sprintf("hit rate %.2f over %d expected (+%.1f)", hitRate, expected, gap))
			}
		}

		action := ActionAddHardNegatives
		if miss >= fp {
			action = ActionCollectMorePositives
		}

		table = append(table, LabelStats{
			Label:              label,
			PriorityScore:      round2(priority),
			ExpectedCount:      expected,
			MissCount:          miss,
			HitCount:           hit,
			FalsePositiveCount: fp,
			HitRate:            round4(hitRate),
			RecommendedAction:  action,
			Reasons:            reasons,
		})
	}

	sort.SliceStable(table, func(i, j int) bool {
		a, b := table[i], table[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if a.MissCount != b.MissCount {
			return a.MissCount > b.MissCount
		}
		if a.FalsePositiveCount != b.FalsePositiveCount {
			return a.FalsePositiveCount > b.FalsePositiveCount
		}
		return a.Label < b.Label
	})
	if len(table) > topN {
		table = table[:topN]
	}

	return &Analysis{
		Summary: results.Summary,
		Counts: AnalysisCounts{
			ResultRows:          len(results.Rows),
			ExpectedLabels:      len(expectedCount),
			FalsePositiveLabels: len(fpCount),
		},
		TopMissedLabels:        sortedCounts(missCount, topN),
		TopFalsePositiveLabels: sortedCounts(fpCount, topN),
		TopConfusionPairs:      sortedPairs(pairFP, topN),
		PriorityTable:          table,
	}
}

func labelSet(labels []string) map[string]struct{} {
	out := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		label = manifest.NormalizeLabel(label)
		if label != "" {
			out[label] = struct{}{}
		}
	}
	return out
}

func sortedCounts(counts map[string]int, topN int) []LabelCount {
	out := make([]LabelCount, 0, len(counts))
	for label, count := range counts {
		out = append(out, LabelCount{Label: label, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func sortedPairs(counts map[string]int, topN int) []PairCount {
	out := make([]PairCount, 0, len(counts))
	for pair, count := range counts {
		out = append(out, PairCount{Pair: pair, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Pair < out[j].Pair
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// priorityCSVHeader is the stable layout of the priority CSV template.
var priorityCSVHeader = []string{
	"rank", "label", "priority_score", "expected_count", "miss_count",
	"hit_count", "false_positive_count", "hit_rate", "recommended_action", "notes",
}

// WritePriorityCSV writes the ranked label table as the CSV template labelers
// annotate. The notes column is intentionally left empty.
func WritePriorityCSV(path string, rows []LabelStats) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create priority csv: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(priorityCSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		record := []string{
			strconv.Itoa(i + 1),
			row.Label,
			formatFloat(row.PriorityScore),
			strconv.Itoa(row.ExpectedCount),
			strconv.Itoa(row.MissCount),
			strconv.Itoa(row.HitCount),
			strconv.Itoa(row.FalsePositiveCount),
			formatFloat(row.HitRate),
			row.RecommendedAction,
			"",
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush priority csv: %w", err)
	}
	return nil
}

// ReadPriorityCSV loads a priority CSV back into label stats. Only the fields
// the retraining queue needs are populated.
func ReadPriorityCSV(path string) ([]LabelStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open priority csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read priority csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var out []LabelStats
	for _, row := range records[1:] {
		label := field(row, "label")
		if label == "" {
			continue
		}
		out = append(out, LabelStats{
			Label:              label,
			PriorityScore:      parseFloat(field(row, "priority_score")),
			MissCount:          parseInt(field(row, "miss_count")),
			FalsePositiveCount: parseInt(field(row, "false_positive_count")),
			RecommendedAction:  field(row, "recommended_action"),
		})
	}
	return out, nil
}

func parseInt(value string) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(value string) float64 {
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return n
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
