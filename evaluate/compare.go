package evaluate

import (
	"encoding/json"
	"strings"

	"repath/benchkit/manifest"
)

// comparedFields is the fixed, ordered list of summary metrics diffed between
// a baseline and a candidate run.
var comparedFields = []string{
	"images_evaluated",
	"micro_precision",
	"micro_recall",
	"any_hit_rate",
	"negative_clean_rate",
	"tp",
	"fp",
	"fn",
	"skipped_unsupported_entries",
}

// MetricDelta is one summary field diffed across two runs.
type MetricDelta struct {
	Field     string  `json:"field"`
	Baseline  float64 `json:"baseline"`
	Candidate float64 `json:"candidate"`
	Delta     float64 `json:"delta"`
}

// Overlap restricts the comparison to rows present in both result sets,
// isolating model-quality drift from corpus-composition drift.
type Overlap struct {
	Rows             int           `json:"rows"`
	BaselineSummary  Summary       `json:"baseline_summary"`
	CandidateSummary Summary       `json:"candidate_summary"`
	Comparison       []MetricDelta `json:"comparison"`
}

// Comparison is the persisted diff of two evaluation runs.
type Comparison struct {
	GeneratedAt string        `json:"generated_at,omitempty"`
	Baseline    string        `json:"baseline,omitempty"`
	Candidate   string        `json:"candidate,omitempty"`
	Comparison  []MetricDelta `json:"comparison"`
	Overlap     Overlap       `json:"overlap"`
}

func summaryMetric(s Summary, field string) float64 {
	switch field {
	case "images_evaluated":
		return float64(s.ImagesEvaluated)
	case "micro_precision":
		return s.MicroPrecision
	case "micro_recall":
		return s.MicroRecall
	case "any_hit_rate":
		return s.AnyHitRate
	case "negative_clean_rate":
		return s.NegativeCleanRate
	case "tp":
		return float64(s.TP)
	case "fp":
		return float64(s.FP)
	case "fn":
		return float64(s.FN)
	case "skipped_unsupported_entries":
		return float64(s.SkippedUnsupportedEntries)
	}
	return 0
}

// CompareSummaries diffs the fixed metric fields of two summaries.
func CompareSummaries(baseline, candidate Summary) []MetricDelta {
	out := make([]MetricDelta, 0, len(comparedFields))
	for _, field := range comparedFields {
		b := summaryMetric(baseline, field)
		c := summaryMetric(candidate, field)
		out = append(out, MetricDelta{
			Field:     field,
			Baseline:  b,
			Candidate: c,
			Delta:     round4(c - b),
		})
	}
	return out
}

// RowKey is the normalized identity used to match rows across runs: name,
// url and both expected label sets in sorted order.
func RowKey(r Row) string {
	payload := struct {
		Name        string   `json:"name"`
		URL         string   `json:"url"`
		ExpectedAny []string `json:"expected_any"`
		ExpectedAll []string `json:"expected_all"`
	}{
		Name:        strings.TrimSpace(r.Name),
		URL:         strings.TrimSpace(r.URL),
		ExpectedAny: manifest.SortedLabels(r.ExpectedAny),
		ExpectedAll: manifest.SortedLabels(r.ExpectedAll),
	}
	key, err := json.Marshal(payload)
	if err != nil {
		return r.Name + "|" + r.URL
	}
	return string(key)
}

// SummarizeRows recomputes a corpus summary from stored rows, independent of
// the summary the producing run wrote.
func SummarizeRows(rows []Row) Summary {
	var s Summary
	var anyCases, anyHits, negativeCases, negativeClean int

	for _, row := range rows {
		expectedAny := manifest.SortedLabels(row.ExpectedAny)
		expectedAll := manifest.SortedLabels(row.ExpectedAll)
		predicted := manifest.SortedLabels(row.PredictedLabels)

		expectedSet := expectedAll
		if len(expectedSet) == 0 {
			expectedSet = expectedAny
		}
		stats := PRStats(predicted, expectedSet)
		s.TP += stats.TP
		s.FP += stats.FP
		s.FN += stats.FN

		if len(expectedAny) > 0 {
			anyCases++
			if intersects(expectedAny, toSet(predicted)) {
				anyHits++
			}
		} else {
			negativeCases++
			if len(predicted) == 0 {
				negativeClean++
			}
		}
	}

	s.ImagesEvaluated = len(rows)
	s.MicroPrecision = round4(ratio(s.TP, s.TP+s.FP))
	s.MicroRecall = round4(ratio(s.TP, s.TP+s.FN))
	s.AnyHitRate = round4(ratio(anyHits, anyCases))
	s.NegativeCleanRate = round4(ratio(negativeClean, negativeCases))
	return s
}

// Compare diffs a baseline and a candidate run: once over the full summaries
// and once restricted to the overlapping rows, matched by RowKey. Overlap
// order follows the baseline result order.
func Compare(baseline, candidate *Results) *Comparison {
	out := &Comparison{
		Comparison: CompareSummaries(baseline.Summary, candidate.Summary),
	}

	candidateByKey := make(map[string]Row, len(candidate.Rows))
	for _, row := range candidate.Rows {
		candidateByKey[RowKey(row)] = row
	}

	var baselineOverlap, candidateOverlap []Row
	for _, row := range baseline.Rows {
		match, ok := candidateByKey[RowKey(row)]
		if !ok {
			continue
		}
		baselineOverlap = append(baselineOverlap, row)
		candidateOverlap = append(candidateOverlap, match)
	}

	out.Overlap.Rows = len(baselineOverlap)
	out.Overlap.BaselineSummary = SummarizeRows(baselineOverlap)
	out.Overlap.CandidateSummary = SummarizeRows(candidateOverlap)
	out.Overlap.Comparison = CompareSummaries(out.Overlap.BaselineSummary, out.Overlap.CandidateSummary)
	return out
}
