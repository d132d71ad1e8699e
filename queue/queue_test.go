package queue

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"repath/benchkit/manifest"
	"repath/benchkit/priority"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Plastic Bottle", "plastic-bottle"},
		{"  Jar (Glass)  ", "jar-glass"},
		{"###", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildRetrainingQueue(t *testing.T) {
	stats := []priority.LabelStats{
		{Label: "cup", PriorityScore: 16, MissCount: 5, RecommendedAction: priority.ActionCollectMorePositives},
		{Label: "bottle", PriorityScore: 4, FalsePositiveCount: 2, RecommendedAction: priority.ActionAddHardNegatives},
	}

	rows := BuildRetrainingQueue(stats, 8, 4, 2)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want 2 labels x 2 variants", len(rows))
	}

	if rows[0].Name != "retrain_positive_cup_v1" || rows[1].Name != "retrain_positive_cup_v2" {
		t.Errorf("positive names = %q, %q", rows[0].Name, rows[1].Name)
	}
	if rows[0].CanonicalLabel != "cup" || rows[0].Source != "retraining_queue" {
		t.Errorf("positive row = %+v", rows[0])
	}

	negative := rows[2]
	if negative.Name != "retrain_negative_bottle_v1" {
		t.Errorf("negative name = %q", negative.Name)
	}
	if negative.CanonicalLabel != "" {
		t.Errorf("negative row carries a canonical label: %+v", negative)
	}
	if !strings.Contains(negative.Notes, "target_false_positive_label=bottle") {
		t.Errorf("negative notes = %q", negative.Notes)
	}
	if negative.Source != "retraining_queue_negative" {
		t.Errorf("negative source = %q", negative.Source)
	}
}

func TestBuildRetrainingQueueTopLimitsAndOrder(t *testing.T) {
	stats := []priority.LabelStats{
		{Label: "low", PriorityScore: 1, MissCount: 1, RecommendedAction: priority.ActionCollectMorePositives},
		{Label: "high", PriorityScore: 9, MissCount: 3, RecommendedAction: priority.ActionCollectMorePositives},
		{Label: "mid", PriorityScore: 5, MissCount: 2, RecommendedAction: priority.ActionCollectMorePositives},
	}

	rows := BuildRetrainingQueue(stats, 2, 1, 1)
	var names []string
	for _, row := range rows {
		names = append(names, row.Name)
	}
	want := []string{"retrain_positive_high_v1", "retrain_positive_mid_v1"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("names = %v, want %v", names, want)
	}
}

func TestWriteQueueCSVHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "retraining-queue.csv")
	rows := []QueueRow{{Name: "retrain_positive_cup_v1", CanonicalLabel: "cup", Source: "retraining_queue"}}
	if err := WriteQueueCSV(path, rows); err != nil {
		t.Fatalf("WriteQueueCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(records[0], RetrainHeader) {
		t.Errorf("header = %v, want %v", records[0], RetrainHeader)
	}
	if len(records) != 2 || records[1][0] != "retrain_positive_cup_v1" {
		t.Errorf("records = %v", records)
	}
}

func batchCandidates() []priority.Candidate {
	return []priority.Candidate{
		{Name: "battery-1", CanonicalLabel: "Car Battery", PriorityScore: 75, PriorityBand: priority.BandUrgent, Reasons: []string{"a", "b"}},
		{Name: "paint-1", CanonicalLabel: "Paint Can", PriorityScore: 71, PriorityBand: priority.BandUrgent},
		{Name: "bottle-1", CanonicalLabel: "Plastic Bottle", PriorityScore: 55, PriorityBand: priority.BandHigh},
		{Name: "bag-1", CanonicalLabel: "Plastic Bag", PriorityScore: 40, PriorityBand: priority.BandMedium},
	}
}

func TestBuildBatchesRespectsBandLimits(t *testing.T) {
	m := &manifest.Manifest{Images: []manifest.Entry{
		{Name: "battery-1", URL: "cache/battery-1.jpg", Status: manifest.StatusReady, Required: true},
		{Name: "bottle-1", Status: manifest.StatusTodo},
	}}

	plan := BuildBatches(batchCandidates(), m, BandLimits{Urgent: 1, High: 5, Medium: 5})

	if plan.Summary.UrgentCount != 1 || plan.Summary.HighCount != 1 || plan.Summary.MediumCount != 1 {
		t.Fatalf("summary = %+v", plan.Summary)
	}
	if plan.Summary.TotalSelected != 3 {
		t.Errorf("total = %d, want 3", plan.Summary.TotalSelected)
	}

	urgent := plan.Batches.Urgent[0]
	if urgent.Name != "battery-1" || urgent.URL != "cache/battery-1.jpg" || !urgent.Required {
		t.Errorf("urgent row not joined to manifest: %+v", urgent)
	}
	if urgent.Status != manifest.StatusReady {
		t.Errorf("urgent status = %q", urgent.Status)
	}

	high := plan.Batches.High[0]
	if high.Name != "bottle-1" || high.Status != manifest.StatusTodo {
		t.Errorf("high row = %+v", high)
	}

	combined := plan.Batches.Combined
	if len(combined) != 3 || combined[0].Batch != priority.BandUrgent || combined[2].Batch != priority.BandMedium {
		t.Errorf("combined = %+v", combined)
	}
}

func TestWriteBatchCSVJoinsReasons(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch-urgent.csv")
	rows := []BatchRow{{
		Batch:         priority.BandUrgent,
		Name:          "battery-1",
		PriorityScore: 75,
		PriorityBand:  priority.BandUrgent,
		Reasons:       []string{"dropoff_hhw outcome (+36)", "hazard-adjacent item (+28)"},
	}}
	if err := WriteBatchCSV(path, rows); err != nil {
		t.Fatalf("WriteBatchCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if records[0][0] != "batch" || records[0][10] != "reasons" {
		t.Errorf("header = %v", records[0])
	}
	if got := records[1][10]; got != "dropoff_hhw outcome (+36) | hazard-adjacent item (+28)" {
		t.Errorf("reasons cell = %q", got)
	}
}
