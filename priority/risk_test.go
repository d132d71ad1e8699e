package priority

import (
	"strings"
	"testing"

	"repath/benchkit/manifest"
)

func TestBandForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{80, BandUrgent},
		{70, BandUrgent},
		{69.9, BandHigh},
		{50, BandHigh},
		{49, BandMedium},
		{35, BandMedium},
		{34, BandLow},
		{0, BandLow},
	}
	for _, tt := range tests {
		if got := BandForScore(tt.score); got != tt.want {
			t.Errorf("BandForScore(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestScoreClassHazardousOutcome(t *testing.T) {
	class := TaxonomyClass{
		ItemID:         "battery",
		CanonicalLabel: "Car Battery",
		PrimaryOutcome: "dropoff_hhw",
		Outcomes:       []string{"dropoff_hhw"},
	}
	score, band, reasons := ScoreClass(class, map[string]int{})

	// dropoff_hhw 36 + hazard regex 28.
	if score != 64 {
		t.Errorf("score = %d, want 64", score)
	}
	if band != BandHigh {
		t.Errorf("band = %q, want %q", band, BandHigh)
	}
	joined := strings.Join(reasons, "; ")
	if !strings.Contains(joined, "dropoff_hhw outcome (+36)") || !strings.Contains(joined, "hazard-adjacent item (+28)") {
		t.Errorf("reasons = %q", joined)
	}
}

func TestScoreClassMultiOutcomeAndAmbiguity(t *testing.T) {
	class := TaxonomyClass{
		CanonicalLabel: "Plastic Bottle",
		PrimaryOutcome: "curbside_recycle",
		Outcomes:       []string{"curbside_recycle", "reuse", "trash"},
	}
	score, _, reasons := ScoreClass(class, map[string]int{})

	// curbside_recycle 8 + multi-outcome 6+min(10,4)=10 + "bottle" shape term 4.
	if score != 22 {
		t.Errorf("score = %d, want 22", score)
	}
	joined := strings.Join(reasons, "; ")
	if !strings.Contains(joined, "multiple disposal options (3) (+10)") {
		t.Errorf("reasons = %q", joined)
	}
	if !strings.Contains(joined, "visually ambiguous shape terms (1) (+4)") {
		t.Errorf("reasons = %q", joined)
	}
}

func TestScoreClassBroadNaming(t *testing.T) {
	class := TaxonomyClass{CanonicalLabel: "Mixed Rigid Items", PrimaryOutcome: ""}
	score, _, reasons := ScoreClass(class, map[string]int{})
	if score != 7 {
		t.Errorf("score = %d, want 7 (other/mixed only)", score)
	}
	if !strings.Contains(strings.Join(reasons, "; "), "broad/other category naming (+7)") {
		t.Errorf("reasons = %v", reasons)
	}
}

func TestNormalizeTokens(t *testing.T) {
	got := NormalizeTokens("Plastic-Bottle (Large)!")
	want := []string{"plastic", "bottle", "large"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tokens = %v, want %v", got, want)
		}
	}
}

func TestPlanTodoRanksAndSurfacesUnmapped(t *testing.T) {
	taxonomy := &Taxonomy{VisionClasses: []TaxonomyClass{
		{ItemID: "battery", CanonicalLabel: "Car Battery", PrimaryOutcome: "dropoff_hhw", Outcomes: []string{"dropoff_hhw"}},
		{ItemID: "bottle", CanonicalLabel: "Plastic Bottle", PrimaryOutcome: "curbside_recycle", Outcomes: []string{"curbside_recycle"}},
	}}
	m := &manifest.Manifest{Images: []manifest.Entry{
		{Name: "battery-1", ExpectedAny: []string{"Car Battery"}, Status: manifest.StatusTodo},
		{Name: "bottle-1", ExpectedAny: []string{"Plastic Bottle"}, Status: manifest.StatusTodo},
		{Name: "weird-1", ExpectedAny: []string{"Unknown Thing"}, Status: manifest.StatusTodo},
		{Name: "done-1", URL: "cache/done.jpg", ExpectedAny: []string{"Car Battery"}, Status: manifest.StatusReady},
	}}

	report := PlanTodo(m, taxonomy, 2)

	if report.Summary.TodoCandidates != 3 {
		t.Fatalf("todo candidates = %d, want 3 (ready entries excluded)", report.Summary.TodoCandidates)
	}
	if len(report.TopCandidates) != 2 {
		t.Fatalf("top candidates = %d, want topN cap", len(report.TopCandidates))
	}
	if report.TopCandidates[0].CanonicalLabel != "Car Battery" {
		t.Errorf("top candidate = %+v, want hazardous battery first", report.TopCandidates[0])
	}

	var unmapped *Candidate
	for i := range report.AllCandidates {
		if report.AllCandidates[i].Status == "unmapped" {
			unmapped = &report.AllCandidates[i]
		}
	}
	if unmapped == nil {
		t.Fatal("unmapped entry missing from candidates")
	}
	if unmapped.PriorityBand != BandLow || unmapped.Name != "weird-1" {
		t.Errorf("unmapped = %+v", unmapped)
	}
}

func TestLoadTaxonomyValidation(t *testing.T) {
	taxonomy := &Taxonomy{VisionClasses: []TaxonomyClass{
		{CanonicalLabel: "Plastic Bottle"},
		{CanonicalLabel: "  "},
	}}
	byLabel := taxonomy.ByLabel()
	if _, ok := byLabel["Plastic Bottle"]; !ok {
		t.Error("ByLabel dropped a valid class")
	}
	if len(byLabel) != 1 {
		t.Errorf("ByLabel = %v, blank labels should be excluded", byLabel)
	}
}
