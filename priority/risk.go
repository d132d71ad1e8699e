package priority

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"repath/benchkit/manifest"
)

// Outcome weights reflect how costly a wrong routing is for each disposal
// stream. Hazardous drop-off mistakes hurt the most.
var outcomeWeights = map[string]int{
	"dropoff_hhw":      36,
	"dropoff_other":    20,
	"trash":            14,
	"dropoff_recycle":  12,
	"compost":          10,
	"curbside_recycle": 8,
	"reuse":            6,
}

var hazardPattern = regexp.MustCompile(`(?i)(battery|paint|oil|antifreeze|ammunition|explosive|flammable|propane|pesticide|chemical|solvent|fire extinguisher|electronics|mercury|medication|pharmaceutical|syringe|needle|sharps|engine coolant)`)

var ambiguousShapeTerms = []string{
	"container", "bottle", "can", "box", "bag", "tray", "tub",
	"carton", "cup", "jar", "lid", "cap", "wrapper", "packaging",
}

var materialFamilies = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"plastic", regexp.MustCompile(`(plastic|styrofoam|polystyrene|foam|bubble wrap|blister)`)},
	{"paper", regexp.MustCompile(`(paper|cardboard|carton|book|magazine|box|envelope|wrapping)`)},
	{"metal", regexp.MustCompile(`(aluminum|tin|metal|steel|foil|aerosol)`)},
	{"glass", regexp.MustCompile(`glass`)},
}

var tokenStopwords = map[string]struct{}{
	"and": {}, "or": {}, "the": {}, "with": {}, "for": {}, "other": {},
	"than": {}, "to": {}, "of": {}, "in": {}, "on": {}, "a": {}, "an": {},
}

var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeTokens lowercases a label, replaces non-alphanumeric runs with
// spaces and splits into tokens.
func NormalizeTokens(value string) []string {
	normalized := nonAlnumRun.ReplaceAllString(strings.ToLower(norm.NFKC.String(value)), " ")
	return strings.Fields(normalized)
}

// significantTokens keeps unique tokens longer than two characters that are
// not stopwords, preserving order.
func significantTokens(label string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, token := range NormalizeTokens(label) {
		if len(token) <= 2 {
			continue
		}
		if _, stop := tokenStopwords[token]; stop {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// BuildTokenFrequency counts how often each significant label token appears
// across the taxonomy, measuring vocabulary overlap between classes.
func BuildTokenFrequency(classes []TaxonomyClass) map[string]int {
	freq := make(map[string]int)
	for _, class := range classes {
		for _, token := range significantTokens(class.CanonicalLabel) {
			freq[token]++
		}
	}
	return freq
}

// BandForScore maps a numeric score to its priority band.
func BandForScore(score float64) string {
	switch {
	case score >= 70:
		return BandUrgent
	case score >= 50:
		return BandHigh
	case score >= 35:
		return BandMedium
	default:
		return BandLow
	}
}

// Candidate is a label ranked for labeling or retraining attention. Reasons
// document which heuristic terms fired and their point contributions.
type Candidate struct {
	Name           string   `json:"name"`
	ItemID         string   `json:"item_id,omitempty"`
	CanonicalLabel string   `json:"canonical_label,omitempty"`
	PrimaryOutcome string   `json:"primary_outcome,omitempty"`
	Outcomes       []string `json:"outcomes,omitempty"`
	Required       bool     `json:"required,omitempty"`
	Status         string   `json:"status,omitempty"`
	PriorityScore  float64  `json:"priority_score"`
	PriorityBand   string   `json:"priority_band"`
	Reasons        []string `json:"reasons"`
}

// ScoreClass accumulates the additive risk heuristics for one taxonomy class.
func ScoreClass(class TaxonomyClass, tokenFreq map[string]int) (int, string, []string) {
	var reasons []string
	score := 0

	labelLower := strings.ToLower(class.CanonicalLabel)
	primary := strings.TrimSpace(class.PrimaryOutcome)

	if points, ok := outcomeWeights[primary]; ok && primary != "" {
		score += points
		reasons = append(reasons, fmt.Sprintf("%s outcome (+%d)", primary, points))
	}

	if len(class.Outcomes) > 1 {
		points := 6 + min(10, (len(class.Outcomes)-1)*2)
		score += points
		reasons = append(reasons, fmt.Sprintf("multiple disposal options (%d) (+%d)", len(class.Outcomes), points))
	}

	if hazardPattern.MatchString(labelLower) {
		score += 28
		reasons = append(reasons, "hazard-adjacent item (+28)")
	}

	ambiguousHits := 0
	for _, term := range ambiguousShapeTerms {
		if strings.Contains(labelLower, term) {
			ambiguousHits++
		}
	}
	if ambiguousHits > 0 {
		points := min(18, ambiguousHits*4)
		score += points
		reasons = append(reasons, fmt.Sprintf("visually ambiguous shape terms (%d) (+%d)", ambiguousHits, points))
	}

	familyCount := 0
	for _, family := range materialFamilies {
		if family.pattern.MatchString(labelLower) {
			familyCount++
		}
	}
	if familyCount > 1 {
		points := familyCount * 4
		score += points
		reasons = append(reasons, fmt.Sprintf("cross-material ambiguity (%d families) (+%d)", familyCount, points))
	}

	if strings.Contains(labelLower, "other") || strings.Contains(labelLower, "mixed") {
		score += 7
		reasons = append(reasons, "broad/other category naming (+7)")
	}

	tokens := significantLabelTokens(class.CanonicalLabel)
	if len(tokens) > 0 {
		extra := 0
		for _, token := range tokens {
			count := tokenFreq[token]
			if count == 0 {
				count = 1
			}
			if count > 1 {
				extra += count - 1
			}
		}
		crowdingRaw := float64(extra) / float64(len(tokens))
		crowdingPoints := min(20, int(math.Round(crowdingRaw*2)))
		if crowdingPoints > 0 {
			score += crowdingPoints
			reasons = append(reasons, fmt.Sprintf("label token crowding (+%d)", crowdingPoints))
		}
	}

	return score, BandForScore(float64(score)), reasons
}

// significantLabelTokens mirrors the token-crowding denominator: unique
// tokens longer than two characters, stopwords included.
func significantLabelTokens(label string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, token := range NormalizeTokens(label) {
		if len(token) <= 2 {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// PlanSummary aggregates a risk-based planning pass.
type PlanSummary struct {
	TodoCandidates     int            `json:"todo_candidates"`
	RequestedTopN      int            `json:"requested_top_n"`
	PriorityBandCounts map[string]int `json:"priority_band_counts"`
}

// PlanInputs names the files a plan was derived from.
type PlanInputs struct {
	Taxonomy string `json:"taxonomy"`
	Manifest string `json:"manifest"`
}

// PlanReport is the persisted risk-based priority report.
type PlanReport struct {
	GeneratedAt   string      `json:"generated_at,omitempty"`
	Inputs        PlanInputs  `json:"inputs"`
	Summary       PlanSummary `json:"summary"`
	TopCandidates []Candidate `json:"top_candidates"`
	AllCandidates []Candidate `json:"all_candidates"`
}

// firstLabel extracts the entry's leading expected label, the one its
// taxonomy mapping hangs off.
func firstLabel(entry *manifest.Entry) string {
	if labels := manifest.CleanLabels(entry.ExpectedAny); len(labels) > 0 {
		return labels[0]
	}
	if labels := manifest.CleanLabels(entry.ExpectedAll); len(labels) > 0 {
		return labels[0]
	}
	return ""
}

// PlanTodo scores every todo manifest entry against the taxonomy risk
// heuristics. Entries whose label is not in the taxonomy surface as unmapped
// low-priority candidates rather than disappearing.
func PlanTodo(m *manifest.Manifest, taxonomy *Taxonomy, topN int) *PlanReport {
	if topN < 1 {
		topN = 50
	}

	byLabel := taxonomy.ByLabel()
	tokenFreq := BuildTokenFrequency(taxonomy.VisionClasses)

	var candidates []Candidate
	for i := range m.Images {
		entry := &m.Images[i]
		if !strings.EqualFold(strings.TrimSpace(entry.Status), manifest.StatusTodo) {
			continue
		}

		label := firstLabel(entry)
		class, ok := byLabel[label]
		if !ok {
			candidates = append(candidates, Candidate{
				Name:           entry.Name,
				ItemID:         entry.ItemID,
				CanonicalLabel: label,
				Status:         "unmapped",
				PriorityScore:  0,
				PriorityBand:   BandLow,
				Reasons:        []string{"label not mapped to taxonomy"},
			})
			continue
		}

		score, band, reasons := ScoreClass(class, tokenFreq)
		candidates = append(candidates, Candidate{
			Name:           entry.Name,
			ItemID:         class.ItemID,
			CanonicalLabel: class.CanonicalLabel,
			PrimaryOutcome: class.PrimaryOutcome,
			Outcomes:       class.Outcomes,
			Required:       entry.Required,
			PriorityScore:  float64(score),
			PriorityBand:   band,
			Reasons:        reasons,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].PriorityScore != candidates[j].PriorityScore {
			return candidates[i].PriorityScore > candidates[j].PriorityScore
		}
		return candidates[i].CanonicalLabel < candidates[j].CanonicalLabel
	})

	bandCounts := make(map[string]int)
	for _, candidate := range candidates {
		bandCounts[candidate.PriorityBand]++
	}

	top := candidates
	if len(top) > topN {
		top = top[:topN]
	}

	return &PlanReport{
		Summary: PlanSummary{
			TodoCandidates:     len(candidates),
			RequestedTopN:      topN,
			PriorityBandCounts: bandCounts,
		},
		TopCandidates: top,
		AllCandidates: candidates,
	}
}
