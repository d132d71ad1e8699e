// Package priority ranks labels for data collection, either from taxonomy
// risk heuristics before labeling or from evaluation errors after a run.
package priority

import (
	"errors"
	"strings"

	"repath/benchkit/internal/jsonio"
)

// Priority bands, coarsest first.
const (
	BandUrgent = "urgent"
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// Recommended data-collection actions.
const (
	ActionCollectMorePositives = "collect_more_positives"
	ActionAddHardNegatives     = "add_hard_negatives"
)

// TaxonomyClass is one canonical label with its disposal outcomes.
type TaxonomyClass struct {
	ItemID         string   `json:"item_id"`
	CanonicalLabel string   `json:"canonical_label"`
	PrimaryOutcome string   `json:"primary_outcome"`
	Outcomes       []string `json:"outcomes"`
}

// Taxonomy is the static class catalog produced by the taxonomy builder.
type Taxonomy struct {
	VisionClasses []TaxonomyClass `json:"vision_classes"`
}

// LoadTaxonomy reads and validates a taxonomy file.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	var t Taxonomy
	if err := jsonio.Read(path, &t); err != nil {
		return nil, err
	}
	if t.VisionClasses == nil {
		return nil, errors.New("taxonomy must contain a vision_classes array")
	}
	return &t, nil
}

// ByLabel indexes classes by trimmed canonical label.
func (t *Taxonomy) ByLabel() map[string]TaxonomyClass {
	out := make(map[string]TaxonomyClass, len(t.VisionClasses))
	for _, class := range t.VisionClasses {
		label := strings.TrimSpace(class.CanonicalLabel)
		if label != "" {
			out[label] = class
		}
	}
	return out
}
