// Package evaluate scores detector predictions against the benchmark manifest
// and diffs evaluation runs against each other.
package evaluate

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"

	"repath/benchkit/detect"
	"repath/benchkit/manifest"
)

// Row is the evaluation outcome for one manifest entry. AnyHit is nil for
// negative entries, which have no expected_any set to satisfy.
type Row struct {
	Name            string             `json:"name"`
	URL             string             `json:"url"`
	ExpectedAny     []string           `json:"expected_any"`
	ExpectedAll     []string           `json:"expected_all"`
	PredictedLabels []string           `json:"predicted_labels"`
	Detections      []detect.Detection `json:"detections"`
	Precision       float64            `json:"precision"`
	Recall          float64            `json:"recall"`
	AnyHit          *bool              `json:"any_hit"`
}

// Summary is the micro-averaged corpus result.
type Summary struct {
	Model                     string  `json:"model,omitempty"`
	Labels                    string  `json:"labels,omitempty"`
	Manifest                  string  `json:"manifest,omitempty"`
	Threshold                 float64 `json:"threshold"`
	TopK                      int     `json:"topk"`
	ImagesEvaluated           int     `json:"images_evaluated"`
	MicroPrecision            float64 `json:"micro_precision"`
	MicroRecall               float64 `json:"micro_recall"`
	AnyHitRate                float64 `json:"any_hit_rate"`
	NegativeCleanRate         float64 `json:"negative_clean_rate"`
	TP                        int     `json:"tp"`
	FP                        int     `json:"fp"`
	FN                        int     `json:"fn"`
	SupportedOnly             bool    `json:"supported_only"`
	SkippedUnsupportedEntries int     `json:"skipped_unsupported_entries"`
	SkippedUnresolvedEntries  int     `json:"skipped_unresolved_entries,omitempty"`
}

// Results is the persisted evaluation artifact.
type Results struct {
	Summary Summary `json:"summary"`
	Rows    []Row   `json:"results"`
}

// Stats holds set-based precision/recall counts for one entry.
type Stats struct {
	TP        int
	FP        int
	FN        int
	Precision float64
	Recall    float64
}

// PRStats computes set-based precision and recall. An empty predicted set
// against an empty expected set is a correct negative and scores 1.0/1.0;
// otherwise zero denominators score 0.
func PRStats(predicted, expected []string) Stats {
	pred := toSet(predicted)
	exp := toSet(expected)
	if len(pred) == 0 && len(exp) == 0 {
		return Stats{Precision: 1.0, Recall: 1.0}
	}

	var s Stats
	for label := range exp {
		if _, ok := pred[label]; ok {
			s.TP++
		}
	}
	s.FP = len(pred) - s.TP
	s.FN = len(exp) - s.TP
	if s.TP+s.FP > 0 {
		s.Precision = float64(s.TP) / float64(s.TP+s.FP)
	}
	if s.TP+s.FN > 0 {
		s.Recall = float64(s.TP) / float64(s.TP+s.FN)
	}
	return s
}

func toSet(labels []string) map[string]struct{} {
	out := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		out[label] = struct{}{}
	}
	return out
}

func intersects(a []string, b map[string]struct{}) bool {
	for _, label := range a {
		if _, ok := b[label]; ok {
			return true
		}
	}
	return false
}

// ImageSource resolves a manifest entry to a local image path.
type ImageSource interface {
	ResolvePath(ctx context.Context, name, url string) (string, error)
}

// Engine runs the detector over every resolvable manifest entry.
type Engine struct {
	Detector detect.Detector
	Decoder  detect.Decoder
	Images   ImageSource
	// SupportedOnly restricts expected labels to the detector vocabulary
	// before scoring, so the model is not penalized for classes it was never
	// trained on. Entries left with no supported expected label are skipped
	// and counted.
	SupportedOnly bool
	Logger        *log.Logger
}

func (e *Engine) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// Run evaluates every entry of m with a usable name and URL. Per-item
// resolution and decode failures skip the entry; decoder contract violations
// (unsupported shape, missing NMS) abort the run since they hold for every
// entry alike.
func (e *Engine) Run(ctx context.Context, m *manifest.Manifest) (*Results, error) {
	if e.Detector == nil {
		return nil, errors.New("detector is required")
	}
	if e.Images == nil {
		return nil, errors.New("image source is required")
	}

	vocabulary := toSet(e.Decoder.Labels)

	results := &Results{Rows: []Row{}}
	var microTP, microFP, microFN int
	var anyCases, anyHits, negativeCases, negativeClean int

	for i := range m.Images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := &m.Images[i]
		name := strings.TrimSpace(entry.Name)
		url := strings.TrimSpace(entry.URL)
		if name == "" || url == "" {
			continue
		}

		expectedAny := manifest.CleanLabels(entry.ExpectedAny)
		expectedAll := manifest.CleanLabels(entry.ExpectedAll)

		if e.SupportedOnly {
			hadExpected := len(expectedAny) > 0 || len(expectedAll) > 0
			expectedAny = filterSupported(expectedAny, vocabulary)
			expectedAll = filterSupported(expectedAll, vocabulary)
			if hadExpected && len(expectedAny) == 0 && len(expectedAll) == 0 {
				results.Summary.SkippedUnsupportedEntries++
				continue
			}
		}

		path, err := e.Images.ResolvePath(ctx, name, url)
		if err != nil {
			e.logf("skip %s: %v", name, err)
			results.Summary.SkippedUnresolvedEntries++
			continue
		}
		img, err := detect.LoadImage(path)
		if err != nil {
			e.logf("skip %s: %v", name, err)
			results.Summary.SkippedUnresolvedEntries++
			continue
		}

		raw, shape, err := e.Detector.Detect(ctx, img)
		if err != nil {
			e.logf("skip %s: inference failed: %v", name, err)
			results.Summary.SkippedUnresolvedEntries++
			continue
		}
		detections, predicted, err := e.Decoder.Decode(raw, shape)
		if err != nil {
			// Shape contract violations are a property of the model, not of
			// this entry; skipping would just repeat the failure.
			return nil, err
		}

		expectedSet := expectedAll
		if len(expectedSet) == 0 {
			expectedSet = expectedAny
		}
		stats := PRStats(predicted, expectedSet)
		microTP += stats.TP
		microFP += stats.FP
		microFN += stats.FN

		var anyHit *bool
		if len(expectedAny) > 0 {
			anyCases++
			hit := intersects(expectedAny, toSet(predicted))
			if hit {
				anyHits++
			}
			anyHit = &hit
		} else {
			negativeCases++
			if len(predicted) == 0 {
				negativeClean++
			}
		}

		results.Rows = append(results.Rows, Row{
			Name:            name,
			URL:             url,
			ExpectedAny:     expectedAny,
			ExpectedAll:     expectedAll,
			PredictedLabels: predicted,
			Detections:      detections,
			Precision:       round4(stats.Precision),
			Recall:          round4(stats.Recall),
			AnyHit:          anyHit,
		})
	}

	results.Summary.Threshold = e.Decoder.Threshold
	results.Summary.TopK = e.Decoder.TopK
	results.Summary.SupportedOnly = e.SupportedOnly
	results.Summary.ImagesEvaluated = len(results.Rows)
	results.Summary.TP = microTP
	results.Summary.FP = microFP
	results.Summary.FN = microFN
	results.Summary.MicroPrecision = round4(ratio(microTP, microTP+microFP))
	results.Summary.MicroRecall = round4(ratio(microTP, microTP+microFN))
	results.Summary.AnyHitRate = round4(ratio(anyHits, anyCases))
	results.Summary.NegativeCleanRate = round4(ratio(negativeClean, negativeCases))
	return results, nil
}

func filterSupported(labels []string, vocabulary map[string]struct{}) []string {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if _, ok := vocabulary[label]; ok {
			out = append(out, label)
		}
	}
	return out
}

func ratio(numerator, denominator int) float64 {
	if denominator <= 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
