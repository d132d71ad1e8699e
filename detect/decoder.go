// Package detect decodes raw detector output tensors into ranked label lists
// and wraps the ONNX Runtime session used for inference.
package detect

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Decoding failures. Shape errors are contract violations of the exported
// model and abort the evaluation call; they are never silently coerced.
var (
	// ErrUnsupportedOutputShape means the raw tensor rank/size cannot be
	// normalized to an [N,6] detection matrix.
	ErrUnsupportedOutputShape = errors.New("unsupported output tensor shape")
	// ErrMissingNMS means the model emits a raw YOLO head without integrated
	// non-maximum suppression and must be re-exported with NMS enabled.
	ErrMissingNMS = errors.New("model outputs raw YOLO head without integrated NMS; re-export the model with NMS enabled")
	// ErrUnsupportedDetectionLayout means the normalized matrix has neither 6
	// columns nor 6 rows.
	ErrUnsupportedDetectionLayout = errors.New("unsupported detection layout")
)

// Detection is one decoded detection: a vocabulary label and its confidence.
type Detection struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Decoder turns a raw output tensor into a ranked, thresholded, deduplicated
// label list. Rows are [x1,y1,x2,y2,score,class_id] after normalization.
type Decoder struct {
	Labels    []string
	Threshold float64
	TopK      int
}

// candidate is one detection row in canonical column order.
type candidate struct {
	score   float64
	classID float64
	index   int
}

// normalizeShape reduces the export-variant tensor shapes to a row-major
// [rows, cols] view over data:
//
//	rank 3 with leading 1  -> drop the leading dimension
//	rank 2                 -> as-is
//	rank 1, size % 6 == 0  -> reshape to [N, 6]
func normalizeShape(data []float32, shape []int64) (rows, cols int, err error) {
	switch {
	case len(shape) == 3 && shape[0] == 1:
		rows, cols = int(shape[1]), int(shape[2])
	case len(shape) == 2:
		rows, cols = int(shape[0]), int(shape[1])
	case len(shape) == 1 && shape[0]%6 == 0:
		rows, cols = int(shape[0]/6), 6
	default:
		return 0, 0, fmt.Errorf("%w: got %v, expected NMS detections shaped [1,N,6] or [N,6]", ErrUnsupportedOutputShape, shape)
	}
	if rows*cols != len(data) {
		return 0, 0, fmt.Errorf("%w: shape %v does not match %d values", ErrUnsupportedOutputShape, shape, len(data))
	}
	return rows, cols, nil
}

// Decode normalizes the raw tensor, filters by threshold, ranks by score and
// maps class ids to labels. It returns the top-K detections alongside the
// deduplicated predicted label list (first, highest-scoring occurrence wins).
func (d *Decoder) Decode(data []float32, shape []int64) ([]Detection, []string, error) {
	rows, cols, err := normalizeShape(data, shape)
	if err != nil {
		return nil, nil, err
	}

	// Orient the matrix so each detection is one row of 6 values. A first
	// dimension of 4+len(labels) is the raw YOLO head layout: per-class score
	// planes instead of NMS rows, which decoding cannot repair.
	var count int
	var at func(det, field int) float64
	switch {
	case cols == 6:
		count = rows
		at = func(det, field int) float64 { return float64(data[det*6+field]) }
	case rows == 6:
		count = cols
		at = func(det, field int) float64 { return float64(data[field*cols+det]) }
	case rows == 4+len(d.Labels):
		return nil, nil, fmt.Errorf("%w (output shape %v)", ErrMissingNMS, shape)
	default:
		return nil, nil, fmt.Errorf("%w: shape %v, expected 6 values per row: x1,y1,x2,y2,score,class_id", ErrUnsupportedDetectionLayout, shape)
	}

	kept := make([]candidate, 0, count)
	for i := 0; i < count; i++ {
		score := at(i, 4)
		if score < d.Threshold {
			continue
		}
		kept = append(kept, candidate{score: score, classID: at(i, 5), index: i})
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].index < kept[j].index
	})

	detections := make([]Detection, 0, len(kept))
	labels := make([]string, 0, len(kept))
	seen := make(map[string]struct{})
	for _, c := range kept {
		classID := int(math.Round(c.classID))
		if classID < 0 || classID >= len(d.Labels) {
			continue
		}
		label := d.Labels[classID]
		detections = append(detections, Detection{Label: label, Score: round4(c.score)})
		if _, ok := seen[label]; !ok {
			seen[label] = struct{}{}
			labels = append(labels, label)
		}
	}

	if d.TopK > 0 {
		if len(detections) > d.TopK {
			detections = detections[:d.TopK]
		}
		if len(labels) > d.TopK {
			labels = labels[:d.TopK]
		}
	}
	return detections, labels, nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
