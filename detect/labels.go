package detect

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadLabels reads the model's class vocabulary. The file is either a plain
// JSON array of strings or an object with a "labels" array; index position is
// the class id.
func LoadLabels(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels %s: %w", filepath.Base(path), err)
	}

	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		var wrapped struct {
			Labels []string `json:"labels"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil || wrapped.Labels == nil {
			return nil, fmt.Errorf("labels %s must be a JSON array or an object with a labels array", filepath.Base(path))
		}
		labels = wrapped.Labels
	}

	out := make([]string, len(labels))
	for i, label := range labels {
		out[i] = strings.TrimSpace(label)
	}
	if len(out) == 0 {
		return nil, errors.New("labels file contains no classes")
	}
	return out, nil
}
