package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

const forestKind = "random_forest"

var (
	ErrFeatureCount = errors.New("feature count mismatch")
	ErrEmptyForest  = errors.New("forest has no trees")
)

// Node is one split or leaf of a decision tree. Leaves have Left < 0.
// Value holds the training class counts [negative, positive] reaching the node.
type Node struct {
	Feature   int        `json:"feature"`
	Threshold float64    `json:"threshold"`
	Left      int        `json:"left"`
	Right     int        `json:"right"`
	Value     [2]float64 `json:"value"`
}

// Tree is a flattened binary decision tree rooted at Nodes[0].
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a serialized random forest binary classifier.
type Forest struct {
	Kind         string    `json:"kind"`
	FeatureNames []string  `json:"feature_names"`
	NFeatures    int       `json:"n_features"`
	Trees        []Tree    `json:"trees"`
	TrainedAt    time.Time `json:"trained_at,omitempty"`
	TrainingRows int       `json:"training_rows,omitempty"`
}

// LoadForest reads and validates a forest artifact.
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	var forest Forest
	if err := json.Unmarshal(data, &forest); err != nil {
		return nil, fmt.Errorf("unmarshal model artifact %s: %w", path, err)
	}
	if err := forest.Validate(); err != nil {
		return nil, fmt.Errorf("model artifact %s: %w", path, err)
	}
	return &forest, nil
}

// Save writes the forest as JSON.
func (f *Forest) Save(path string) error {
	if err := f.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal forest: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write forest: %w", err)
	}
	return nil
}

// Validate checks the structural invariants Score relies on.
func (f *Forest) Validate() error {
	if f == nil {
		return errors.New("forest is nil")
	}
	if f.Kind != "" && f.Kind != forestKind {
		return fmt.Errorf("unsupported model kind %q", f.Kind)
	}
	if f.NFeatures <= 0 {
		return fmt.Errorf("n_features must be positive, got %d", f.NFeatures)
	}
	if len(f.FeatureNames) > 0 && len(f.FeatureNames) != f.NFeatures {
		return fmt.Errorf("%w: %d feature names for %d features", ErrFeatureCount, len(f.FeatureNames), f.NFeatures)
	}
	if len(f.Trees) == 0 {
		return ErrEmptyForest
	}
	for ti, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, node := range tree.Nodes {
			if node.Left < 0 {
				for _, v := range node.Value {
					if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
						return fmt.Errorf("tree %d leaf %d has invalid class count %v", ti, ni, v)
					}
				}
				if node.Value[0]+node.Value[1] <= 0 {
					return fmt.Errorf("tree %d leaf %d has no samples", ti, ni)
				}
				continue
			}
			if node.Feature < 0 || node.Feature >= f.NFeatures {
				return fmt.Errorf("tree %d node %d splits on feature %d", ti, ni, node.Feature)
			}
			// children always follow their parent, so traversal terminates
			if node.Left <= ni || node.Right <= ni || node.Left >= len(tree.Nodes) || node.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d has invalid children %d/%d", ti, ni, node.Left, node.Right)
			}
		}
	}
	return nil
}

// Score returns the probability of the positive class: the mean over trees
// of the positive fraction in the leaf the vector lands in.
func (f *Forest) Score(vector []float64) (float64, error) {
	if len(vector) != f.NFeatures {
		return 0, fmt.Errorf("%w: got %d values, model expects %d", ErrFeatureCount, len(vector), f.NFeatures)
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].positiveFraction(vector)
	}
	p := sum / float64(len(f.Trees))
	if p < 0 {
		return 0, nil
	}
	if p > 1 {
		return 1, nil
	}
	return p, nil
}

func (t *Tree) positiveFraction(vector []float64) float64 {
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.Left < 0 {
			total := node.Value[0] + node.Value[1]
			return node.Value[1] / total
		}
		if vector[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// Info summarizes the forest for the config endpoint.
func (f *Forest) Info() Info {
	return Info{
		Kind:         forestKind,
		FeatureNames: append([]string(nil), f.FeatureNames...),
		Trees:        len(f.Trees),
		TrainedAt:    f.TrainedAt,
		TrainingRows: f.TrainingRows,
	}
}
