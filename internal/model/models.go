package model

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/EbinDavis252/Aqua-risk/internal/features"
)

// Classifier scores a fixed-order feature vector. Implementations must be
// safe for concurrent use.
type Classifier interface {
	Score(vector []float64) (float64, error)
}

// ClassifierFunc adapts a plain function to Classifier.
type ClassifierFunc func(vector []float64) (float64, error)

// Score calls fn.
func (fn ClassifierFunc) Score(vector []float64) (float64, error) {
	return fn(vector)
}

// Info describes a loaded model.
type Info struct {
	Kind         string    `json:"kind"`
	FeatureNames []string  `json:"feature_names"`
	Trees        int       `json:"trees"`
	TrainedAt    time.Time `json:"trained_at,omitempty"`
	TrainingRows int       `json:"training_rows,omitempty"`
}

type describer interface {
	Info() Info
}

// Models is the immutable pair of classifiers shared by every request.
type Models struct {
	Financial Classifier
	Technical Classifier
}

// LoadModels reads both artifacts and checks their widths against the encoder.
func LoadModels(financialPath, technicalPath string) (*Models, error) {
	financial, err := loadExpecting(financialPath, len(features.FinancialFeatureNames))
	if err != nil {
		return nil, fmt.Errorf("financial model: %w", err)
	}
	technical, err := loadExpecting(technicalPath, len(features.TechnicalFeatureNames))
	if err != nil {
		return nil, fmt.Errorf("technical model: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"financial_path":  financialPath,
		"financial_trees": len(financial.Trees),
		"technical_path":  technicalPath,
		"technical_trees": len(technical.Trees),
	}).Info("risk models loaded")
	return &Models{Financial: financial, Technical: technical}, nil
}

func loadExpecting(path string, width int) (*Forest, error) {
	forest, err := LoadForest(path)
	if err != nil {
		return nil, err
	}
	if forest.NFeatures != width {
		return nil, fmt.Errorf("%w: artifact has %d features, encoder produces %d", ErrFeatureCount, forest.NFeatures, width)
	}
	return forest, nil
}

// Describe returns Info for both models when they expose it.
func (m *Models) Describe() map[string]Info {
	out := make(map[string]Info, 2)
	if m == nil {
		return out
	}
	if d, ok := m.Financial.(describer); ok {
		out["financial"] = d.Info()
	}
	if d, ok := m.Technical.(describer); ok {
		out["technical"] = d.Info()
	}
	return out
}
