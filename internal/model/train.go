package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	randomforest "github.com/malaschitz/randomForest"
)

// fullDepth bounds trees grown with MaxDepth 0. Real splits stop far
// earlier on pure or single-row nodes.
const fullDepth = 64

// randomforest draws from the global math/rand source and sizes its worker
// pool from a package variable, so fits are serialized.
var trainMu sync.Mutex

// TrainOptions controls forest growth. Zero values select the usual
// random forest defaults: 100 trees, sqrt(features) per split, fully grown.
// A non-zero Seed grows trees one at a time so the fit is reproducible.
type TrainOptions struct {
	Trees           int
	MaxFeatures     int
	MaxDepth        int
	MinSamplesSplit int
	Seed            int64
}

func (o TrainOptions) withDefaults(nFeatures int) TrainOptions {
	if o.Trees <= 0 {
		o.Trees = 100
	}
	if o.MaxFeatures <= 0 || o.MaxFeatures > nFeatures {
		o.MaxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(nFeatures)))))
	}
	if o.MinSamplesSplit < 2 {
		o.MinSamplesSplit = 2
	}
	return o
}

// TrainForest fits a bootstrap-aggregated forest of gini decision trees and
// flattens it into the artifact layout Score reads. Labels must be 0 or 1.
func TrainForest(ds *Dataset, opts TrainOptions) (*Forest, error) {
	rf, err := growForest(ds, opts)
	if err != nil {
		return nil, err
	}
	nFeatures := len(ds.X[0])
	forest := &Forest{
		Kind:         forestKind,
		FeatureNames: append([]string(nil), ds.FeatureNames...),
		NFeatures:    nFeatures,
		Trees:        make([]Tree, 0, len(rf.Trees)),
		TrainedAt:    time.Now().UTC(),
		TrainingRows: len(ds.X),
	}
	if len(forest.FeatureNames) != nFeatures {
		forest.FeatureNames = nil
	}
	for i := range rf.Trees {
		forest.Trees = append(forest.Trees, Tree{Nodes: flatten(&rf.Trees[i].Root)})
	}
	return forest, nil
}

func growForest(ds *Dataset, opts TrainOptions) (*randomforest.Forest, error) {
	if ds == nil || len(ds.X) == 0 {
		return nil, errors.New("training set is empty")
	}
	if len(ds.X) != len(ds.Y) {
		return nil, fmt.Errorf("training set has %d rows but %d labels", len(ds.X), len(ds.Y))
	}
	nFeatures := len(ds.X[0])
	if nFeatures == 0 {
		return nil, errors.New("training rows have no features")
	}
	for i, row := range ds.X {
		if len(row) != nFeatures {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrFeatureCount, i, len(row), nFeatures)
		}
		if ds.Y[i] != 0 && ds.Y[i] != 1 {
			return nil, fmt.Errorf("row %d has label %d, want 0 or 1", i, ds.Y[i])
		}
	}

	opts = opts.withDefaults(nFeatures)
	depth := fullDepth
	if opts.MaxDepth > 0 && opts.MaxDepth < fullDepth {
		// randomforest counts the root as depth 1
		depth = opts.MaxDepth + 1
	}
	rf := &randomforest.Forest{
		Data:      randomforest.ForestData{X: ds.X, Class: ds.Y},
		MFeatures: opts.MaxFeatures,
		LeafSize:  opts.MinSamplesSplit - 1,
		MaxDepth:  depth,
	}

	trainMu.Lock()
	defer trainMu.Unlock()
	if opts.Seed != 0 {
		workers := randomforest.NumWorkers
		randomforest.NumWorkers = 1
		defer func() { randomforest.NumWorkers = workers }()
		rand.Seed(opts.Seed) //nolint:staticcheck
	}
	rf.Train(opts.Trees)
	return rf, nil
}

// flatten lays a trained tree out depth-first with children after their
// parent. Splits that send every bootstrap row to one side are dropped.
// Node values are class counts recovered from the leaf fractions.
func flatten(root *randomforest.Branch) []Node {
	var nodes []Node
	var walk func(b *randomforest.Branch) int
	walk = func(b *randomforest.Branch) int {
		for !b.IsLeaf {
			if b.Branch0.Size == 0 {
				b = b.Branch1
			} else if b.Branch1.Size == 0 {
				b = b.Branch0
			} else {
				break
			}
		}
		pos := len(nodes)
		nodes = append(nodes, Node{Feature: -1, Left: -1, Right: -1})
		if b.IsLeaf {
			for c := 0; c < len(b.LeafValue) && c < 2; c++ {
				nodes[pos].Value[c] = math.Round(b.LeafValue[c] * float64(b.Size))
			}
			return pos
		}
		left := walk(b.Branch0)
		right := walk(b.Branch1)
		nodes[pos] = Node{
			Feature:   b.Attribute,
			Threshold: b.Value,
			Left:      left,
			Right:     right,
			Value:     [2]float64{nodes[left].Value[0] + nodes[right].Value[0], nodes[left].Value[1] + nodes[right].Value[1]},
		}
		return pos
	}
	walk(root)
	return nodes
}

// Accuracy is the share of rows where the classifier's probability,
// thresholded at 0.5, matches the label.
func Accuracy(c Classifier, ds *Dataset) (float64, error) {
	if ds.Len() == 0 {
		return 0, errors.New("evaluation set is empty")
	}
	correct := 0
	for i, row := range ds.X {
		p, err := c.Score(row)
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
		predicted := 0
		if p > 0.5 {
			predicted = 1
		}
		if predicted == ds.Y[i] {
			correct++
		}
	}
	return float64(correct) / float64(ds.Len()), nil
}
