package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/EbinDavis252/Aqua-risk/internal/features"
	"github.com/EbinDavis252/Aqua-risk/internal/model"
)

// financialSpec reads the loan table. Categorical columns accept either
// the label ("Kerala", "Brackish", "Yes") or its numeric code.
func financialSpec(target string) model.DatasetSpec {
	names := features.FinancialFeatureNames
	return model.DatasetSpec{
		Features: []model.Column{
			{Name: names[0]},
			{Name: names[1]},
			{Name: names[2]},
			{Name: names[3], Parse: categorical(len(features.Regions()), func(s string) (float64, error) {
				r, err := features.ParseRegion(s)
				return r.Code(), err
			})},
			{Name: names[4]},
			{Name: names[5], Parse: categorical(2, func(s string) (float64, error) {
				yes, err := features.ParsePreviousDefault(s)
				if yes {
					return 1, err
				}
				return 0, err
			})},
			{Name: names[6], Parse: categorical(len(features.FarmTypes()), func(s string) (float64, error) {
				f, err := features.ParseFarmType(s)
				return f.Code(), err
			})},
		},
		Target: target,
	}
}

func technicalSpec(target string) model.DatasetSpec {
	cols := make([]model.Column, 0, len(features.TechnicalFeatureNames))
	for _, name := range features.TechnicalFeatureNames {
		cols = append(cols, model.Column{Name: name})
	}
	return model.DatasetSpec{Features: cols, Target: target}
}

// categorical accepts an integer code in [0, size) or whatever byLabel accepts.
func categorical(size int, byLabel func(string) (float64, error)) func(string) (float64, error) {
	return func(cell string) (float64, error) {
		cell = strings.TrimSpace(cell)
		if code, err := strconv.ParseFloat(cell, 64); err == nil {
			if code != float64(int(code)) || code < 0 || int(code) >= size {
				return 0, fmt.Errorf("code %q out of range 0-%d", cell, size-1)
			}
			return code, nil
		}
		return byLabel(cell)
	}
}
