package model

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strconv"
	"strings"
)

// Column names a CSV column and how to turn a cell into a feature value.
// A nil Parse reads the cell as a float.
type Column struct {
	Name  string
	Parse func(string) (float64, error)
}

// DatasetSpec selects the feature columns, in vector order, and the label.
type DatasetSpec struct {
	Features []Column
	Target   string
}

// Dataset is a labelled training table.
type Dataset struct {
	FeatureNames []string
	X            [][]float64
	Y            []int
}

// Len returns the row count.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.X)
}

// LoadCSV reads a headered CSV into a Dataset. Column lookup ignores case.
func LoadCSV(path string, spec DatasetSpec) (*Dataset, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("dataset path is empty")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()
	return ReadCSV(file, spec)
}

// ReadCSV is LoadCSV over an arbitrary reader.
func ReadCSV(r io.Reader, spec DatasetSpec) (*Dataset, error) {
	if len(spec.Features) == 0 {
		return nil, errors.New("dataset spec has no feature columns")
	}
	if strings.TrimSpace(spec.Target) == "" {
		return nil, errors.New("dataset spec has no target column")
	}

	reader := csv.NewReader(bufio.NewReader(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	positions := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		positions[strings.ToLower(strings.TrimSpace(name))] = i
	}

	featureCols := make([]int, len(spec.Features))
	names := make([]string, len(spec.Features))
	for i, col := range spec.Features {
		pos, ok := positions[strings.ToLower(col.Name)]
		if !ok {
			return nil, fmt.Errorf("dataset is missing column %q", col.Name)
		}
		featureCols[i] = pos
		names[i] = col.Name
	}
	targetCol, ok := positions[strings.ToLower(spec.Target)]
	if !ok {
		return nil, fmt.Errorf("dataset is missing target column %q", spec.Target)
	}

	ds := &Dataset{FeatureNames: names}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read dataset row %d: %w", line, err)
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}

		row := make([]float64, len(spec.Features))
		for i, col := range spec.Features {
			cell, err := cellAt(record, featureCols[i])
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", line, col.Name, err)
			}
			parse := col.Parse
			if parse == nil {
				parse = ParseFloat
			}
			v, err := parse(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", line, col.Name, err)
			}
			row[i] = v
		}
		cell, err := cellAt(record, targetCol)
		if err != nil {
			return nil, fmt.Errorf("row %d target: %w", line, err)
		}
		label, err := ParseLabel(cell)
		if err != nil {
			return nil, fmt.Errorf("row %d target: %w", line, err)
		}
		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, label)
	}
	if len(ds.X) == 0 {
		return nil, errors.New("dataset has no rows")
	}
	return ds, nil
}

// Split shuffles the rows and holds out testFraction of them.
func (d *Dataset) Split(testFraction float64, seed int64) (train, test *Dataset) {
	n := d.Len()
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(float64(n)*testFraction + 0.999999)
	if testFraction <= 0 {
		nTest = 0
	}
	if nTest >= n {
		nTest = n - 1
	}
	train = &Dataset{FeatureNames: d.FeatureNames}
	test = &Dataset{FeatureNames: d.FeatureNames}
	for i, idx := range perm {
		target := train
		if i < nTest {
			target = test
		}
		target.X = append(target.X, d.X[idx])
		target.Y = append(target.Y, d.Y[idx])
	}
	return train, test
}

func cellAt(record []string, idx int) (string, error) {
	if idx >= len(record) {
		return "", errors.New("missing value")
	}
	return strings.TrimSpace(record[idx]), nil
}

// ParseFloat parses a numeric cell.
func ParseFloat(value string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", value)
	}
	return v, nil
}

// ParseLabel accepts 0/1, yes/no and true/false.
func ParseLabel(value string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "1.0", "yes", "true":
		return 1, nil
	case "0", "0.0", "no", "false":
		return 0, nil
	default:
		return 0, fmt.Errorf("label %q is not binary", value)
	}
}
