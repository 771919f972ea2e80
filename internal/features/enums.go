package features

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownRegion      = errors.New("unknown region")
	ErrUnknownFarmType    = errors.New("unknown farm type")
	ErrUnknownDefaultFlag = errors.New("unknown previous default value")
)

// Region is the farm's state. The numeric value is the training-time code.
type Region int

const (
	Andhra Region = iota
	TamilNadu
	Kerala
	Karnataka
)

var regionNames = [...]string{"Andhra", "TamilNadu", "Kerala", "Karnataka"}

// Regions lists every region in code order.
func Regions() []Region {
	return []Region{Andhra, TamilNadu, Kerala, Karnataka}
}

// ParseRegion resolves a form value such as "Kerala" to its Region.
func ParseRegion(value string) (Region, error) {
	trimmed := strings.TrimSpace(value)
	for i, name := range regionNames {
		if strings.EqualFold(trimmed, name) {
			return Region(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRegion, value)
}

func (r Region) String() string {
	if r < 0 || int(r) >= len(regionNames) {
		return fmt.Sprintf("Region(%d)", int(r))
	}
	return regionNames[r]
}

// Code returns the numeric encoding used in the financial vector.
func (r Region) Code() float64 {
	return float64(r)
}

// FarmType distinguishes freshwater from brackish operations.
type FarmType int

const (
	Freshwater FarmType = iota
	Brackish
)

var farmTypeNames = [...]string{"Freshwater", "Brackish"}

// FarmTypes lists every farm type in code order.
func FarmTypes() []FarmType {
	return []FarmType{Freshwater, Brackish}
}

// ParseFarmType resolves a form value such as "Brackish" to its FarmType.
func ParseFarmType(value string) (FarmType, error) {
	trimmed := strings.TrimSpace(value)
	for i, name := range farmTypeNames {
		if strings.EqualFold(trimmed, name) {
			return FarmType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFarmType, value)
}

func (f FarmType) String() string {
	if f < 0 || int(f) >= len(farmTypeNames) {
		return fmt.Sprintf("FarmType(%d)", int(f))
	}
	return farmTypeNames[f]
}

// Code returns the numeric encoding used in the financial vector.
func (f FarmType) Code() float64 {
	return float64(f)
}

// ParsePreviousDefault accepts the form's "Yes"/"No" choice.
func ParsePreviousDefault(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownDefaultFlag, value)
	}
}

// DefaultFlagLabel renders the flag the way the form shows it.
func DefaultFlagLabel(previousDefault bool) string {
	if previousDefault {
		return "Yes"
	}
	return "No"
}
