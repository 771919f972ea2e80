package features

import (
	"fmt"
	"strings"
)

// Bound describes the accepted range of one numeric form field.
type Bound struct {
	Field   string  `json:"field"`
	Label   string  `json:"label"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Step    float64 `json:"step"`
}

// Contains reports whether v lies inside the closed range.
func (b Bound) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

var (
	AgeBound             = Bound{Field: "age", Label: "Age", Min: 18, Max: 70, Default: 35, Step: 1}
	IncomeBound          = Bound{Field: "income", Label: "Monthly Income (INR)", Min: 1000, Max: 200000, Default: 50000, Step: 1}
	LoanAmountBound      = Bound{Field: "loan_amount", Label: "Loan Amount (INR)", Min: 1000, Max: 500000, Default: 80000, Step: 1}
	LoanTermBound        = Bound{Field: "loan_term", Label: "Loan Term (months)", Min: 3, Max: 36, Default: 12, Step: 1}
	TemperatureBound     = Bound{Field: "temp", Label: "Water Temperature (°C)", Min: 20, Max: 40, Default: 28, Step: 1}
	PHBound              = Bound{Field: "ph", Label: "pH Level", Min: 5.0, Max: 9.0, Default: 7.5, Step: 0.01}
	AmmoniaBound         = Bound{Field: "ammonia", Label: "Ammonia Level (mg/L)", Min: 0.0, Max: 5.0, Default: 0.5, Step: 0.01}
	DissolvedOxygenBound = Bound{Field: "do", Label: "Dissolved Oxygen (mg/L)", Min: 1.0, Max: 10.0, Default: 5.0, Step: 0.01}
	TurbidityBound       = Bound{Field: "turbidity", Label: "Turbidity (NTU)", Min: 0, Max: 10, Default: 3, Step: 1}
)

// FarmerBounds are the loan-side numeric fields in form order.
func FarmerBounds() []Bound {
	return []Bound{AgeBound, IncomeBound, LoanAmountBound, LoanTermBound}
}

// WaterBounds are the water-quality fields in form order.
func WaterBounds() []Bound {
	return []Bound{TemperatureBound, PHBound, AmmoniaBound, DissolvedOxygenBound, TurbidityBound}
}

// DefaultRequest is the form as first shown.
func DefaultRequest() Request {
	return Request{
		Age:        int(AgeBound.Default),
		Income:     int(IncomeBound.Default),
		LoanAmount: int(LoanAmountBound.Default),
		Region:     Andhra,
		LoanTerm:   int(LoanTermBound.Default),
		FarmType:   Freshwater,
		WaterQuality: WaterQuality{
			Temperature:     TemperatureBound.Default,
			PH:              PHBound.Default,
			Ammonia:         AmmoniaBound.Default,
			DissolvedOxygen: DissolvedOxygenBound.Default,
			Turbidity:       TurbidityBound.Default,
		},
	}
}

// BoundsError lists every field outside its range.
type BoundsError struct {
	Fields []string
}

func (e *BoundsError) Error() string {
	return "out of range: " + strings.Join(e.Fields, ", ")
}

// CheckBounds verifies every numeric field against the form ranges. The
// encoder itself never checks; callers accepting user input do.
func CheckBounds(req Request) error {
	checks := []struct {
		bound Bound
		value float64
	}{
		{AgeBound, float64(req.Age)},
		{IncomeBound, float64(req.Income)},
		{LoanAmountBound, float64(req.LoanAmount)},
		{LoanTermBound, float64(req.LoanTerm)},
		{TemperatureBound, req.WaterQuality.Temperature},
		{PHBound, req.WaterQuality.PH},
		{AmmoniaBound, req.WaterQuality.Ammonia},
		{DissolvedOxygenBound, req.WaterQuality.DissolvedOxygen},
		{TurbidityBound, req.WaterQuality.Turbidity},
	}
	var bad []string
	for _, c := range checks {
		if !c.bound.Contains(c.value) {
			bad = append(bad, fmt.Sprintf("%s=%g (want %g-%g)", c.bound.Field, c.value, c.bound.Min, c.bound.Max))
		}
	}
	if len(bad) > 0 {
		return &BoundsError{Fields: bad}
	}
	return nil
}
