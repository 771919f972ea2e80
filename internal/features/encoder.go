package features

// FinancialFeatureNames is the column order the financial model was trained on.
var FinancialFeatureNames = []string{"age", "income", "loan_amount", "region", "loan_term", "previous_default", "farm_type"}

// TechnicalFeatureNames is the column order the technical model was trained on.
var TechnicalFeatureNames = []string{"temp", "pH", "ammonia", "DO", "turbidity"}

// Request is one submitted assessment form.
type Request struct {
	FarmerID        string
	Age             int
	Income          int
	LoanAmount      int
	Region          Region
	LoanTerm        int
	PreviousDefault bool
	FarmType        FarmType
	WaterQuality    WaterQuality
}

// WaterQuality holds the pond readings fed to the technical model.
type WaterQuality struct {
	Temperature     float64
	PH              float64
	Ammonia         float64
	DissolvedOxygen float64
	Turbidity       float64
}

// FinancialVector is the encoded input of the loan default model.
type FinancialVector [7]float64

// TechnicalVector is the encoded input of the farm failure model.
type TechnicalVector [5]float64

// Slice returns a copy of the vector as a slice.
func (v FinancialVector) Slice() []float64 {
	out := make([]float64, len(v))
	copy(out, v[:])
	return out
}

// Slice returns a copy of the vector as a slice.
func (v TechnicalVector) Slice() []float64 {
	out := make([]float64, len(v))
	copy(out, v[:])
	return out
}

// Encode maps a request onto both model inputs.
func Encode(req Request) (FinancialVector, TechnicalVector) {
	return EncodeFinancial(req), EncodeTechnical(req.WaterQuality)
}

// EncodeFinancial produces [age, income, loan_amount, region, loan_term, previous_default, farm_type].
func EncodeFinancial(req Request) FinancialVector {
	prevDefault := 0.0
	if req.PreviousDefault {
		prevDefault = 1
	}
	return FinancialVector{
		float64(req.Age),
		float64(req.Income),
		float64(req.LoanAmount),
		req.Region.Code(),
		float64(req.LoanTerm),
		prevDefault,
		req.FarmType.Code(),
	}
}

// EncodeTechnical produces [temp, pH, ammonia, DO, turbidity].
func EncodeTechnical(wq WaterQuality) TechnicalVector {
	return TechnicalVector{
		wq.Temperature,
		wq.PH,
		wq.Ammonia,
		wq.DissolvedOxygen,
		wq.Turbidity,
	}
}
