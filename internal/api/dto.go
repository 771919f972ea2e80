package api

import (
	"errors"
	"fmt"
	"strings"

	"github.com/EbinDavis252/Aqua-risk/internal/features"
	"github.com/EbinDavis252/Aqua-risk/internal/model"
	"github.com/EbinDavis252/Aqua-risk/internal/risk"
	"github.com/EbinDavis252/Aqua-risk/internal/store"
)

// AssessmentRequest is the submitted form, as JSON or as form fields.
// Numeric fields are pointers so an absent value fails binding instead of
// reading as zero. Ranges are checked against features bounds after binding.
type AssessmentRequest struct {
	FarmerID        string   `json:"farmer_id" form:"farmer_id" binding:"required,max=64"`
	Age             *int     `json:"age" form:"age" binding:"required"`
	Income          *int     `json:"income" form:"income" binding:"required"`
	LoanAmount      *int     `json:"loan_amount" form:"loan_amount" binding:"required"`
	Region          string   `json:"region" form:"region" binding:"required"`
	LoanTerm        *int     `json:"loan_term" form:"loan_term" binding:"required"`
	PreviousDefault string   `json:"previous_default" form:"previous_default" binding:"required"`
	FarmType        string   `json:"farm_type" form:"farm_type" binding:"required"`
	Temperature     *float64 `json:"temp" form:"temp" binding:"required"`
	PH              *float64 `json:"ph" form:"ph" binding:"required"`
	Ammonia         *float64 `json:"ammonia" form:"ammonia" binding:"required"`
	DissolvedOxygen *float64 `json:"do" form:"do" binding:"required"`
	Turbidity       *float64 `json:"turbidity" form:"turbidity" binding:"required"`
}

// ToFeatures resolves the categorical fields and checks every numeric bound.
func (r AssessmentRequest) ToFeatures() (features.Request, error) {
	if missing := r.missingNumbers(); len(missing) > 0 {
		return features.Request{}, fmt.Errorf("missing fields: %s", strings.Join(missing, ", "))
	}
	region, err := features.ParseRegion(r.Region)
	if err != nil {
		return features.Request{}, err
	}
	farmType, err := features.ParseFarmType(r.FarmType)
	if err != nil {
		return features.Request{}, err
	}
	previousDefault, err := features.ParsePreviousDefault(r.PreviousDefault)
	if err != nil {
		return features.Request{}, err
	}
	farmerID := strings.TrimSpace(r.FarmerID)
	if farmerID == "" {
		return features.Request{}, errors.New("farmer_id is required")
	}
	req := features.Request{
		FarmerID:        farmerID,
		Age:             *r.Age,
		Income:          *r.Income,
		LoanAmount:      *r.LoanAmount,
		Region:          region,
		LoanTerm:        *r.LoanTerm,
		PreviousDefault: previousDefault,
		FarmType:        farmType,
		WaterQuality: features.WaterQuality{
			Temperature:     *r.Temperature,
			PH:              *r.PH,
			Ammonia:         *r.Ammonia,
			DissolvedOxygen: *r.DissolvedOxygen,
			Turbidity:       *r.Turbidity,
		},
	}
	if err := features.CheckBounds(req); err != nil {
		return features.Request{}, err
	}
	return req, nil
}

// numbers maps each numeric field name to its submitted value, nil when absent.
func (r AssessmentRequest) numbers() map[string]*float64 {
	return map[string]*float64{
		features.AgeBound.Field:             intValue(r.Age),
		features.IncomeBound.Field:          intValue(r.Income),
		features.LoanAmountBound.Field:      intValue(r.LoanAmount),
		features.LoanTermBound.Field:        intValue(r.LoanTerm),
		features.TemperatureBound.Field:     r.Temperature,
		features.PHBound.Field:              r.PH,
		features.AmmoniaBound.Field:         r.Ammonia,
		features.DissolvedOxygenBound.Field: r.DissolvedOxygen,
		features.TurbidityBound.Field:       r.Turbidity,
	}
}

func (r AssessmentRequest) missingNumbers() []string {
	var missing []string
	values := r.numbers()
	for _, b := range append(features.FarmerBounds(), features.WaterBounds()...) {
		if values[b.Field] == nil {
			missing = append(missing, b.Field)
		}
	}
	return missing
}

func intValue(p *int) *float64 {
	if p == nil {
		return nil
	}
	v := float64(*p)
	return &v
}

func ptr[T any](v T) *T {
	return &v
}

// requestFromFeatures fills the form back from a typed request.
func requestFromFeatures(req features.Request) AssessmentRequest {
	return AssessmentRequest{
		FarmerID:        req.FarmerID,
		Age:             ptr(req.Age),
		Income:          ptr(req.Income),
		LoanAmount:      ptr(req.LoanAmount),
		Region:          req.Region.String(),
		LoanTerm:        ptr(req.LoanTerm),
		PreviousDefault: features.DefaultFlagLabel(req.PreviousDefault),
		FarmType:        req.FarmType.String(),
		Temperature:     ptr(req.WaterQuality.Temperature),
		PH:              ptr(req.WaterQuality.PH),
		Ammonia:         ptr(req.WaterQuality.Ammonia),
		DissolvedOxygen: ptr(req.WaterQuality.DissolvedOxygen),
		Turbidity:       ptr(req.WaterQuality.Turbidity),
	}
}

// AssessmentDTO is the API representation of one log record.
type AssessmentDTO struct {
	FarmerID      string  `json:"farmer_id"`
	FinancialRisk float64 `json:"financial_risk"`
	TechnicalRisk float64 `json:"technical_risk"`
	ResultTime    string  `json:"result_time"`
}

// FromRecord converts a store.ModelOutput into the DTO representation.
func FromRecord(m store.ModelOutput) AssessmentDTO {
	return AssessmentDTO{
		FarmerID:      m.FarmerID,
		FinancialRisk: m.FinancialRisk,
		TechnicalRisk: m.TechnicalRisk,
		ResultTime:    m.ResultTime,
	}
}

// AssessmentResponse reports a completed or unrecorded assessment.
type AssessmentResponse struct {
	ID               string    `json:"id"`
	FarmerID         string    `json:"farmer_id"`
	FinancialRisk    float64   `json:"financial_risk"`
	TechnicalRisk    float64   `json:"technical_risk"`
	FinancialPercent string    `json:"financial_percent"`
	TechnicalPercent string    `json:"technical_percent"`
	FinancialBand    risk.Band `json:"financial_band"`
	TechnicalBand    risk.Band `json:"technical_band"`
	ResultTime       string    `json:"result_time"`
	Recorded         bool      `json:"recorded"`
	Error            string    `json:"error,omitempty"`
}

// FromResult converts a risk.Result into the response payload.
func FromResult(r risk.Result, recorded bool) AssessmentResponse {
	return AssessmentResponse{
		ID:               r.ID,
		FarmerID:         r.FarmerID,
		FinancialRisk:    r.FinancialRisk,
		TechnicalRisk:    r.TechnicalRisk,
		FinancialPercent: risk.Percent(r.FinancialRisk),
		TechnicalPercent: risk.Percent(r.TechnicalRisk),
		FinancialBand:    risk.BandFor(r.FinancialRisk),
		TechnicalBand:    risk.BandFor(r.TechnicalRisk),
		ResultTime:       r.ResultTime,
		Recorded:         recorded,
	}
}

// ListResponse is the paginated assessment log.
type ListResponse struct {
	Items []AssessmentDTO `json:"items"`
	Total int64           `json:"total"`
}

// ConfigResponse describes the form and the loaded models.
type ConfigResponse struct {
	Regions         []string              `json:"regions"`
	FarmTypes       []string              `json:"farm_types"`
	PreviousDefault []string              `json:"previous_default"`
	FarmerBounds    []features.Bound      `json:"farmer_bounds"`
	WaterBounds     []features.Bound      `json:"water_bounds"`
	Features        map[string][]string   `json:"features"`
	Models          map[string]model.Info `json:"models"`
	Records         int64                 `json:"records"`
}
