package store

import "time"

// ResultTimeLayout is the format of model_outputs.result_time.
const ResultTimeLayout = "2006-01-02 15:04:05"

// ModelOutput is one persisted risk assessment. Rows are written once and
// never updated.
type ModelOutput struct {
	FarmerID      string  `gorm:"column:farmer_id;type:text"`
	FinancialRisk float64 `gorm:"column:financial_risk;type:real"`
	TechnicalRisk float64 `gorm:"column:technical_risk;type:real"`
	ResultTime    string  `gorm:"column:result_time;type:text;index"`
}

// TableName pins the table to the name the log viewer and exports expect.
func (ModelOutput) TableName() string {
	return "model_outputs"
}

// Time parses ResultTime in the local zone.
func (m ModelOutput) Time() (time.Time, error) {
	return time.ParseInLocation(ResultTimeLayout, m.ResultTime, time.Local)
}

// NewModelOutput stamps a record with at formatted as ResultTimeLayout.
func NewModelOutput(farmerID string, financialRisk, technicalRisk float64, at time.Time) ModelOutput {
	return ModelOutput{
		FarmerID:      farmerID,
		FinancialRisk: financialRisk,
		TechnicalRisk: technicalRisk,
		ResultTime:    at.Format(ResultTimeLayout),
	}
}
