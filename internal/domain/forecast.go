package domain

import "github.com/google/uuid"

// RestockAction classifies a product against its forecast demand
type RestockAction string

const (
	RestockStockout       RestockAction = "STOCKOUT"
	RestockWarning        RestockAction = "WARNING"
	RestockOK             RestockAction = "OK"
	RestockForecastFailed RestockAction = "FORECAST_FAILED"
)

// RestockAdvice combines current stock with the forecast demand for the
// next seven days
type RestockAdvice struct {
	ProductID      uuid.UUID     `json:"product_id"`
	ProductName    string        `json:"product_name"`
	CurrentStock   int           `json:"current_stock"`
	ForecastDemand int           `json:"forecast_next_7_days"`
	ForecastFailed bool          `json:"forecast_failed"`
	Action         RestockAction `json:"action"`
}

// NeedsRestock reports whether the advice should be surfaced as a suggestion
func (a RestockAdvice) NeedsRestock() bool {
	return a.Action == RestockStockout || a.Action == RestockWarning
}
