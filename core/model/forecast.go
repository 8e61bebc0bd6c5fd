package model

import "time"

// Forecast is the forecasting agent's estimate for one tick. It is
// immutable once published and consumed by traders for that tick only.
type Forecast struct {
	Tick              Tick          `json:"tick"`
	Horizon           time.Duration `json:"horizon"`
	ExpectedDemandKWh float64       `json:"expected_demand_kwh"`
	ExpectedSupplyKWh float64       `json:"expected_supply_kwh"`
	ExpectedPrice     float64       `json:"expected_price"`
	// Confidence is in [0,1]. 0 means a cold-start neutral forecast.
	Confidence float64 `json:"confidence"`
}

// ScarcityRatio returns expected demand over expected supply, or 1 when
// supply is unknown. Values above 1 indicate expected shortage.
func (f Forecast) ScarcityRatio() float64 {
	if f.ExpectedSupplyKWh <= 0 {
		return 1
	}
	return f.ExpectedDemandKWh / f.ExpectedSupplyKWh
}
