package model

import "time"

// WeatherSample is one observation from the exogenous weather feed.
type WeatherSample struct {
	Tick          Tick      `json:"tick"`
	Time          time.Time `json:"time"`
	Location      string    `json:"location"`
	TemperatureC  float64   `json:"temperature_c"`
	CloudCover    float64   `json:"cloud_cover"` // [0,1]
	IrradianceWm2 float64   `json:"irradiance_wm2"`
	WindMS        float64   `json:"wind_ms"`
}

// Telemetry carries grid measurements for one tick. Supply and demand
// deltas describe exogenous imbalance not visible through cleared trades.
type Telemetry struct {
	Tick           Tick    `json:"tick"`
	FrequencyHz    float64 `json:"frequency_hz"`
	VoltageV       float64 `json:"voltage_v"`
	SupplyDeltaKWh float64 `json:"supply_delta_kwh"`
	DemandDeltaKWh float64 `json:"demand_delta_kwh"`
}
