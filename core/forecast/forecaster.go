package forecast

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/gridwise/energysim/core/logger"
	"github.com/gridwise/energysim/core/model"
)

// Config defines baselines and tuning for the forecaster.
type Config struct {
	// Baselines used on cold start and as anchors for adjustments.
	BaselineDemandKWh float64 `json:"baseline_demand_kwh"`
	BaselineSupplyKWh float64 `json:"baseline_supply_kwh"`
	BaselinePrice     float64 `json:"baseline_price"`
	// WindowTicks bounds the observation history used for statistics.
	WindowTicks int `json:"window_ticks"`
	// StaleDecay multiplies confidence for every tick the weather feed has
	// been unavailable. Must be in (0,1).
	StaleDecay float64 `json:"stale_decay"`
	// Horizon is the validity window stamped on each forecast.
	HorizonSeconds int `json:"horizon_seconds"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.BaselineDemandKWh == 0 {
		c.BaselineDemandKWh = 120
	}
	if c.BaselineSupplyKWh == 0 {
		c.BaselineSupplyKWh = 110
	}
	if c.BaselinePrice == 0 {
		c.BaselinePrice = 0.05
	}
	if c.WindowTicks == 0 {
		c.WindowTicks = 24
	}
	if c.StaleDecay == 0 {
		c.StaleDecay = 0.8
	}
	if c.HorizonSeconds == 0 {
		c.HorizonSeconds = 60
	}
}

// observation is one tick's cleared market outcome.
type observation struct {
	price   float64
	matched float64
}

// Forecaster produces demand/supply/price forecasts each tick from the
// observed clearing history and the exogenous weather feed. It has no side
// effects beyond the forecasts it returns.
type Forecaster struct {
	cfg Config
	log logger.Logger

	history     []observation
	lastWeather *model.WeatherSample
	staleTicks  int
	staleBase   float64
}

// New creates a Forecaster with defaults applied.
func New(cfg Config, log logger.Logger) *Forecaster {
	cfg.SetDefaults()
	return &Forecaster{cfg: cfg, log: log}
}

// Observe feeds one tick's clearing outcome into the history window.
func (f *Forecaster) Observe(tick model.Tick, clearingPrice, matchedKWh float64) {
	if matchedKWh <= 0 {
		return
	}
	f.history = append(f.history, observation{price: clearingPrice, matched: matchedKWh})
	if len(f.history) > f.cfg.WindowTicks {
		f.history = f.history[len(f.history)-f.cfg.WindowTicks:]
	}
}

// Forecast produces the forecast for the given tick. A nil weather sample
// means the feed is unavailable; the last sample is carried forward and
// confidence decays strictly each stale tick. With no history at all the
// forecast is the neutral baseline with confidence 0.
func (f *Forecaster) Forecast(tick model.Tick, w *model.WeatherSample) model.Forecast {
	if w != nil {
		f.lastWeather = w
		f.staleTicks = 0
	} else {
		f.staleTicks++
		f.log.Warnf("tick %d: weather unavailable for %d tick(s), carrying last sample forward", tick, f.staleTicks)
	}

	horizon := time.Duration(f.cfg.HorizonSeconds) * time.Second
	if len(f.history) == 0 && f.lastWeather == nil {
		// Cold start: neutral forecast, zero expected change.
		return model.Forecast{
			Tick:              tick,
			Horizon:           horizon,
			ExpectedDemandKWh: f.cfg.BaselineDemandKWh,
			ExpectedSupplyKWh: f.cfg.BaselineSupplyKWh,
			ExpectedPrice:     f.cfg.BaselinePrice,
			Confidence:        0,
		}
	}

	demand := f.cfg.BaselineDemandKWh
	supply := f.cfg.BaselineSupplyKWh
	price := f.cfg.BaselinePrice
	if len(f.history) > 0 {
		prices := make([]float64, len(f.history))
		for i, o := range f.history {
			prices[i] = o.price
		}
		price = stat.Mean(prices, nil)
	}
	if f.lastWeather != nil {
		supply *= supplyFactor(*f.lastWeather)
		demand *= demandFactor(*f.lastWeather)
	}
	if supply > 0 {
		// Scarcity pushes the expected price; the reference projects
		// baseline price by the demand/supply ratio.
		price *= demand / supply
	}

	return model.Forecast{
		Tick:              tick,
		Horizon:           horizon,
		ExpectedDemandKWh: demand,
		ExpectedSupplyKWh: supply,
		ExpectedPrice:     price,
		Confidence:        f.confidence(),
	}
}

// confidence starts from a base, rewards a full history window and fresh
// weather, and decays while the feed is stale. The base is pinned when the
// feed first goes stale, so clearing observations landing mid-outage cannot
// raise it: confidence is strictly decreasing across consecutive stale
// ticks.
func (f *Forecaster) confidence() float64 {
	base := 0.5
	if len(f.history) >= f.cfg.WindowTicks {
		base += 0.3
	} else if len(f.history) > 0 {
		base += 0.15
	}
	if f.staleTicks == 0 {
		if f.lastWeather != nil {
			base += 0.2
		}
		if base > 1 {
			base = 1
		}
		return base
	}
	if f.staleTicks == 1 || base < f.staleBase {
		f.staleBase = base
	}
	return f.staleBase * math.Pow(f.cfg.StaleDecay, float64(f.staleTicks))
}

// supplyFactor scales expected supply by solar conditions: irradiance
// against a clear-sky reference, attenuated by cloud cover.
func supplyFactor(w model.WeatherSample) float64 {
	const clearSkyWm2 = 1000.0
	irr := w.IrradianceWm2 / clearSkyWm2
	if irr > 1 {
		irr = 1
	}
	if irr < 0 {
		irr = 0
	}
	factor := 0.5 + 0.7*irr*(1-0.6*w.CloudCover)
	if factor < 0.1 {
		factor = 0.1
	}
	return factor
}

// demandFactor scales expected demand by temperature: heating below 15C,
// cooling above 22C.
func demandFactor(w model.WeatherSample) float64 {
	switch {
	case w.TemperatureC < 15:
		return 1 + 0.02*(15-w.TemperatureC)
	case w.TemperatureC > 22:
		return 1 + 0.03*(w.TemperatureC-22)
	default:
		return 1
	}
}
