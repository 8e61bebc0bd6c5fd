package feed

import (
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/gridwise/energysim/core/model"
	"github.com/gridwise/energysim/infra/logger"
)

// ErrUnavailable signals a simulated feed outage for the requested tick.
var ErrUnavailable = errors.New("feed: unavailable")

// WeatherConfig tunes the synthetic weather generator.
type WeatherConfig struct {
	Seed           int64   `json:"seed"`
	Location       string  `json:"location"`
	TicksPerDay    int     `json:"ticks_per_day"`
	MeanTempC      float64 `json:"mean_temp_c"`
	TempAmplitudeC float64 `json:"temp_amplitude_c"`
	PeakIrradiance float64 `json:"peak_irradiance_wm2"`
	JitterPct      float64 `json:"jitter_pct"`
	// DropoutPct is the per-tick probability of a simulated outage.
	DropoutPct float64 `json:"dropout_pct"`
}

// SetDefaults applies sane defaults.
func (c *WeatherConfig) SetDefaults() {
	if c.Location == "" {
		c.Location = "grid-west"
	}
	if c.TicksPerDay == 0 {
		c.TicksPerDay = 24
	}
	if c.MeanTempC == 0 {
		c.MeanTempC = 18
	}
	if c.TempAmplitudeC == 0 {
		c.TempAmplitudeC = 6
	}
	if c.PeakIrradiance == 0 {
		c.PeakIrradiance = 1000
	}
	if c.JitterPct == 0 {
		c.JitterPct = 0.05
	}
}

// WeatherGenerator produces a seeded diurnal weather curve: irradiance
// follows a half-sine over the daylight half of the cycle, temperature a
// full sine lagging it, cloud cover a bounded random walk. The same seed
// always yields the same sequence.
type WeatherGenerator struct {
	cfg   WeatherConfig
	log   logger.Logger
	rand  *rand.Rand
	cloud float64
}

// NewWeatherGenerator creates a generator with defaults applied.
func NewWeatherGenerator(cfg WeatherConfig) *WeatherGenerator {
	cfg.SetDefaults()
	return &WeatherGenerator{
		cfg:   cfg,
		log:   logger.New("weather-feed"),
		rand:  rand.New(rand.NewSource(cfg.Seed)),
		cloud: 0.3,
	}
}

// Sample returns the tick's weather. A configured dropout probability
// simulates feed outages with ErrUnavailable.
func (g *WeatherGenerator) Sample(tick model.Tick) (*model.WeatherSample, error) {
	if g.cfg.DropoutPct > 0 && g.rand.Float64() < g.cfg.DropoutPct {
		g.log.Warnf("tick %d: simulated weather outage", tick)
		return nil, ErrUnavailable
	}

	frac := float64(int(tick)%g.cfg.TicksPerDay) / float64(g.cfg.TicksPerDay)

	// Daylight occupies the middle half of the cycle.
	irr := 0.0
	if day := (frac - 0.25) * 2; day >= 0 && day <= 1 {
		irr = g.cfg.PeakIrradiance * math.Sin(math.Pi*day)
	}

	// Temperature peaks in the afternoon, lagging irradiance.
	temp := g.cfg.MeanTempC + g.cfg.TempAmplitudeC*math.Sin(2*math.Pi*(frac-0.375))

	// Cloud cover wanders but stays in [0,1].
	g.cloud += (g.rand.Float64() - 0.5) * 0.2
	if g.cloud < 0 {
		g.cloud = 0
	}
	if g.cloud > 1 {
		g.cloud = 1
	}
	irr *= 1 - 0.5*g.cloud

	return &model.WeatherSample{
		Tick:          tick,
		Time:          time.Now(),
		Location:      g.cfg.Location,
		TemperatureC:  g.jitter(temp),
		CloudCover:    g.cloud,
		IrradianceWm2: g.jitter(irr),
		WindMS:        4 + 3*g.rand.Float64(),
	}, nil
}

func (g *WeatherGenerator) jitter(v float64) float64 {
	return v * (1 + (g.rand.Float64()*2-1)*g.cfg.JitterPct)
}
