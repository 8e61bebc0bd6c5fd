package trading

import "github.com/gridwise/energysim/core/model"

// PricingPolicy computes a limit price from the tick's forecast, the
// agent's own state and the last published grid verdict. Policies are pure
// functions swapped via configuration, not inheritance.
type PricingPolicy interface {
	Price(f model.Forecast, st model.AgentState, gs *model.GridState) float64
}

// directive returns the active directive, treating an absent grid state as
// none. The grid state passed in is always the last published one: the
// directive influences ticks strictly after its own.
func directive(gs *model.GridState) model.Directive {
	if gs == nil {
		return model.DirectiveNone
	}
	return gs.Directive
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ReservePricing interpolates linearly between a floor and a ceiling price
// keyed on battery reserve: a full battery prices at the floor (sell
// eagerly), an empty one at the ceiling. The forecast price is blended in
// with ForecastWeight, and curtailment directives bias the result down by
// DirectiveBias. The result is monotonic in all three inputs and never
// negative.
type ReservePricing struct {
	FloorPrice     float64 `json:"floor_price"`
	CeilingPrice   float64 `json:"ceiling_price"`
	ForecastWeight float64 `json:"forecast_weight"` // [0,1]
	DirectiveBias  float64 `json:"directive_bias"`  // [0,1)
}

// SetDefaults applies sane defaults.
func (p *ReservePricing) SetDefaults() {
	if p.CeilingPrice == 0 {
		p.CeilingPrice = 0.20
	}
	if p.FloorPrice == 0 {
		p.FloorPrice = 0.02
	}
	if p.ForecastWeight == 0 {
		p.ForecastWeight = 0.6
	}
	if p.DirectiveBias == 0 {
		p.DirectiveBias = 0.1
	}
}

// Price implements PricingPolicy for the sell side.
func (p ReservePricing) Price(f model.Forecast, st model.AgentState, gs *model.GridState) float64 {
	base := p.CeilingPrice - (p.CeilingPrice-p.FloorPrice)*st.BatteryReserve()
	price := p.ForecastWeight*f.ExpectedPrice + (1-p.ForecastWeight)*base
	if d := directive(gs); d.Curtails() || d.BoostsSupply() {
		price *= 1 - p.DirectiveBias
	}
	return clamp(price, p.FloorPrice, p.CeilingPrice)
}

// ElasticPricing prices the buy side: willingness to pay falls as the
// expected price rises above an anchor (demand elasticity) and rises with
// battery headroom urgency. Curtailment directives bias the bid down.
type ElasticPricing struct {
	AnchorPrice   float64 `json:"anchor_price"`
	MaxPrice      float64 `json:"max_price"`
	Elasticity    float64 `json:"elasticity"` // >0, higher is more price-sensitive
	DirectiveBias float64 `json:"directive_bias"`
}

// SetDefaults applies sane defaults.
func (p *ElasticPricing) SetDefaults() {
	if p.AnchorPrice == 0 {
		p.AnchorPrice = 0.06
	}
	if p.MaxPrice == 0 {
		p.MaxPrice = 0.25
	}
	if p.Elasticity == 0 {
		p.Elasticity = 0.5
	}
	if p.DirectiveBias == 0 {
		p.DirectiveBias = 0.15
	}
}

// Price implements PricingPolicy for the buy side.
func (p ElasticPricing) Price(f model.Forecast, st model.AgentState, gs *model.GridState) float64 {
	price := p.AnchorPrice
	if f.ExpectedPrice > 0 {
		// Bid above the expected price by a margin that shrinks as the
		// expectation climbs past the anchor.
		ratio := f.ExpectedPrice / p.AnchorPrice
		price = f.ExpectedPrice * (1 + p.Elasticity/ratio)
	}
	// Low battery raises urgency to buy.
	price *= 1 + 0.3*(1-st.BatteryReserve())
	if directive(gs).Curtails() {
		price *= 1 - p.DirectiveBias
	}
	return clamp(price, 0, p.MaxPrice)
}
