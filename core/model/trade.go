package model

// Trade records a matched (buyer, seller) pair for one tick. Trades are
// immutable once created by the clearing engine.
type Trade struct {
	ID            string  `json:"id"`
	Tick          Tick    `json:"tick"`
	BuyerID       string  `json:"buyer_id"`
	SellerID      string  `json:"seller_id"`
	QuantityKWh   float64 `json:"quantity_kwh"`
	ClearingPrice float64 `json:"clearing_price"`
}

// TradeSet is the atomic publication unit for one tick's clearing result:
// either the whole set is visible on the bus or none of it.
type TradeSet struct {
	Tick          Tick    `json:"tick"`
	Trades        []Trade `json:"trades"`
	ClearingPrice float64 `json:"clearing_price"`
	Degraded      bool    `json:"degraded"`
}

// MatchedKWh returns the total energy exchanged in the set.
func (ts TradeSet) MatchedKWh() float64 {
	total := 0.0
	for _, t := range ts.Trades {
		total += t.QuantityKWh
	}
	return total
}

// BoughtKWh returns the quantity the given agent bought in the set.
func (ts TradeSet) BoughtKWh(agentID string) float64 {
	total := 0.0
	for _, t := range ts.Trades {
		if t.BuyerID == agentID {
			total += t.QuantityKWh
		}
	}
	return total
}

// SoldKWh returns the quantity the given agent sold in the set.
func (ts TradeSet) SoldKWh(agentID string) float64 {
	total := 0.0
	for _, t := range ts.Trades {
		if t.SellerID == agentID {
			total += t.QuantityKWh
		}
	}
	return total
}
