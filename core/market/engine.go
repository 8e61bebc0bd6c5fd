package market

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gridwise/energysim/core/logger"
	"github.com/gridwise/energysim/core/model"
)

// Phase tracks the engine's per-tick state machine.
type Phase int

const (
	PhaseCollecting Phase = iota
	PhaseClearing
	PhaseSettled
)

// String returns a human-readable representation of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseCollecting:
		return "collecting"
	case PhaseClearing:
		return "clearing"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// ErrAmbiguousClearing signals a violated clearing invariant. Given the
// deterministic tie-break rules it should never occur; when it does, only
// the affected tick's clearing is abandoned, not the process.
var ErrAmbiguousClearing = errors.New("market: ambiguous clearing result")

// Rejection records an order the engine refused, with the reason.
type Rejection struct {
	Order  model.Order
	Reason string
}

// Result is the outcome of clearing one tick.
type Result struct {
	Tick          model.Tick
	Trades        []model.Trade
	ClearingPrice float64
	BuyKWh        float64 // total buy quantity submitted
	SellKWh       float64 // total sell quantity submitted
	MatchedKWh    float64
	Rejections    []Rejection
}

// TradeSet converts the result into its atomic publication form.
func (r Result) TradeSet() model.TradeSet {
	return model.TradeSet{Tick: r.Tick, Trades: r.Trades, ClearingPrice: r.ClearingPrice}
}

// Engine clears one tick's orders with a uniform-price double auction.
// The clearing price is the limit price of the last matched sell order,
// applied uniformly to every trade in the tick. Unmatched remainder
// expires; there is no order book carried across ticks.
type Engine struct {
	log logger.Logger

	mu    sync.Mutex
	phase Phase
	tick  model.Tick
}

// NewEngine creates an Engine.
func NewEngine(log logger.Logger) *Engine {
	return &Engine{log: log, phase: PhaseCollecting}
}

// Phase returns the engine's current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// BeginTick resets the per-tick state machine to collect orders.
func (e *Engine) BeginTick(tick model.Tick) {
	e.mu.Lock()
	e.phase = PhaseCollecting
	e.tick = tick
	e.mu.Unlock()
}

// Clear matches the tick's orders and returns the resulting trades.
// states, when non-nil, holds read-only agent snapshots used to validate
// order feasibility; the engine never mutates them. Clearing with zero
// volume on either side yields zero trades and no error.
func (e *Engine) Clear(tick model.Tick, orders []model.Order, states map[string]model.AgentState) (Result, error) {
	e.mu.Lock()
	e.phase = PhaseClearing
	e.tick = tick
	e.mu.Unlock()

	res := Result{Tick: tick}
	buys, sells := e.admit(tick, orders, states, &res)
	for _, o := range buys {
		res.BuyKWh += o.QuantityKWh
	}
	for _, o := range sells {
		res.SellKWh += o.QuantityKWh
	}

	// Price-priority sort with deterministic agent-id tie-break.
	sort.Slice(sells, func(i, j int) bool {
		if sells[i].LimitPrice != sells[j].LimitPrice {
			return sells[i].LimitPrice < sells[j].LimitPrice
		}
		return sells[i].AgentID < sells[j].AgentID
	})
	sort.Slice(buys, func(i, j int) bool {
		if buys[i].LimitPrice != buys[j].LimitPrice {
			return buys[i].LimitPrice > buys[j].LimitPrice
		}
		return buys[i].AgentID < buys[j].AgentID
	})

	res.Trades, res.ClearingPrice, res.MatchedKWh = cross(tick, buys, sells)

	if err := e.checkInvariants(res, buys, sells); err != nil {
		e.mu.Lock()
		e.phase = PhaseSettled
		e.mu.Unlock()
		return Result{Tick: tick}, err
	}

	e.mu.Lock()
	e.phase = PhaseSettled
	e.mu.Unlock()

	clearingsTotal.Inc()
	matchedEnergy.Add(res.MatchedKWh)
	if len(res.Trades) > 0 {
		clearingPrice.Set(res.ClearingPrice)
	}
	e.log.Infof("tick %d cleared: %d trades, %.2f kWh at %.4f", tick, len(res.Trades), res.MatchedKWh, res.ClearingPrice)
	return res, nil
}

// admit validates orders and splits them by side. Invalid orders are
// rejected and logged, never fatal to the tick. At-least-once delivery can
// replay an order, so duplicates per (agent, side) keep the first copy.
func (e *Engine) admit(tick model.Tick, orders []model.Order, states map[string]model.AgentState, res *Result) (buys, sells []model.Order) {
	type key struct {
		agent string
		side  model.Side
	}
	seen := make(map[key]bool, len(orders))
	for _, o := range orders {
		if o.Tick != tick {
			e.reject(res, o, fmt.Sprintf("order for tick %d received while clearing tick %d", o.Tick, tick))
			continue
		}
		if err := o.Validate(); err != nil {
			e.reject(res, o, err.Error())
			continue
		}
		k := key{o.AgentID, o.Side}
		if seen[k] {
			// Duplicate delivery; first submission wins.
			continue
		}
		seen[k] = true
		if o.IsNoop() {
			continue
		}
		if states != nil {
			if st, ok := states[o.AgentID]; ok && !feasible(o, st) {
				e.reject(res, o, "order exceeds agent capacity")
				continue
			}
		}
		if o.Side == model.SideBuy {
			buys = append(buys, o)
		} else {
			sells = append(sells, o)
		}
	}
	return buys, sells
}

func (e *Engine) reject(res *Result, o model.Order, reason string) {
	res.Rejections = append(res.Rejections, Rejection{Order: o, Reason: reason})
	rejectedOrders.WithLabelValues(o.Side.String()).Inc()
	e.log.Warnf("rejected %s order from %s (tick %d): %s", o.Side, o.AgentID, o.Tick, reason)
}

func feasible(o model.Order, st model.AgentState) bool {
	const eps = 1e-9
	switch o.Side {
	case model.SideSell:
		return o.QuantityKWh <= st.SellableKWh()+eps
	case model.SideBuy:
		return o.QuantityKWh <= st.PurchasableKWh()+eps
	default:
		return false
	}
}

// cross walks the sorted books and matches while the best buy limit is at
// or above the best sell limit. The uniform price is fixed after the walk
// from the last matched sell order.
func cross(tick model.Tick, buys, sells []model.Order) ([]model.Trade, float64, float64) {
	var (
		trades  []model.Trade
		price   float64
		matched float64
		bi, si  int
		remBuy  float64
		remSell float64
	)
	if len(buys) > 0 {
		remBuy = buys[0].QuantityKWh
	}
	if len(sells) > 0 {
		remSell = sells[0].QuantityKWh
	}
	for bi < len(buys) && si < len(sells) && buys[bi].LimitPrice >= sells[si].LimitPrice {
		q := remBuy
		if remSell < q {
			q = remSell
		}
		trades = append(trades, model.Trade{
			ID:          uuid.NewString(),
			Tick:        tick,
			BuyerID:     buys[bi].AgentID,
			SellerID:    sells[si].AgentID,
			QuantityKWh: q,
		})
		matched += q
		price = sells[si].LimitPrice
		remBuy -= q
		remSell -= q
		if remBuy <= 0 {
			bi++
			if bi < len(buys) {
				remBuy = buys[bi].QuantityKWh
			}
		}
		if remSell <= 0 {
			si++
			if si < len(sells) {
				remSell = sells[si].QuantityKWh
			}
		}
	}
	for i := range trades {
		trades[i].ClearingPrice = price
	}
	return trades, price, matched
}

// checkInvariants verifies conservation and price bounds on the cleared
// set. A violation means a programming error, surfaced as
// ErrAmbiguousClearing so the tick is degraded instead of settled.
func (e *Engine) checkInvariants(res Result, buys, sells []model.Order) error {
	bought := make(map[string]float64)
	sold := make(map[string]float64)
	var totalBuy, totalSell float64
	for _, t := range res.Trades {
		bought[t.BuyerID] += t.QuantityKWh
		sold[t.SellerID] += t.QuantityKWh
		totalBuy += t.QuantityKWh
		totalSell += t.QuantityKWh
	}
	if totalBuy != totalSell {
		return fmt.Errorf("%w: matched buy %.6f != matched sell %.6f", ErrAmbiguousClearing, totalBuy, totalSell)
	}
	const eps = 1e-9
	for _, o := range buys {
		if bought[o.AgentID] > o.QuantityKWh+eps {
			return fmt.Errorf("%w: buyer %s matched %.6f above order %.6f", ErrAmbiguousClearing, o.AgentID, bought[o.AgentID], o.QuantityKWh)
		}
	}
	for _, o := range sells {
		if sold[o.AgentID] > o.QuantityKWh+eps {
			return fmt.Errorf("%w: seller %s matched %.6f above order %.6f", ErrAmbiguousClearing, o.AgentID, sold[o.AgentID], o.QuantityKWh)
		}
	}
	if len(res.Trades) > 0 {
		minSell, maxBuy := res.ClearingPrice, res.ClearingPrice
		for _, o := range sells {
			if sold[o.AgentID] > 0 && o.LimitPrice < minSell {
				minSell = o.LimitPrice
			}
		}
		for _, o := range buys {
			if bought[o.AgentID] > 0 && o.LimitPrice > maxBuy {
				maxBuy = o.LimitPrice
			}
		}
		if res.ClearingPrice < minSell || res.ClearingPrice > maxBuy {
			return fmt.Errorf("%w: clearing price %.6f outside [%.6f, %.6f]", ErrAmbiguousClearing, res.ClearingPrice, minSell, maxBuy)
		}
	}
	return nil
}
