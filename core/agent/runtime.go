package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gridwise/energysim/core/logger"
	"github.com/gridwise/energysim/core/model"
	"github.com/gridwise/energysim/internal/bus"
)

// State is the runtime lifecycle state machine.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateDraining
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Inputs is the snapshot of bus messages handed to a role's Decide call.
// Forecast belongs to the current tick; Grid is the last published verdict
// (a strictly earlier tick, never the current one).
type Inputs struct {
	Tick     model.Tick
	Forecast *model.Forecast
	Grid     *model.GridState
}

// Role is the behavior hosted by a Runtime.
type Role interface {
	ID() string
	// Decide computes the tick's message from the collected inputs.
	Decide(tick model.Tick, in Inputs) (any, error)
	// Missing is the fallback when a required input did not arrive by the
	// tick deadline. It must return a best-effort message from last-known
	// state and never block indefinitely.
	Missing(tick model.Tick, in Inputs) any
	// Noop is the zero-quantity message used when Decide fails.
	Noop(tick model.Tick) any
}

// Settler is implemented by roles that mutate their own state when the
// tick's trades settle.
type Settler interface {
	Settle(tick model.Tick, ts model.TradeSet)
}

// Snapshotter exposes a read-only copy of a role's state, used by the
// clearing engine for feasibility validation.
type Snapshotter interface {
	Snapshot() model.AgentState
}

// Config tunes a Runtime.
type Config struct {
	// TickTimeout bounds the wait for required inputs each tick.
	TickTimeout time.Duration
	// PublishRetries and PublishBackoff govern bus retry on ErrUnavailable.
	PublishRetries int
	PublishBackoff time.Duration
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TickTimeout == 0 {
		c.TickTimeout = time.Second
	}
	if c.PublishRetries == 0 {
		c.PublishRetries = 3
	}
	if c.PublishBackoff == 0 {
		c.PublishBackoff = 10 * time.Millisecond
	}
}

// Runtime is the per-agent execution shell: it manages lifecycle,
// dispatches inbound messages and runs the hosted role once per tick. A
// failing role is logged and produces a no-op message; it is never torn
// down, so the rest of the simulation keeps making progress.
type Runtime struct {
	role Role
	b    bus.Bus
	cfg  Config
	log  logger.Logger

	mu    sync.Mutex
	state State
	quit  chan struct{}
	done  chan struct{}

	ticks     *bus.Subscription
	forecasts *bus.Subscription
	trades    *bus.Subscription
	grid      *bus.Subscription

	lastGrid    *model.GridState
	settledTick model.Tick
}

// NewRuntime creates a Runtime hosting the given role.
func NewRuntime(role Role, b bus.Bus, cfg Config, log logger.Logger) *Runtime {
	cfg.SetDefaults()
	return &Runtime{role: role, b: b, cfg: cfg, log: log, state: StateStopped}
}

// State returns the current lifecycle state.
func (r *Runtime) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start registers subscriptions and launches the tick loop:
// Stopped → Starting → Running.
func (r *Runtime) Start() error {
	r.mu.Lock()
	if r.state != StateStopped {
		r.mu.Unlock()
		return fmt.Errorf("runtime %s: start from state %s", r.role.ID(), r.state)
	}
	r.state = StateStarting
	r.mu.Unlock()

	var err error
	if r.ticks, err = r.b.Subscribe(bus.TopicTicks, 0); err != nil {
		return r.failStart(err)
	}
	if r.forecasts, err = r.b.Subscribe(bus.TopicForecasts, 0); err != nil {
		return r.failStart(err)
	}
	if r.trades, err = r.b.Subscribe(bus.TopicTrades, 0); err != nil {
		return r.failStart(err)
	}
	if r.grid, err = r.b.Subscribe(bus.TopicGrid, 0); err != nil {
		return r.failStart(err)
	}

	r.mu.Lock()
	r.state = StateRunning
	r.quit = make(chan struct{})
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.loop()
	r.log.Infof("agent %s running", r.role.ID())
	return nil
}

func (r *Runtime) failStart(err error) error {
	r.cancelSubs()
	r.mu.Lock()
	r.state = StateStopped
	r.mu.Unlock()
	return fmt.Errorf("runtime %s: subscribe: %w", r.role.ID(), err)
}

// Stop drains the in-flight tick and halts:
// Running → Draining → Stopped.
func (r *Runtime) Stop() {
	r.mu.Lock()
	if r.state != StateRunning {
		r.mu.Unlock()
		return
	}
	r.state = StateDraining
	close(r.quit)
	done := r.done
	r.mu.Unlock()

	<-done
	r.cancelSubs()
	r.mu.Lock()
	r.state = StateStopped
	r.mu.Unlock()
	r.log.Infof("agent %s stopped", r.role.ID())
}

func (r *Runtime) cancelSubs() {
	for _, s := range []*bus.Subscription{r.ticks, r.forecasts, r.trades, r.grid} {
		if s != nil {
			s.Cancel()
		}
	}
}

// loop consumes tick announcements until draining. In-flight ticks always
// complete: the quit check happens only between ticks.
func (r *Runtime) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.quit:
			return
		case env, ok := <-r.ticks.C:
			if !ok {
				return
			}
			r.step(env.Tick)
		}
	}
}

// step runs one tick: settle the previous tick's trades, pick up the
// previous grid verdict, collect this tick's forecast within the deadline,
// decide and publish.
func (r *Runtime) step(tick model.Tick) {
	deadline := time.Now().Add(r.cfg.TickTimeout)

	// The tick barrier guarantees the previous tick's trades and verdict
	// were published before this tick was announced, so these waits
	// normally return immediately.
	r.awaitSettlement(tick-1, deadline)
	r.awaitGrid(tick-1, deadline)

	in := Inputs{Tick: tick, Grid: r.lastGrid}
	msg := r.collectAndDecide(tick, &in, deadline)
	r.publish(tick, msg)
}

func (r *Runtime) collectAndDecide(tick model.Tick, in *Inputs, deadline time.Time) (msg any) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("agent %s tick %d: decide panicked: %v", r.role.ID(), tick, rec)
			msg = r.role.Noop(tick)
		}
	}()

	fc, ok := r.awaitForecast(tick, deadline)
	if !ok {
		r.log.Warnf("agent %s tick %d: forecast missing at deadline, using fallback", r.role.ID(), tick)
		return r.role.Missing(tick, *in)
	}
	in.Forecast = fc

	out, err := r.role.Decide(tick, *in)
	if err != nil {
		r.log.Errorf("agent %s tick %d: decide failed: %v", r.role.ID(), tick, err)
		return r.role.Noop(tick)
	}
	return out
}

// awaitForecast reads the forecast stream until it finds this tick's
// forecast or the deadline expires. Older forecasts are skipped: they were
// for ticks this agent already handled (or missed).
func (r *Runtime) awaitForecast(tick model.Tick, deadline time.Time) (*model.Forecast, bool) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	for {
		select {
		case env, ok := <-r.forecasts.C:
			if !ok {
				return nil, false
			}
			fc, isFc := env.Payload.(model.Forecast)
			if !isFc || fc.Tick < tick {
				continue
			}
			if fc.Tick > tick {
				// Shouldn't happen with the tick barrier; treat the
				// current tick's forecast as missing.
				return nil, false
			}
			return &fc, true
		case <-timer.C:
			return nil, false
		}
	}
}

// awaitSettlement consumes trade sets up to and including the given tick
// and forwards them to the role if it settles.
func (r *Runtime) awaitSettlement(tick model.Tick, deadline time.Time) {
	if tick <= r.settledTick {
		return
	}
	settler, settles := r.role.(Settler)
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	for r.settledTick < tick {
		select {
		case env, ok := <-r.trades.C:
			if !ok {
				return
			}
			ts, isTS := env.Payload.(model.TradeSet)
			if !isTS || ts.Tick <= r.settledTick {
				continue // duplicate delivery, already settled
			}
			if settles {
				settler.Settle(ts.Tick, ts)
			}
			r.settledTick = ts.Tick
		case <-timer.C:
			return
		}
	}
}

// awaitGrid advances the last-known grid verdict to the given tick.
func (r *Runtime) awaitGrid(tick model.Tick, deadline time.Time) {
	if tick <= 0 || (r.lastGrid != nil && r.lastGrid.Tick >= tick) {
		return
	}
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	for r.lastGrid == nil || r.lastGrid.Tick < tick {
		select {
		case env, ok := <-r.grid.C:
			if !ok {
				return
			}
			gs, isGS := env.Payload.(model.GridState)
			if !isGS {
				continue
			}
			if r.lastGrid == nil || gs.Tick > r.lastGrid.Tick {
				r.lastGrid = &gs
			}
		case <-timer.C:
			return
		}
	}
}

func (r *Runtime) publish(tick model.Tick, msg any) {
	if msg == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.TickTimeout)
	defer cancel()
	if _, err := bus.Retry(ctx, r.b, bus.TopicOrders, tick, msg, r.cfg.PublishRetries, r.cfg.PublishBackoff); err != nil {
		r.log.Errorf("agent %s tick %d: publish failed: %v", r.role.ID(), tick, err)
	}
}
