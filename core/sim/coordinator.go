package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gridwise/energysim/core/agent"
	"github.com/gridwise/energysim/core/forecast"
	"github.com/gridwise/energysim/core/grid"
	"github.com/gridwise/energysim/core/logger"
	"github.com/gridwise/energysim/core/market"
	"github.com/gridwise/energysim/core/metrics"
	"github.com/gridwise/energysim/core/model"
	"github.com/gridwise/energysim/internal/bus"
)

// WeatherSource provides the exogenous weather feed. A nil sample with a
// nil error means the feed has no data for the tick; an error means the
// feed is unavailable. Both degrade the forecast, never the tick.
type WeatherSource interface {
	Sample(tick model.Tick) (*model.WeatherSample, error)
}

// TelemetrySource provides grid measurements per tick.
type TelemetrySource interface {
	Sample(tick model.Tick) (model.Telemetry, error)
}

// Config tunes the coordinator.
type Config struct {
	// TickInterval is the wall-clock pause between tick announcements.
	TickInterval time.Duration `json:"tick_interval"`
	// OrderWindow bounds the per-tick wait for agent orders. Orders arriving
	// after it are rejected by the clearing engine on the next tick.
	OrderWindow time.Duration `json:"order_window"`
	// Agent is the runtime configuration applied to every hosted role.
	Agent agent.Config `json:"agent"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TickInterval == 0 {
		c.TickInterval = time.Second
	}
	if c.OrderWindow == 0 {
		c.OrderWindow = 500 * time.Millisecond
	}
	c.Agent.SetDefaults()
}

// Snapshot is a read-only view of the latest settled tick, consumed by the
// HTTP API and the MQTT bridge.
type Snapshot struct {
	Running       bool               `json:"running"`
	Tick          model.Tick         `json:"tick"`
	TickInterval  time.Duration      `json:"tick_interval"`
	ClearingPrice float64            `json:"clearing_price"`
	MatchedKWh    float64            `json:"matched_kwh"`
	Trades        []model.Trade      `json:"trades"`
	Grid          model.GridState    `json:"grid"`
	Degraded      bool               `json:"degraded"`
	Agents        []model.AgentState `json:"agents"`
}

// Coordinator drives the simulation loop. Each agent runs in its own
// runtime goroutine; the coordinator owns the only synchronization point,
// the tick barrier: tick N+1 is not announced until tick N's trade set and
// grid verdict are on the bus.
type Coordinator struct {
	cfg        Config
	b          bus.Bus
	engine     *market.Engine
	monitor    *grid.Monitor
	forecaster *forecast.Forecaster
	weather    WeatherSource
	telemetry  TelemetrySource
	sink       metrics.Sink
	log        logger.Logger

	mu       sync.Mutex
	running  bool
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	snap     Snapshot

	runtimes  []*agent.Runtime
	snapshots map[string]agent.Snapshotter
	orders    *bus.Subscription
	lastTick  model.Tick
	lastTel   model.Telemetry
	haveTel   bool
}

// New creates a Coordinator. The sink may be a NopSink; it is consulted for
// the optional recorder interfaces by type assertion.
func New(cfg Config, b bus.Bus, eng *market.Engine, mon *grid.Monitor, fc *forecast.Forecaster,
	weather WeatherSource, telemetry TelemetrySource, sink metrics.Sink, log logger.Logger) *Coordinator {
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Coordinator{
		cfg:        cfg,
		b:          b,
		engine:     eng,
		monitor:    mon,
		forecaster: fc,
		weather:    weather,
		telemetry:  telemetry,
		sink:       sink,
		log:        log,
		interval:   cfg.TickInterval,
		snapshots:  make(map[string]agent.Snapshotter),
	}
}

// AddAgent registers a role before Start. Roles exposing a Snapshot feed
// the clearing engine's feasibility validation.
func (c *Coordinator) AddAgent(role agent.Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("sim: cannot add agent %s while running", role.ID())
	}
	if _, dup := c.snapshots[role.ID()]; dup {
		return fmt.Errorf("sim: duplicate agent id %s", role.ID())
	}
	c.runtimes = append(c.runtimes, agent.NewRuntime(role, c.b, c.cfg.Agent, c.log))
	if s, ok := role.(agent.Snapshotter); ok {
		c.snapshots[role.ID()] = s
	} else {
		c.snapshots[role.ID()] = nil
	}
	return nil
}

// Start launches every agent runtime and the tick loop.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("sim: already running")
	}
	c.running = true
	c.snap.Running = true
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	sub, err := c.b.Subscribe(bus.TopicOrders, 0)
	if err != nil {
		c.markStopped()
		return fmt.Errorf("sim: subscribe orders: %w", err)
	}
	c.orders = sub

	for _, r := range c.runtimes {
		if err := r.Start(); err != nil {
			c.stopRuntimes()
			c.orders.Cancel()
			c.markStopped()
			return err
		}
	}

	go c.run(ctx)
	c.log.Infof("simulation started with %d agents, tick interval %s", len(c.runtimes), c.interval)
	return nil
}

// Stop halts the loop at the next tick boundary; the in-flight tick
// completes, then the agent runtimes drain.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	c.stopRuntimes()
	c.orders.Cancel()
	c.markStopped()
	c.log.Infof("simulation stopped at tick %d", c.lastTick)
}

func (c *Coordinator) markStopped() {
	c.mu.Lock()
	c.running = false
	c.snap.Running = false
	c.mu.Unlock()
}

func (c *Coordinator) stopRuntimes() {
	for _, r := range c.runtimes {
		r.Stop()
	}
}

// SetTickInterval changes the pause between ticks, taking effect at the
// next tick boundary.
func (c *Coordinator) SetTickInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("sim: tick interval must be positive, got %s", d)
	}
	c.mu.Lock()
	c.interval = d
	c.snap.TickInterval = d
	c.mu.Unlock()
	c.log.Infof("tick interval set to %s", d)
	return nil
}

// Snapshot returns a copy of the latest settled tick's view.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.snap
	snap.Trades = append([]model.Trade(nil), c.snap.Trades...)
	snap.Agents = nil
	for _, s := range c.snapshots {
		if s != nil {
			snap.Agents = append(snap.Agents, s.Snapshot())
		}
	}
	return snap
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)
	for {
		c.mu.Lock()
		interval := c.interval
		c.mu.Unlock()
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		c.lastTick++
		c.step(ctx, c.lastTick)
	}
}

// step runs one complete tick. Failures degrade the tick: an empty trade
// set and a carried-forward grid verdict are still published so the barrier
// advances and agents keep making progress.
func (c *Coordinator) step(ctx context.Context, tick model.Tick) {
	start := time.Now()
	degraded := false

	w, err := c.weather.Sample(tick)
	if err != nil {
		c.log.Warnf("tick %d: weather feed unavailable: %v", tick, err)
		w = nil
	}
	fc := c.forecaster.Forecast(tick, w)
	c.publish(ctx, bus.TopicForecasts, tick, fc)
	if rec, ok := c.sink.(metrics.ForecastRecorder); ok {
		if err := rec.RecordForecast(fc); err != nil {
			c.log.Warnf("tick %d: record forecast: %v", tick, err)
		}
	}

	c.engine.BeginTick(tick)
	c.publish(ctx, bus.TopicTicks, tick, nil)

	orders := c.collectOrders(ctx, tick)
	res, err := c.engine.Clear(tick, orders, c.agentStates())
	if err != nil {
		c.log.Errorf("tick %d: clearing failed, degrading tick: %v", tick, err)
		degraded = true
		degradedTicks.Inc()
		res = market.Result{Tick: tick}
	}
	ts := res.TradeSet()
	ts.Degraded = degraded
	c.publish(ctx, bus.TopicTrades, tick, ts)
	if rec, ok := c.sink.(metrics.TradeRecorder); ok && len(ts.Trades) > 0 {
		if err := rec.RecordTrades(ts.Trades); err != nil {
			c.log.Warnf("tick %d: record trades: %v", tick, err)
		}
	}

	tel, err := c.telemetry.Sample(tick)
	stale := false
	if err != nil {
		c.log.Warnf("tick %d: telemetry unavailable, carrying last sample: %v", tick, err)
		tel = c.lastTel
		tel.Tick = tick
		stale = true
	} else {
		c.lastTel = tel
		c.haveTel = true
	}
	gs := c.monitor.Evaluate(tick, ts.Trades, tel)
	gs.Stale = stale && c.haveTel
	c.publish(ctx, bus.TopicGrid, tick, gs)
	if rec, ok := c.sink.(metrics.GridStateRecorder); ok {
		if err := rec.RecordGridState(gs); err != nil {
			c.log.Warnf("tick %d: record grid state: %v", tick, err)
		}
	}

	c.forecaster.Observe(tick, res.ClearingPrice, res.MatchedKWh)

	ev := metrics.ClearingEvent{
		Tick:          tick,
		ClearingPrice: res.ClearingPrice,
		MatchedKWh:    res.MatchedKWh,
		Rejected:      len(res.Rejections),
		Degraded:      degraded,
		Time:          time.Now(),
	}
	for _, o := range orders {
		if o.Tick != tick {
			continue
		}
		if o.Side == model.SideBuy {
			ev.BuyOrders++
		} else {
			ev.SellOrders++
		}
	}
	if err := c.sink.RecordClearing(ev); err != nil {
		c.log.Warnf("tick %d: record clearing: %v", tick, err)
	}

	elapsed := time.Since(start)
	tickDuration.Observe(elapsed.Seconds())
	if rec, ok := c.sink.(metrics.TickDurationRecorder); ok {
		if err := rec.RecordTickDuration(tick, elapsed); err != nil {
			c.log.Warnf("tick %d: record duration: %v", tick, err)
		}
	}

	c.mu.Lock()
	c.snap.Tick = tick
	c.snap.TickInterval = c.interval
	c.snap.ClearingPrice = res.ClearingPrice
	c.snap.MatchedKWh = res.MatchedKWh
	c.snap.Trades = ts.Trades
	c.snap.Grid = gs
	c.snap.Degraded = degraded
	c.mu.Unlock()
}

// collectOrders drains the order stream until every registered agent has
// submitted for this tick or the order window closes. Stragglers from
// earlier ticks are passed through; the engine rejects and logs them.
func (c *Coordinator) collectOrders(ctx context.Context, tick model.Tick) []model.Order {
	var orders []model.Order
	expected := len(c.runtimes)
	current := 0
	timer := time.NewTimer(c.cfg.OrderWindow)
	defer timer.Stop()
	for current < expected {
		select {
		case env, ok := <-c.orders.C:
			if !ok {
				return orders
			}
			o, isOrder := env.Payload.(model.Order)
			if !isOrder {
				continue
			}
			orders = append(orders, o)
			if o.Tick == tick {
				current++
			}
		case <-timer.C:
			c.log.Warnf("tick %d: order window closed with %d/%d orders", tick, current, expected)
			return orders
		case <-ctx.Done():
			return orders
		}
	}
	return orders
}

// agentStates snapshots every agent exposing one, for order feasibility
// validation. The engine treats the copies as read-only.
func (c *Coordinator) agentStates() map[string]model.AgentState {
	states := make(map[string]model.AgentState, len(c.snapshots))
	for id, s := range c.snapshots {
		if s != nil {
			states[id] = s.Snapshot()
		}
	}
	return states
}

func (c *Coordinator) publish(ctx context.Context, topic string, tick model.Tick, payload any) {
	if _, err := bus.Retry(ctx, c.b, topic, tick, payload, c.cfg.Agent.PublishRetries, c.cfg.Agent.PublishBackoff); err != nil {
		c.log.Errorf("tick %d: publish %s: %v", tick, topic, err)
	}
}
