package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	apisim "github.com/gridwise/energysim/api/sim"
	"github.com/gridwise/energysim/config"
	"github.com/gridwise/energysim/core/forecast"
	"github.com/gridwise/energysim/core/grid"
	"github.com/gridwise/energysim/core/market"
	coremetrics "github.com/gridwise/energysim/core/metrics"
	"github.com/gridwise/energysim/core/sim"
	"github.com/gridwise/energysim/core/trading"
	"github.com/gridwise/energysim/infra/feed"
	"github.com/gridwise/energysim/infra/logger"
	"github.com/gridwise/energysim/infra/metrics"
	"github.com/gridwise/energysim/infra/mqtt"
	"github.com/gridwise/energysim/infra/store"
	"github.com/gridwise/energysim/internal/bus"
)

// Service wires the simulation from configuration and runs it until the
// context is cancelled.
type Service struct {
	Coordinator *sim.Coordinator

	cfg    *config.Config
	b      *bus.MemoryBus
	st     store.Store
	bridge *mqtt.Bridge
	log    logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")
	b := bus.NewMemory()

	sink, err := metrics.NewFromConfig(cfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	sinks := []coremetrics.Sink{sink}

	svc := &Service{cfg: cfg, b: b, log: logg}

	if cfg.Store.Enabled {
		st, err := store.NewJSONLStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("record store: %w", err)
		}
		svc.st = st
		sinks = append(sinks, store.NewRecorder(st))
	}
	if cfg.MQTT.Enabled {
		bridge, err := mqtt.NewBridge(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt bridge: %w", err)
		}
		svc.bridge = bridge
		sinks = append(sinks, bridge)
	}

	var combined coremetrics.Sink = sinks[0]
	if len(sinks) > 1 {
		combined = metrics.NewMultiSink(sinks...)
	}

	coordinator := sim.New(
		cfg.Simulation.SimConfig(),
		b,
		market.NewEngine(logger.New("market")),
		grid.NewMonitor(cfg.Grid, logger.New("grid")),
		forecast.New(cfg.Forecast, logger.New("forecast")),
		feed.NewWeatherGenerator(cfg.Weather),
		feed.NewTelemetryGenerator(cfg.Telemetry),
		combined,
		logg,
	)
	svc.Coordinator = coordinator

	for i := range cfg.Producers {
		p, err := trading.NewProducer(cfg.Producers[i], logger.New("producer"))
		if err != nil {
			return nil, err
		}
		if err := coordinator.AddAgent(p); err != nil {
			return nil, err
		}
	}
	for i := range cfg.Consumers {
		c, err := trading.NewConsumer(cfg.Consumers[i], logger.New("consumer"))
		if err != nil {
			return nil, err
		}
		if err := coordinator.AddAgent(c); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Run starts the simulation and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Coordinator.Start(); err != nil {
		return err
	}
	if s.cfg.Metrics.Prometheus {
		go func() {
			if err := metrics.StartPromServer(ctx, s.cfg.Metrics.PrometheusAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.API.Enabled {
		go func() {
			if err := s.serveAPI(ctx); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}
	<-ctx.Done()
	s.Coordinator.Stop()
	return nil
}

func (s *Service) serveAPI(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/api/sim/snapshot", apisim.NewSnapshotHandler(s.Coordinator))
	mux.Handle("/api/sim/control", apisim.NewControlHandler(s.Coordinator))
	if s.st != nil {
		mux.Handle("/api/sim/records", apisim.NewRecordsHandler(s.st))
	}
	srv := &http.Server{Addr: s.cfg.API.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("api shutdown: %v", err)
		}
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.bridge != nil {
		s.bridge.Close()
	}
	s.b.Close()
	if s.st != nil {
		return s.st.Close()
	}
	return nil
}
