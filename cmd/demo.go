package cmd

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridwise/energysim/app"
	"github.com/gridwise/energysim/config"
	"github.com/gridwise/energysim/core/trading"
)

var (
	demoTicks    int
	demoInterval float64
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a built-in scenario without a configuration file",
	RunE:  runDemo,
}

func init() {
	demoCmd.Flags().IntVar(&demoTicks, "ticks", 20, "number of ticks to simulate")
	demoCmd.Flags().Float64Var(&demoInterval, "interval", 0.2, "tick interval in seconds")
	rootCmd.AddCommand(demoCmd)
}

func demoConfig() *config.Config {
	cfg := &config.Config{
		Simulation: config.SimulationConfig{TickIntervalSeconds: demoInterval},
		Producers: []trading.ProducerConfig{
			{ID: "solar-1", BatteryCapacityKWh: 50, BatteryKWh: 40, BatteryEfficiency: 0.9, ProductionKWh: 25},
			{ID: "wind-1", BatteryCapacityKWh: 30, BatteryKWh: 10, BatteryEfficiency: 0.9, ProductionKWh: 15},
		},
		Consumers: []trading.ConsumerConfig{
			{ID: "home-1", BatteryCapacityKWh: 20, BatteryEfficiency: 0.9, BaseLoadKWh: 8, FlexibleLoadKWh: 4},
			{ID: "factory-1", BatteryCapacityKWh: 60, BatteryEfficiency: 0.9, BaseLoadKWh: 20, FlexibleLoadKWh: 10},
		},
	}
	cfg.Simulation.SetDefaults()
	cfg.Store.SetDefaults()
	cfg.API.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Weather.Seed = time.Now().UnixNano()
	cfg.Telemetry.Seed = time.Now().UnixNano()
	return cfg
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(demoConfig())
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if err := svc.Coordinator.Start(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			svc.Coordinator.Stop()
			return nil
		case <-time.After(50 * time.Millisecond):
		}
		if svc.Coordinator.Snapshot().Tick >= int64(demoTicks) {
			break
		}
	}
	svc.Coordinator.Stop()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(svc.Coordinator.Snapshot())
}
