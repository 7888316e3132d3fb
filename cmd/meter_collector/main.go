// Responsible for storing the data collected from the smart meter
// Depends on the interpreter API being online.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/dsmr_telegram/pkg/aggregator"
	"github.com/NotCoffee418/dsmr_telegram/pkg/config"
	"github.com/NotCoffee418/dsmr_telegram/pkg/interpreter"
	"github.com/NotCoffee418/dsmr_telegram/pkg/logging"
	"github.com/NotCoffee418/dsmr_telegram/pkg/meterdb"
	"github.com/NotCoffee418/dsmr_telegram/pkg/pathing"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.Init("meter_collector")

	if err := pathing.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("failed to create directories")
	}
	if err := config.LoadMeterCollectorConfig(); err != nil {
		log.Fatal().Err(err).Msg("failed to load meter collector config")
	}
	cfg := config.ActiveMeterCollectorConfig

	store, err := meterdb.InitializeDatabase(cfg.DbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize meter db")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AggregationEnabled {
		go runAggregation(ctx, store)
	}

	// INTERPRETER_API_HOST overrides the configured host.
	host := os.Getenv("INTERPRETER_API_HOST")
	if host == "" {
		host = cfg.InterpreterAPIHost
	}

	interpreter.StartListener(ctx, host, func(reading *interpreter.Reading) {
		handleMeterReading(store, reading)
	})
}

func handleMeterReading(store *meterdb.Store, reading *interpreter.Reading) {
	err := store.StoreReading(reading)
	switch {
	case errors.Is(err, meterdb.ErrNothingToStore):
		log.Debug().Time("received_at", reading.ReceivedAt).Msg("reading has nothing to store")
	case err != nil:
		log.Error().Err(err).Msg("failed to store reading")
	}
}

// runAggregation aggregates right after every full hour.
func runAggregation(ctx context.Context, store *meterdb.Store) {
	for {
		now := time.Now().UTC()
		next := now.Truncate(time.Hour).Add(time.Hour + time.Minute)
		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}
		if err := aggregator.AggregateAndCleanup(store.DB(), time.Now()); err != nil {
			log.Error().Err(err).Msg("aggregation failed")
		}
	}
}
