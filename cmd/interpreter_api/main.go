// Interpreter API is responsible for reading the P1 port and broadcasting the readings.
package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/NotCoffee418/dsmr_telegram/pkg/config"
	"github.com/NotCoffee418/dsmr_telegram/pkg/dsmr"
	"github.com/NotCoffee418/dsmr_telegram/pkg/interpreter"
	"github.com/NotCoffee418/dsmr_telegram/pkg/logging"
	"github.com/NotCoffee418/dsmr_telegram/pkg/metrics"
	"github.com/NotCoffee418/dsmr_telegram/pkg/pathing"
	"github.com/NotCoffee418/dsmr_telegram/pkg/port_reader"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func main() {
	logging.Init("interpreter_api")

	if err := pathing.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("failed to create directories")
	}
	if err := config.LoadInterpreterAPIConfig(); err != nil {
		log.Fatal().Err(err).Msg("failed to load interpreter API config")
	}
	cfg := config.ActiveInterpreterAPIConfig

	opts, err := cfg.ParserOptions()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid parser options")
	}
	newRegistry, err := cfg.RegistryFactory()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load field catalogue")
	}
	parser := dsmr.NewParser(opts)
	parser.SetLogger(log.Logger)
	metrics.RegisterMetrics()

	p1Reader := port_reader.NewP1Reader(cfg.SerialDevice, cfg.Baudrate, parser, newRegistry)
	hub := interpreter.NewHub(p1Reader.GetLatestReading)

	p1Reader.StartReading(
		hub.Broadcast,
		func(err error) {
			if err != nil {
				log.Fatal().Err(err).Msg("error reading P1 port")
			}
		},
	)

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"message": "European Smart Meter API",
			"status":  "running",
		})
	})

	http.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		reading := p1Reader.GetLatestReading()
		w.Header().Set("Content-Type", "application/json")
		if reading == nil {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "No readings available yet",
			})
			return
		}
		json.NewEncoder(w).Encode(reading)
	})

	http.Handle("/ws", hub)
	http.Handle("/metrics", promhttp.Handler())

	listener := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)
	log.Info().Str("listen", listener).Str("variant", cfg.Variant).Msg("starting European Smart Meter Interpreter API")
	if err := http.ListenAndServe(listener, nil); err != nil {
		log.Fatal().Err(err).Msg("http server stopped")
	}
}
