package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/NotCoffee418/dsmr_telegram/pkg/dsmr"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	telegrams = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "esm",
			Subsystem: "p1",
			Name:      "telegrams_total",
			Help:      "Telegrams read from the P1 port by decode outcome.",
		},
		[]string{"result"},
	)
	decodeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "esm",
			Subsystem: "p1",
			Name:      "decode_duration_seconds",
			Help:      "Time spent decoding one telegram.",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
		},
	)
	fieldsPresent = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "esm",
			Subsystem: "p1",
			Name:      "fields_present",
			Help:      "Number of catalogue fields present in the last decoded telegram.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(telegrams, decodeDuration, fieldsPresent)
	})
}

// RecordTelegram counts one decoded telegram. err is the parse result.
func RecordTelegram(err error, duration time.Duration, present int) {
	RegisterMetrics()
	telegrams.WithLabelValues(Result(err)).Inc()
	decodeDuration.Observe(duration.Seconds())
	if err == nil {
		fieldsPresent.Set(float64(present))
	}
}

// RecordReadError counts a telegram that could not be read at all.
func RecordReadError() {
	RegisterMetrics()
	telegrams.WithLabelValues("read_error").Inc()
}

// Result maps a parse error to the result label.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, dsmr.ErrFraming):
		return "framing"
	case errors.Is(err, dsmr.ErrChecksum):
		return "checksum"
	case errors.Is(err, dsmr.ErrHeader):
		return "header"
	case errors.Is(err, dsmr.ErrObisID):
		return "obis_id"
	case errors.Is(err, dsmr.ErrValue):
		return "value"
	case errors.Is(err, dsmr.ErrDuplicateField):
		return "duplicate_field"
	case errors.Is(err, dsmr.ErrUnknownField):
		return "unknown_field"
	case errors.Is(err, dsmr.ErrTrailingData):
		return "trailing_data"
	default:
		return "other"
	}
}
