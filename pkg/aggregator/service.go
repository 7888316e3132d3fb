package aggregator

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/NotCoffee418/dsmr_telegram/pkg/meterdb"
	"github.com/rs/zerolog/log"
)

// Raw readings are kept this long once they have been aggregated.
const retention = 3

var ErrUnknownTimeframe = errors.New("unknown timeframe")

// timeframeTable describes where the aggregates of a timeframe live.
type timeframeTable struct {
	table       string
	startColumn string
}

var timeframeTables = map[Timeframe]timeframeTable{
	Hourly:  {"aggregate_live_power_hourly", "hour_start"},
	Daily:   {"aggregate_live_power_daily", "day_start"},
	Monthly: {"aggregate_live_power_monthly", "month_start"},
}

// roundToHourStart returns the Unix timestamp of the start of the hour for the given time
func roundToHourStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC).Unix()
}

func roundToDayStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}

func roundToMonthStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Unix()
}

// StartOf returns the start of the timeframe containing t.
func StartOf(tf Timeframe, t time.Time) int64 {
	switch tf {
	case Daily:
		return roundToDayStart(t)
	case Monthly:
		return roundToMonthStart(t)
	default:
		return roundToHourStart(t)
	}
}

// EndOf returns the last second of the timeframe starting at start.
func EndOf(tf Timeframe, start int64) int64 {
	t := time.Unix(start, 0).UTC()
	switch tf {
	case Daily:
		return t.AddDate(0, 0, 1).Unix() - 1
	case Monthly:
		return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC).Unix() - 1
	default:
		return t.Add(time.Hour).Unix() - 1
	}
}

// AggregateLivePower averages the live power readings of one timeframe
// per reading type and stores them as watt hours over that timeframe.
func AggregateLivePower(db *sql.DB, tf Timeframe, start int64) error {
	tt, ok := timeframeTables[tf]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTimeframe, tf)
	}
	end := EndOf(tf, start)

	rows, err := db.Query(`
		SELECT
			reading_type,
			AVG(watt) as avg_watt,
			COUNT(*) as count
		FROM live_power_readings
		WHERE timestamp >= ? AND timestamp <= ?
		GROUP BY reading_type
	`, start, end)
	if err != nil {
		return err
	}
	defer rows.Close()

	aggregateData := make(map[meterdb.MeterDbPowerReadingType]float64)
	var totalSampleCount uint32
	for rows.Next() {
		var readingType meterdb.MeterDbPowerReadingType
		var avgWatt float64
		var count uint32
		if err := rows.Scan(&readingType, &avgWatt, &count); err != nil {
			return err
		}
		aggregateData[readingType] = avgWatt
		totalSampleCount += count
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if totalSampleCount == 0 {
		return nil
	}

	// An average in W held for the whole timeframe, in Wh.
	hours := float64(end-start+1) / 3600
	wh := func(readingType meterdb.MeterDbPowerReadingType) uint32 {
		return uint32(aggregateData[readingType]*hours + 0.5)
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO `+tt.table+`
		(`+tt.startColumn+`, consumption_day_wh, consumption_night_wh, production_day_wh, production_night_wh, sample_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, start,
		wh(meterdb.PowerConsumptionDay),
		wh(meterdb.PowerConsumptionNight),
		wh(meterdb.PowerProductionDay),
		wh(meterdb.PowerProductionNight),
		totalSampleCount)
	return err
}

// LoadAggregate reads back the aggregate of one timeframe.
func LoadAggregate(db *sql.DB, tf Timeframe, start int64, now time.Time) (AggregateData, error) {
	data := AggregateData{
		Timeframe:          tf,
		EndTime:            EndOf(tf, start),
		IsCurrentTimeframe: StartOf(tf, now) == start,
	}
	tt, ok := timeframeTables[tf]
	if !ok {
		return data, fmt.Errorf("%w: %d", ErrUnknownTimeframe, tf)
	}

	a := &data.Aggregate
	err := db.QueryRow(`
		SELECT `+tt.startColumn+`, consumption_day_wh, consumption_night_wh, production_day_wh, production_night_wh, sample_count
		FROM `+tt.table+`
		WHERE `+tt.startColumn+` = ?
	`, start).Scan(&a.StartTime, &a.ConsumptionDayWh, &a.ConsumptionNightWh, &a.ProductionDayWh, &a.ProductionNightWh, &a.SampleCount)
	if errors.Is(err, sql.ErrNoRows) {
		a.StartTime = start
		return data, nil
	}
	if err != nil {
		return data, err
	}
	data.IsInDb = true
	return data, nil
}

// snapshotTotalGasHourly keeps the last gas reading of an hour.
func snapshotTotalGasHourly(db *sql.DB, hourStart int64) error {
	hourEnd := EndOf(Hourly, hourStart)

	var dm3Standing uint32
	err := db.QueryRow(`
		SELECT consumption_dm3
		FROM total_gas_readings
		WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp DESC
		LIMIT 1
	`, hourStart, hourEnd).Scan(&dm3Standing)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	_, err = db.Exec(`
		INSERT OR REPLACE INTO snapshot_total_gas_hourly
		(timestamp, dm3_standing)
		VALUES (?, ?)
	`, hourStart, dm3Standing)
	return err
}

// snapshotTotalPowerHourly keeps the last meter standing per reading type,
// looking back up to a day.
func snapshotTotalPowerHourly(db *sql.DB, hourStart int64) error {
	hourEnd := EndOf(Hourly, hourStart)
	lookbackStart := hourEnd - (24 * 3600)

	getLastReading := func(readingType meterdb.MeterDbPowerReadingType) (uint32, bool, error) {
		var watthour uint32
		err := db.QueryRow(`
			SELECT watthour
			FROM total_power_readings
			WHERE reading_type = ? AND timestamp >= ? AND timestamp <= ?
			ORDER BY timestamp DESC
			LIMIT 1
		`, readingType, lookbackStart, hourEnd).Scan(&watthour)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return watthour, err == nil, err
	}

	var standings [4]uint32
	found := false
	for i, readingType := range []meterdb.MeterDbPowerReadingType{
		meterdb.PowerConsumptionDay,
		meterdb.PowerConsumptionNight,
		meterdb.PowerProductionDay,
		meterdb.PowerProductionNight,
	} {
		wh, ok, err := getLastReading(readingType)
		if err != nil {
			return fmt.Errorf("reading type %d: %w", readingType, err)
		}
		standings[i] = wh
		found = found || ok
	}
	if !found {
		return nil
	}

	_, err := db.Exec(`
		INSERT OR REPLACE INTO snapshot_total_power_hourly
		(timestamp, consumption_day_standing, consumption_night_standing, production_day_standing, production_night_standing)
		VALUES (?, ?, ?, ?, ?)
	`, hourStart, standings[0], standings[1], standings[2], standings[3])
	return err
}

// AggregateHour aggregates live power and snapshots the totals of the hour
// starting at hourStart.
func AggregateHour(db *sql.DB, hourStart int64) error {
	if err := AggregateLivePower(db, Hourly, hourStart); err != nil {
		return fmt.Errorf("hourly live power: %w", err)
	}
	if err := snapshotTotalGasHourly(db, hourStart); err != nil {
		return fmt.Errorf("gas snapshot: %w", err)
	}
	if err := snapshotTotalPowerHourly(db, hourStart); err != nil {
		return fmt.Errorf("power snapshot: %w", err)
	}
	return nil
}

// cleanupOldData removes raw readings older than the retention period,
// but only once the hourly aggregates have caught up with that point.
func cleanupOldData(db *sql.DB, now time.Time) error {
	cutoff := now.UTC().AddDate(0, -retention, 0)
	cutoffTimestamp := cutoff.Unix()

	var lastAggregateHour sql.NullInt64
	if err := db.QueryRow("SELECT MAX(hour_start) FROM aggregate_live_power_hourly").Scan(&lastAggregateHour); err != nil {
		return err
	}
	if !lastAggregateHour.Valid || lastAggregateHour.Int64 < cutoffTimestamp {
		return nil
	}

	for _, table := range []string{"live_power_readings", "total_power_readings", "total_gas_readings"} {
		if _, err := db.Exec("DELETE FROM "+table+" WHERE timestamp < ?", cutoffTimestamp); err != nil {
			return fmt.Errorf("cleanup %s: %w", table, err)
		}
	}
	log.Info().Msgf("cleaned up data older than %s", cutoff.Format(time.RFC3339))
	return nil
}

// AggregateAndCleanup aggregates the hour before now, the previous day and
// month when now is the first hour of a new one, and cleans up old raw
// data. Call it once per hour.
func AggregateAndCleanup(db *sql.DB, now time.Time) error {
	now = now.UTC()
	logger := log.With().Str("component", "aggregator").Logger()

	hourStart := roundToHourStart(now.Add(-time.Hour))
	logger.Info().Msgf("aggregating hour starting at %s", time.Unix(hourStart, 0).UTC().Format(time.RFC3339))
	if err := AggregateHour(db, hourStart); err != nil {
		return err
	}
	if hourly, err := LoadAggregate(db, Hourly, hourStart, now); err == nil && hourly.IsInDb {
		logger.Info().
			Uint32("consumption_wh", hourly.Aggregate.ConsumptionDayWh+hourly.Aggregate.ConsumptionNightWh).
			Uint32("production_wh", hourly.Aggregate.ProductionDayWh+hourly.Aggregate.ProductionNightWh).
			Uint32("samples", hourly.Aggregate.SampleCount).
			Msg("hour aggregated")
	}

	if now.Hour() == 0 {
		dayStart := roundToDayStart(now.AddDate(0, 0, -1))
		if err := AggregateLivePower(db, Daily, dayStart); err != nil {
			return fmt.Errorf("daily live power: %w", err)
		}
	}
	if now.Hour() == 0 && now.Day() == 1 {
		monthStart := roundToMonthStart(now.AddDate(0, -1, 0))
		if err := AggregateLivePower(db, Monthly, monthStart); err != nil {
			return fmt.Errorf("monthly live power: %w", err)
		}
	}

	if err := cleanupOldData(db, now); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}
