package aggregator

import (
	"testing"
	"time"

	"github.com/NotCoffee418/dsmr_telegram/pkg/meterdb"
	"github.com/NotCoffee418/dsmr_telegram/pkg/meterdb/meterdbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hour = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestTimeframeBounds(t *testing.T) {
	at := time.Date(2024, 2, 14, 13, 45, 10, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 2, 14, 13, 0, 0, 0, time.UTC).Unix(), StartOf(Hourly, at))
	assert.Equal(t, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC).Unix(), StartOf(Daily, at))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC).Unix(), StartOf(Monthly, at))

	assert.Equal(t, StartOf(Hourly, at)+3599, EndOf(Hourly, StartOf(Hourly, at)))
	assert.Equal(t, StartOf(Daily, at)+86399, EndOf(Daily, StartOf(Daily, at)))
	// 2024 is a leap year.
	assert.Equal(t, StartOf(Monthly, at)+29*86400-1, EndOf(Monthly, StartOf(Monthly, at)))
	assert.Equal(t, "daily", Daily.String())
}

func TestAggregateHour(t *testing.T) {
	store := meterdbtest.NewStore(t)
	start := hour.Unix()

	for i, w := range []uint32{300, 500} {
		require.NoError(t, store.InsertLivePowerReading(&meterdb.MeterDbLivePowerReading{
			Timestamp: start + int64(i*60), Watt: w, ReadingType: meterdb.PowerConsumptionDay,
		}))
	}
	require.NoError(t, store.InsertLivePowerReading(&meterdb.MeterDbLivePowerReading{
		Timestamp: start + 120, Watt: 1200, ReadingType: meterdb.PowerProductionDay,
	}))
	// Next hour, not part of the aggregate.
	require.NoError(t, store.InsertLivePowerReading(&meterdb.MeterDbLivePowerReading{
		Timestamp: start + 3600, Watt: 9999, ReadingType: meterdb.PowerConsumptionDay,
	}))

	require.NoError(t, store.InsertTotalPowerReading(&meterdb.MeterDbTotalPowerReading{Timestamp: start + 10, Watthour: 1000, ReadingType: meterdb.PowerConsumptionDay}))
	require.NoError(t, store.InsertTotalPowerReading(&meterdb.MeterDbTotalPowerReading{Timestamp: start + 20, Watthour: 1100, ReadingType: meterdb.PowerConsumptionDay}))
	require.NoError(t, store.InsertTotalPowerReading(&meterdb.MeterDbTotalPowerReading{Timestamp: start - 7200, Watthour: 500, ReadingType: meterdb.PowerConsumptionNight}))
	require.NoError(t, store.InsertTotalGasReading(&meterdb.MeterDbTotalGasReading{Timestamp: start + 10, TotalConsumptionDM3: 473000}))
	require.NoError(t, store.InsertTotalGasReading(&meterdb.MeterDbTotalGasReading{Timestamp: start + 30, TotalConsumptionDM3: 473789}))

	require.NoError(t, AggregateHour(store.DB(), start))

	data, err := LoadAggregate(store.DB(), Hourly, start, hour.Add(5*time.Hour))
	require.NoError(t, err)
	assert.True(t, data.IsInDb)
	assert.False(t, data.IsCurrentTimeframe)
	assert.Equal(t, start+3599, data.EndTime)
	assert.Equal(t, meterdb.AggregateLivePowerHourly{
		StartTime:        start,
		ConsumptionDayWh: 400,
		ProductionDayWh:  1200,
		SampleCount:      3,
	}, data.Aggregate)

	var gas meterdb.SnapshotTotalGasHourly
	require.NoError(t, store.DB().QueryRow("SELECT timestamp, dm3_standing FROM snapshot_total_gas_hourly").Scan(&gas.Timestamp, &gas.Dm3Standing))
	assert.Equal(t, meterdb.SnapshotTotalGasHourly{Timestamp: start, Dm3Standing: 473789}, gas)

	var power meterdb.SnapshotTotalPowerHourly
	require.NoError(t, store.DB().QueryRow(`SELECT timestamp, consumption_day_standing, consumption_night_standing,
		production_day_standing, production_night_standing FROM snapshot_total_power_hourly`).
		Scan(&power.Timestamp, &power.ConsumptionDayStanding, &power.ConsumptionNightStanding, &power.ProductionDayStanding, &power.ProductionNightStanding))
	assert.Equal(t, meterdb.SnapshotTotalPowerHourly{Timestamp: start, ConsumptionDayStanding: 1100, ConsumptionNightStanding: 500}, power)
}

func TestAggregateHour_Empty(t *testing.T) {
	store := meterdbtest.NewStore(t)
	require.NoError(t, AggregateHour(store.DB(), hour.Unix()))

	data, err := LoadAggregate(store.DB(), Hourly, hour.Unix(), hour)
	require.NoError(t, err)
	assert.False(t, data.IsInDb)
	assert.True(t, data.IsCurrentTimeframe)
	assert.Equal(t, hour.Unix(), data.Aggregate.StartTime)

	var n int
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM snapshot_total_power_hourly").Scan(&n))
	assert.Zero(t, n)
}

func TestAggregateLivePower_Daily(t *testing.T) {
	store := meterdbtest.NewStore(t)
	dayStart := StartOf(Daily, hour)
	require.NoError(t, store.InsertLivePowerReading(&meterdb.MeterDbLivePowerReading{
		Timestamp: dayStart + 100, Watt: 250, ReadingType: meterdb.PowerConsumptionNight,
	}))

	require.NoError(t, AggregateLivePower(store.DB(), Daily, dayStart))
	data, err := LoadAggregate(store.DB(), Daily, dayStart, hour)
	require.NoError(t, err)
	assert.Equal(t, uint32(250*24), data.Aggregate.ConsumptionNightWh)

	_, err = LoadAggregate(store.DB(), Timeframe(9), dayStart, hour)
	require.ErrorIs(t, err, ErrUnknownTimeframe)
}

func TestAggregateAndCleanup(t *testing.T) {
	store := meterdbtest.NewStore(t)
	now := time.Date(2025, 6, 1, 0, 5, 0, 0, time.UTC)
	old := now.AddDate(0, -4, 0).Unix()

	require.NoError(t, store.InsertLivePowerReading(&meterdb.MeterDbLivePowerReading{Timestamp: old, Watt: 1, ReadingType: meterdb.PowerConsumptionDay}))
	require.NoError(t, store.InsertTotalGasReading(&meterdb.MeterDbTotalGasReading{Timestamp: old, TotalConsumptionDM3: 1}))
	previousHour := StartOf(Hourly, now.Add(-time.Hour))
	require.NoError(t, store.InsertLivePowerReading(&meterdb.MeterDbLivePowerReading{Timestamp: previousHour + 60, Watt: 800, ReadingType: meterdb.PowerConsumptionDay}))

	require.NoError(t, AggregateAndCleanup(store.DB(), now))

	hourly, err := LoadAggregate(store.DB(), Hourly, previousHour, now)
	require.NoError(t, err)
	assert.Equal(t, uint32(800), hourly.Aggregate.ConsumptionDayWh)

	// Midnight on the first: the previous day and month are aggregated too.
	daily, err := LoadAggregate(store.DB(), Daily, StartOf(Daily, now.AddDate(0, 0, -1)), now)
	require.NoError(t, err)
	assert.True(t, daily.IsInDb)
	monthly, err := LoadAggregate(store.DB(), Monthly, StartOf(Monthly, now.AddDate(0, -1, 0)), now)
	require.NoError(t, err)
	assert.True(t, monthly.IsInDb)

	var n int
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM live_power_readings WHERE timestamp = ?", old).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM total_gas_readings").Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM live_power_readings").Scan(&n))
	assert.Equal(t, 1, n)
}
