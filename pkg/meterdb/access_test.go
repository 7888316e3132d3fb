package meterdb_test

import (
	"testing"
	"time"

	"github.com/NotCoffee418/dsmr_telegram/pkg/interpreter"
	"github.com/NotCoffee418/dsmr_telegram/pkg/meterdb"
	"github.com/NotCoffee418/dsmr_telegram/pkg/meterdb/meterdbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var receivedAt = time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

func fixed(obis string, v uint32, unit, intUnit string) interpreter.FieldReading {
	return interpreter.FieldReading{Obis: obis, Kind: interpreter.KindFixed, Int: v, Unit: unit, IntUnit: intUnit}
}

func gas(obis string, v uint32, intUnit string) interpreter.FieldReading {
	return interpreter.FieldReading{Obis: obis, Kind: interpreter.KindTimestampedFixed, Int: v, IntUnit: intUnit, Timestamp: "250601120000S"}
}

func deviceType(obis string, v uint32) interpreter.FieldReading {
	return interpreter.FieldReading{Obis: obis, Kind: interpreter.KindInt, Int: v}
}

func fullReading(tariff string) *interpreter.Reading {
	return &interpreter.Reading{
		ReceivedAt: receivedAt,
		Fields: map[string]interpreter.FieldReading{
			"electricity_tariff":       {Obis: "0-0:96.14.0", Kind: interpreter.KindString, Text: tariff},
			"power_delivered":          fixed("1-0:1.7.0", 333, "kW", "W"),
			"power_returned":           fixed("1-0:2.7.0", 0, "kW", "W"),
			"energy_delivered_tariff1": fixed("1-0:1.8.1", 671578, "kWh", "Wh"),
			"energy_delivered_tariff2": fixed("1-0:1.8.2", 842472, "kWh", "Wh"),
			"energy_returned_tariff1":  fixed("1-0:2.8.1", 12, "kWh", "Wh"),
			"energy_returned_tariff2":  fixed("1-0:2.8.2", 34, "kWh", "Wh"),
			"mbus1_device_type":        deviceType("0-1:24.1.0", 3),
			"mbus1_delivered":          gas("0-1:24.2.1", 473789, "dm3"),
		},
	}
}

type liveRow struct {
	Timestamp   int64
	Watt        uint32
	ReadingType meterdb.MeterDbPowerReadingType
}

func liveRows(t *testing.T, store *meterdb.Store) []liveRow {
	t.Helper()
	rows, err := store.DB().Query("SELECT timestamp, watt, reading_type FROM live_power_readings ORDER BY reading_type")
	require.NoError(t, err)
	defer rows.Close()
	var out []liveRow
	for rows.Next() {
		var r liveRow
		require.NoError(t, rows.Scan(&r.Timestamp, &r.Watt, &r.ReadingType))
		out = append(out, r)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestStoreReading_DayTariff(t *testing.T) {
	store := meterdbtest.NewStore(t)
	require.NoError(t, store.StoreReading(fullReading(meterdb.TariffDay)))

	assert.Equal(t, []liveRow{
		{receivedAt.Unix(), 333, meterdb.PowerConsumptionDay},
		{receivedAt.Unix(), 0, meterdb.PowerProductionDay},
	}, liveRows(t, store))

	totals := map[meterdb.MeterDbPowerReadingType]uint32{}
	rows, err := store.DB().Query("SELECT reading_type, watthour FROM total_power_readings")
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var readingType meterdb.MeterDbPowerReadingType
		var wh uint32
		require.NoError(t, rows.Scan(&readingType, &wh))
		totals[readingType] = wh
	}
	assert.Equal(t, map[meterdb.MeterDbPowerReadingType]uint32{
		meterdb.PowerConsumptionDay:   671578,
		meterdb.PowerConsumptionNight: 842472,
		meterdb.PowerProductionDay:    12,
		meterdb.PowerProductionNight:  34,
	}, totals)

	var dm3 uint32
	require.NoError(t, store.DB().QueryRow("SELECT consumption_dm3 FROM total_gas_readings").Scan(&dm3))
	assert.Equal(t, uint32(473789), dm3)
}

func TestStoreReading_NightTariff(t *testing.T) {
	store := meterdbtest.NewStore(t)
	require.NoError(t, store.StoreReading(fullReading(meterdb.TariffNight)))

	assert.Equal(t, []liveRow{
		{receivedAt.Unix(), 333, meterdb.PowerConsumptionNight},
		{receivedAt.Unix(), 0, meterdb.PowerProductionNight},
	}, liveRows(t, store))
}

func TestStoreReading_PicksGasChannel(t *testing.T) {
	store := meterdbtest.NewStore(t)
	reading := &interpreter.Reading{
		ReceivedAt: receivedAt,
		Fields: map[string]interpreter.FieldReading{
			// Heat meter in GJ on channel 2, water meter on 3, gas on 4.
			"mbus2_delivered":   gas("0-2:24.2.1", 12345, "MJ"),
			"mbus3_device_type": deviceType("0-3:24.1.0", 7),
			"mbus3_delivered":   gas("0-3:24.2.1", 1000, "dm3"),
			"mbus4_device_type": deviceType("0-4:24.1.0", 3),
			"mbus4_delivered":   gas("0-4:24.2.1", 2000, "dm3"),
		},
	}
	require.NoError(t, store.StoreReading(reading))

	var dm3 uint32
	require.NoError(t, store.DB().QueryRow("SELECT consumption_dm3 FROM total_gas_readings").Scan(&dm3))
	assert.Equal(t, uint32(2000), dm3)
}

func TestStoreReading_Nothing(t *testing.T) {
	store := meterdbtest.NewStore(t)
	err := store.StoreReading(&interpreter.Reading{
		ReceivedAt: receivedAt,
		Fields: map[string]interpreter.FieldReading{
			"identification": {Kind: interpreter.KindString, Text: "KFM5KAIFA-METER"},
		},
	})
	require.ErrorIs(t, err, meterdb.ErrNothingToStore)
}

func TestInsertReadings(t *testing.T) {
	store := meterdbtest.NewStore(t)
	require.NoError(t, store.InsertLivePowerReading(&meterdb.MeterDbLivePowerReading{Timestamp: 10, Watt: 500, ReadingType: meterdb.PowerProductionDay}))
	require.NoError(t, store.InsertTotalPowerReading(&meterdb.MeterDbTotalPowerReading{Timestamp: 10, Watthour: 9000, ReadingType: meterdb.PowerProductionDay}))
	require.NoError(t, store.InsertTotalGasReading(&meterdb.MeterDbTotalGasReading{Timestamp: 10, TotalConsumptionDM3: 77}))

	assert.Equal(t, []liveRow{{10, 500, meterdb.PowerProductionDay}}, liveRows(t, store))
	var wh uint32
	require.NoError(t, store.DB().QueryRow("SELECT watthour FROM total_power_readings WHERE timestamp = 10").Scan(&wh))
	assert.Equal(t, uint32(9000), wh)
}
