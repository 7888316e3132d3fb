package meterdb

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/NotCoffee418/dsmr_telegram/pkg/interpreter"
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

var ErrNothingToStore = errors.New("reading has no storable fields")

func insertLivePowerReading(db execer, reading *MeterDbLivePowerReading) error {
	_, err := db.Exec(
		"INSERT INTO live_power_readings (timestamp, watt, reading_type) "+
			"VALUES (?, ?, ?)",
		reading.Timestamp,
		reading.Watt,
		reading.ReadingType,
	)
	return err
}

func insertTotalPowerReading(db execer, reading *MeterDbTotalPowerReading) error {
	_, err := db.Exec(
		"INSERT INTO total_power_readings (timestamp, watthour, reading_type) "+
			"VALUES (?, ?, ?)",
		reading.Timestamp,
		reading.Watthour,
		reading.ReadingType,
	)
	return err
}

func insertTotalGasReading(db execer, reading *MeterDbTotalGasReading) error {
	_, err := db.Exec(
		"INSERT INTO total_gas_readings (timestamp, consumption_dm3) "+
			"VALUES (?, ?)",
		reading.Timestamp,
		reading.TotalConsumptionDM3,
	)
	return err
}

func (s *Store) InsertLivePowerReading(reading *MeterDbLivePowerReading) error {
	return insertLivePowerReading(s.db, reading)
}

func (s *Store) InsertTotalPowerReading(reading *MeterDbTotalPowerReading) error {
	return insertTotalPowerReading(s.db, reading)
}

func (s *Store) InsertTotalGasReading(reading *MeterDbTotalGasReading) error {
	return insertTotalGasReading(s.db, reading)
}

type fieldType struct {
	field       string
	readingType MeterDbPowerReadingType
}

// Rows derived from one reading.
type readingRows struct {
	live  []MeterDbLivePowerReading
	total []MeterDbTotalPowerReading
	gas   *MeterDbTotalGasReading
}

// rowsFromReading maps the catalogue fields of a reading to database
// rows. Fixed values are stored in their integer unit (W, Wh, dm3), which
// is exactly the thousandths the meter sent.
func rowsFromReading(reading *interpreter.Reading) readingRows {
	var rows readingRows
	ts := reading.ReceivedAt.Unix()

	tariff, _ := reading.String("electricity_tariff")
	consumption, production := PowerConsumptionDay, PowerProductionDay
	if tariff == TariffNight {
		consumption, production = PowerConsumptionNight, PowerProductionNight
	}
	for _, live := range []fieldType{
		{"power_delivered", consumption},
		{"power_returned", production},
	} {
		if w, ok := reading.Fixed(live.field); ok {
			rows.live = append(rows.live, MeterDbLivePowerReading{Timestamp: ts, Watt: w, ReadingType: live.readingType})
		}
	}

	for _, total := range []fieldType{
		{"energy_delivered_tariff1", PowerConsumptionDay},
		{"energy_delivered_tariff2", PowerConsumptionNight},
		{"energy_returned_tariff1", PowerProductionDay},
		{"energy_returned_tariff2", PowerProductionNight},
	} {
		if wh, ok := reading.Fixed(total.field); ok {
			rows.total = append(rows.total, MeterDbTotalPowerReading{Timestamp: ts, Watthour: wh, ReadingType: total.readingType})
		}
	}

	if dm3, ok := gasDelivered(reading); ok {
		rows.gas = &MeterDbTotalGasReading{Timestamp: ts, TotalConsumptionDM3: dm3}
	}
	return rows
}

const mbusDeviceTypeGas = 3

// gasDelivered finds the gas meter among the M-Bus channels. A channel
// that announces itself as a gas meter wins, otherwise the first channel
// reporting in dm3.
func gasDelivered(reading *interpreter.Reading) (uint32, bool) {
	var fallback uint32
	found := false
	for channel := 1; channel <= 4; channel++ {
		prefix := fmt.Sprintf("mbus%d_", channel)
		for _, suffix := range []string{"delivered", "delivered_dbl"} {
			field, ok := reading.Fields[prefix+suffix]
			if !ok || field.IntUnit != "dm3" {
				continue
			}
			if deviceType, ok := reading.Uint(prefix + "device_type"); ok && deviceType == mbusDeviceTypeGas {
				return field.Int, true
			}
			if !found {
				fallback, found = field.Int, true
			}
		}
	}
	return fallback, found
}

// StoreReading writes every row a reading maps to in one transaction.
func (s *Store) StoreReading(reading *interpreter.Reading) error {
	rows := rowsFromReading(reading)
	if len(rows.live) == 0 && len(rows.total) == 0 && rows.gas == nil {
		return ErrNothingToStore
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range rows.live {
		if err := insertLivePowerReading(tx, &rows.live[i]); err != nil {
			return fmt.Errorf("failed to store live power: %w", err)
		}
	}
	for i := range rows.total {
		if err := insertTotalPowerReading(tx, &rows.total[i]); err != nil {
			return fmt.Errorf("failed to store power totals: %w", err)
		}
	}
	if rows.gas != nil {
		if err := insertTotalGasReading(tx, rows.gas); err != nil {
			return fmt.Errorf("failed to store gas total: %w", err)
		}
	}
	return tx.Commit()
}
