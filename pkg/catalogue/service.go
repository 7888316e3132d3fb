// Package catalogue holds the DSMR field tables a registry is built from,
// and loads custom tables from TOML or YAML files.
package catalogue

import (
	"fmt"
	"slices"

	"github.com/NotCoffee418/dsmr_telegram/pkg/dsmr"
)

const (
	VariantFull = "full"
	VariantNL   = "nl"
	VariantBE   = "be"
)

// Fields returns a fresh copy of the built-in table for variant.
func Fields(variant string) ([]dsmr.FieldSpec, error) {
	all := fullTable()
	switch variant {
	case "", VariantFull:
		return all, nil
	case VariantNL:
		// Dutch meters never send the Belgian version line.
		return without(all, "p1_version_be"), nil
	case VariantBE:
		return without(all, "p1_version"), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, variant)
	}
}

// NewRegistry builds a registry for a built-in variant.
func NewRegistry(variant string) (*dsmr.Registry, error) {
	specs, err := Fields(variant)
	if err != nil {
		return nil, err
	}
	return dsmr.NewRegistry(specs)
}

func without(specs []dsmr.FieldSpec, names ...string) []dsmr.FieldSpec {
	return slices.DeleteFunc(specs, func(s dsmr.FieldSpec) bool {
		return slices.Contains(names, s.Name)
	})
}

func fullTable() []dsmr.FieldSpec {
	specs := []dsmr.FieldSpec{
		{ID: dsmr.IdentificationID, Name: "identification", Codec: dsmr.RawCodec{}},
		str("p1_version", "1-3:0.2.8", 2, 2),
		str("p1_version_be", "0-0:96.1.4", 0, 5),
		{ID: dsmr.MustParseObisID("0-0:1.0.0"), Name: "timestamp", Codec: dsmr.TimestampCodec{}},
		str("equipment_id", "0-0:96.1.1", 0, 96),

		fixed("energy_delivered_tariff1", "1-0:1.8.1", "kWh", "Wh"),
		fixed("energy_delivered_tariff2", "1-0:1.8.2", "kWh", "Wh"),
		fixed("energy_returned_tariff1", "1-0:2.8.1", "kWh", "Wh"),
		fixed("energy_returned_tariff2", "1-0:2.8.2", "kWh", "Wh"),
		str("electricity_tariff", "0-0:96.14.0", 4, 4),
		fixed("power_delivered", "1-0:1.7.0", "kW", "W"),
		fixed("power_returned", "1-0:2.7.0", "kW", "W"),
		fixed("electricity_threshold", "0-0:17.0.0", "kW", "W"),
		count("electricity_switch_position", "0-0:96.3.10"),
		count("electricity_failures", "0-0:96.7.21"),
		count("electricity_long_failures", "0-0:96.7.9"),
		{ID: dsmr.MustParseObisID("1-0:99.97.0"), Name: "electricity_failure_log", Codec: dsmr.RawCodec{}},
		count("electricity_sags_l1", "1-0:32.32.0"),
		count("electricity_sags_l2", "1-0:52.32.0"),
		count("electricity_sags_l3", "1-0:72.32.0"),
		count("electricity_swells_l1", "1-0:32.36.0"),
		count("electricity_swells_l2", "1-0:52.36.0"),
		count("electricity_swells_l3", "1-0:72.36.0"),
		str("message_short", "0-0:96.13.1", 0, 16),
		str("message_long", "0-0:96.13.0", 0, 2048),

		fixed("voltage_l1", "1-0:32.7.0", "V", "mV"),
		fixed("voltage_l2", "1-0:52.7.0", "V", "mV"),
		fixed("voltage_l3", "1-0:72.7.0", "V", "mV"),
		fixed("current_l1", "1-0:31.7.0", "A", "mA"),
		fixed("current_l2", "1-0:51.7.0", "A", "mA"),
		fixed("current_l3", "1-0:71.7.0", "A", "mA"),
		fixed("power_delivered_l1", "1-0:21.7.0", "kW", "W"),
		fixed("power_delivered_l2", "1-0:41.7.0", "kW", "W"),
		fixed("power_delivered_l3", "1-0:61.7.0", "kW", "W"),
		fixed("power_returned_l1", "1-0:22.7.0", "kW", "W"),
		fixed("power_returned_l2", "1-0:42.7.0", "kW", "W"),
		fixed("power_returned_l3", "1-0:62.7.0", "kW", "W"),
	}
	for channel := byte(1); channel <= 4; channel++ {
		specs = append(specs, mbusTable(channel)...)
	}
	return specs
}

// mbusTable is the block of fields of one M-Bus channel. Channel 2 is
// usually a heat meter that reports in GJ.
func mbusTable(channel byte) []dsmr.FieldSpec {
	prefix := fmt.Sprintf("mbus%d_", channel)
	id := func(c, d, e byte) dsmr.ObisID {
		return dsmr.NewObisID(0, channel, c, d, e)
	}
	unit, intUnit := "m3", "dm3"
	if channel == 2 {
		unit, intUnit = "GJ", "MJ"
	}
	return []dsmr.FieldSpec{
		{ID: id(24, 1, 0), Name: prefix + "device_type", Codec: dsmr.IntCodec{}},
		{ID: id(96, 1, 0), Name: prefix + "equipment_id_tc", Codec: dsmr.StringCodec{Max: 96}},
		{ID: id(96, 1, 1), Name: prefix + "equipment_id_ntc", Codec: dsmr.StringCodec{Max: 96}},
		{ID: id(24, 4, 0), Name: prefix + "valve_position", Codec: dsmr.IntCodec{}},
		{ID: id(24, 2, 1), Name: prefix + "delivered", Unit: unit, IntUnit: intUnit,
			Codec: dsmr.TimestampedFixedCodec{Unit: unit}},
		{ID: id(24, 2, 3), Name: prefix + "delivered_ntc", Unit: "m3", IntUnit: "dm3",
			Codec: dsmr.TimestampedFixedCodec{Unit: "m3"}},
		{ID: id(24, 3, 0), Name: prefix + "delivered_dbl", Unit: "m3", IntUnit: "dm3",
			Codec: dsmr.TwoLineTimestampedFixedCodec{Unit: "m3"}},
	}
}

func str(name, obis string, min, max int) dsmr.FieldSpec {
	return dsmr.FieldSpec{ID: dsmr.MustParseObisID(obis), Name: name, Codec: dsmr.StringCodec{Min: min, Max: max}}
}

func fixed(name, obis, unit, intUnit string) dsmr.FieldSpec {
	return dsmr.FieldSpec{
		ID:      dsmr.MustParseObisID(obis),
		Name:    name,
		Unit:    unit,
		IntUnit: intUnit,
		Codec:   dsmr.FixedCodec{Unit: unit},
	}
}

// count is a plain counter or state value without a unit.
func count(name, obis string) dsmr.FieldSpec {
	return dsmr.FieldSpec{ID: dsmr.MustParseObisID(obis), Name: name, Codec: dsmr.IntCodec{}}
}
