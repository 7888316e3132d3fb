package esmutils

import "fmt"

// intUnits maps the unit a meter sends to the unit of the integer form of
// a three decimal value.
var intUnits = map[string]string{
	"kWh": "Wh",
	"kW":  "W",
	"V":   "mV",
	"A":   "mA",
	"m3":  "dm3",
	"GJ":  "MJ",
}

// IntUnit returns the integer unit for unit, or "" when there is none.
func IntUnit(unit string) string {
	return intUnits[unit]
}

// Thousandths formats a value stored in thousandths with its unit,
// e.g. 1234 kWh as "1.234 kWh".
func Thousandths(raw uint32, unit string) string {
	s := fmt.Sprintf("%d.%03d", raw/1000, raw%1000)
	if unit == "" {
		return s
	}
	return s + " " + unit
}
