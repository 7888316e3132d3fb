package dsmr

import "fmt"

// FixedValue is a number with three decimals stored as thousandths, so
// 1.234 kWh is kept as 1234 (which is also its value in Wh).
type FixedValue struct {
	Raw uint32 `json:"raw"`
}

func (v FixedValue) Float() float64 {
	return float64(v.Raw) / 1000
}

// Int returns the value in thousandths of the field unit.
func (v FixedValue) Int() uint32 {
	return v.Raw
}

func (v FixedValue) String() string {
	return fmt.Sprintf("%d.%03d", v.Raw/1000, v.Raw%1000)
}

// TimestampedFixedValue is a fixed value with the capture time the meter
// sent along with it, e.g. the last gas meter reading.
type TimestampedFixedValue struct {
	FixedValue
	Timestamp string `json:"timestamp"`
}

func (v TimestampedFixedValue) String() string {
	return fmt.Sprintf("%s@%s", v.FixedValue, v.Timestamp)
}
