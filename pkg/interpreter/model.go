package interpreter

import (
	"encoding/json"
	"time"

	"github.com/NotCoffee418/dsmr_telegram/pkg/dsmr"
	"github.com/rs/zerolog/log"
)

const (
	KindString           = "string"
	KindInt              = "int"
	KindFixed            = "fixed"
	KindTimestampedFixed = "timestamped_fixed"
)

// FieldReading is one present field of a decoded telegram. Fixed values
// are kept as thousandths in Int, which is also their value in IntUnit.
type FieldReading struct {
	Obis      string `json:"obis"`
	Kind      string `json:"kind"`
	Text      string `json:"text,omitempty"`
	Int       uint32 `json:"int"`
	Unit      string `json:"unit,omitempty"`
	IntUnit   string `json:"int_unit,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Reading is the snapshot of one telegram that is served and broadcast.
type Reading struct {
	ReceivedAt time.Time               `json:"received_at"`
	Fields     map[string]FieldReading `json:"fields"`
}

// NewReading copies every present field out of reg.
func NewReading(reg *dsmr.Registry, receivedAt time.Time) *Reading {
	reading := &Reading{
		ReceivedAt: receivedAt,
		Fields:     make(map[string]FieldReading, reg.Len()),
	}
	reg.ForEach(func(f *dsmr.Field) {
		if !f.Present() {
			return
		}
		fr := FieldReading{Obis: f.ID().String(), Unit: f.Unit(), IntUnit: f.IntUnit()}
		switch v := f.Value().(type) {
		case string:
			fr.Kind, fr.Text = KindString, v
		case uint32:
			fr.Kind, fr.Int = KindInt, v
		case dsmr.FixedValue:
			fr.Kind, fr.Int = KindFixed, v.Int()
		case dsmr.TimestampedFixedValue:
			fr.Kind, fr.Int, fr.Timestamp = KindTimestampedFixed, v.Int(), v.Timestamp
		default:
			log.Warn().Str("field", f.Name()).Msgf("unsupported value type %T", v)
			return
		}
		reading.Fields[f.Name()] = fr
	})
	return reading
}

// Fixed returns the thousandths of a fixed or timestamped fixed field.
func (r *Reading) Fixed(name string) (uint32, bool) {
	f, ok := r.Fields[name]
	if !ok || (f.Kind != KindFixed && f.Kind != KindTimestampedFixed) {
		return 0, false
	}
	return f.Int, true
}

func (r *Reading) Uint(name string) (uint32, bool) {
	f, ok := r.Fields[name]
	if !ok || f.Kind != KindInt {
		return 0, false
	}
	return f.Int, true
}

func (r *Reading) String(name string) (string, bool) {
	f, ok := r.Fields[name]
	if !ok || f.Kind != KindString {
		return "", false
	}
	return f.Text, true
}

func (r *Reading) ToJsonBytes() []byte {
	data, err := json.Marshal(r)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal reading")
		return nil
	}
	return data
}

// ReadingFromJsonBytes returns nil when data is not a reading.
func ReadingFromJsonBytes(data []byte) *Reading {
	var reading Reading
	if err := json.Unmarshal(data, &reading); err != nil {
		return nil
	}
	if reading.Fields == nil {
		return nil
	}
	return &reading
}
