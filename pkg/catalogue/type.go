package catalogue

import "errors"

var (
	ErrUnknownVariant = errors.New("catalogue: unknown variant")
	ErrUnknownKind    = errors.New("catalogue: unknown field kind")
	ErrUnknownFormat  = errors.New("catalogue: unknown file format")
)

// File is the on-disk form of a custom catalogue.
type File struct {
	// Base optionally names a built-in variant the fields are added to.
	Base   string      `toml:"base" yaml:"base"`
	Fields []FileField `toml:"fields" yaml:"fields"`
}

type FileField struct {
	Name string `toml:"name" yaml:"name"`
	Obis string `toml:"obis" yaml:"obis"`
	// Kind is one of raw, string, timestamp, fixed, int,
	// timestamped_fixed or two_line_timestamped_fixed.
	Kind    string `toml:"kind" yaml:"kind"`
	Unit    string `toml:"unit" yaml:"unit"`
	IntUnit string `toml:"int_unit" yaml:"int_unit"`
	Min     int    `toml:"min" yaml:"min"`
	Max     int    `toml:"max" yaml:"max"`
}
