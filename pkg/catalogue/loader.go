package catalogue

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/dsmr_telegram/pkg/dsmr"
	"github.com/NotCoffee418/dsmr_telegram/pkg/esmutils"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a catalogue from a .toml, .yaml or .yml file.
func LoadFile(path string) ([]dsmr.FieldSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue: %w", err)
	}

	var file File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), &file); err != nil {
			return nil, fmt.Errorf("failed to parse catalogue %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse catalogue %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}

	specs, err := file.Specs()
	if err != nil {
		return nil, fmt.Errorf("catalogue %s: %w", path, err)
	}
	return specs, nil
}

// LoadRegistry builds a registry from a catalogue file.
func LoadRegistry(path string) (*dsmr.Registry, error) {
	specs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return dsmr.NewRegistry(specs)
}

// Specs converts the file into field specs, after the fields of the base
// variant when one is set.
func (f *File) Specs() ([]dsmr.FieldSpec, error) {
	var specs []dsmr.FieldSpec
	if f.Base != "" {
		base, err := Fields(f.Base)
		if err != nil {
			return nil, err
		}
		specs = base
	}
	for i, ff := range f.Fields {
		spec, err := ff.spec()
		if err != nil {
			return nil, fmt.Errorf("field %d (%s): %w", i, ff.Name, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (ff FileField) spec() (dsmr.FieldSpec, error) {
	if ff.Name == "" {
		return dsmr.FieldSpec{}, fmt.Errorf("missing name")
	}
	id, err := dsmr.ParseObisIDString(ff.Obis)
	if err != nil {
		return dsmr.FieldSpec{}, fmt.Errorf("invalid obis id %q: %w", ff.Obis, err)
	}

	intUnit := ff.IntUnit
	if intUnit == "" {
		intUnit = esmutils.IntUnit(ff.Unit)
	}
	spec := dsmr.FieldSpec{ID: id, Name: ff.Name, Unit: ff.Unit, IntUnit: intUnit}

	switch ff.Kind {
	case "raw":
		spec.Codec = dsmr.RawCodec{}
	case "string":
		maxLen := ff.Max
		if maxLen == 0 {
			maxLen = 96
		}
		spec.Codec = dsmr.StringCodec{Min: ff.Min, Max: maxLen}
	case "timestamp":
		spec.Codec = dsmr.TimestampCodec{}
	case "fixed":
		spec.Codec = dsmr.FixedCodec{Unit: ff.Unit}
	case "int":
		spec.Codec = dsmr.IntCodec{Unit: ff.Unit}
	case "timestamped_fixed":
		spec.Codec = dsmr.TimestampedFixedCodec{Unit: ff.Unit}
	case "two_line_timestamped_fixed":
		spec.Codec = dsmr.TwoLineTimestampedFixedCodec{Unit: ff.Unit}
	default:
		return dsmr.FieldSpec{}, fmt.Errorf("%w: %q", ErrUnknownKind, ff.Kind)
	}
	return spec, nil
}
