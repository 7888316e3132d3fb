package catalogue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/NotCoffee418/dsmr_telegram/pkg/dsmr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const tomlCatalogue = `
[[fields]]
name = "identification"
obis = "255-255:255.255.255.255"
kind = "raw"

[[fields]]
name = "energy_delivered"
obis = "1-0:1.8.1"
kind = "fixed"
unit = "kWh"

[[fields]]
name = "tariff"
obis = "0-0:96.14.0"
kind = "string"
min = 4
max = 4
`

const yamlCatalogue = `
fields:
  - name: identification
    obis: 255-255:255.255.255.255
    kind: raw
  - name: energy_delivered
    obis: 1-0:1.8.1
    kind: fixed
    unit: kWh
  - name: tariff
    obis: 0-0:96.14.0
    kind: string
    min: 4
    max: 4
`

func TestLoadFile_Formats(t *testing.T) {
	for name, content := range map[string]string{
		"custom.toml": tomlCatalogue,
		"custom.yaml": yamlCatalogue,
		"custom.yml":  yamlCatalogue,
	} {
		t.Run(name, func(t *testing.T) {
			specs, err := LoadFile(writeFile(t, name, content))
			require.NoError(t, err)
			require.Len(t, specs, 3)

			assert.Equal(t, dsmr.IdentificationID, specs[0].ID)
			assert.Equal(t, dsmr.NewObisID(1, 0, 1, 8, 1), specs[1].ID)
			assert.Equal(t, "kWh", specs[1].Unit)
			// Filled in from the unit.
			assert.Equal(t, "Wh", specs[1].IntUnit)
			assert.Equal(t, dsmr.FixedCodec{Unit: "kWh"}, specs[1].Codec)
			assert.Equal(t, dsmr.StringCodec{Min: 4, Max: 4}, specs[2].Codec)
		})
	}
}

func TestLoadRegistry_Parses(t *testing.T) {
	reg, err := LoadRegistry(writeFile(t, "custom.toml", tomlCatalogue))
	require.NoError(t, err)

	telegram := "/AAA5METER\r\n1-0:1.8.1(000012.345*kWh)\r\n0-0:96.14.0(0002)\r\n1-0:1.7.0(00.318*kW)\r\n!"
	opts := dsmr.DefaultOptions()
	opts.VerifyChecksum = false
	_, err = dsmr.Parse(reg, []byte(telegram), opts)
	require.NoError(t, err)

	v, ok := reg.Fixed("energy_delivered")
	require.True(t, ok)
	assert.Equal(t, uint32(12345), v.Int())
	id, _ := reg.String("identification")
	assert.Equal(t, "AAA5METER", id)
}

func TestLoadFile_Base(t *testing.T) {
	path := writeFile(t, "extra.yaml", `
base: nl
fields:
  - name: reactive_delivered
    obis: 1-0:3.8.0
    kind: fixed
    unit: kvarh
    int_unit: varh
`)
	specs, err := LoadFile(path)
	require.NoError(t, err)

	nl, err := Fields(VariantNL)
	require.NoError(t, err)
	require.Len(t, specs, len(nl)+1)
	last := specs[len(specs)-1]
	assert.Equal(t, "reactive_delivered", last.Name)
	assert.Equal(t, "varh", last.IntUnit)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(writeFile(t, "c.json", `{}`))
	require.ErrorIs(t, err, ErrUnknownFormat)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	_, err = LoadFile(writeFile(t, "c.toml", "[[fields]]\nname = \"x\"\nobis = \"1-0:1.8.1\"\nkind = \"float\"\n"))
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = LoadFile(writeFile(t, "c.toml", "[[fields]]\nname = \"x\"\nobis = \"1-0:1.8.1x\"\nkind = \"raw\"\n"))
	require.ErrorIs(t, err, dsmr.ErrObisID)

	_, err = LoadFile(writeFile(t, "c.toml", "[[fields]]\nobis = \"1-0:1.8.1\"\nkind = \"raw\"\n"))
	require.ErrorContains(t, err, "missing name")

	_, err = LoadFile(writeFile(t, "c.yaml", "base: de\n"))
	require.ErrorIs(t, err, ErrUnknownVariant)

	// Duplicates only show up when the registry is built.
	_, err = LoadRegistry(writeFile(t, "c.yaml", "base: full\nfields:\n  - name: again\n    obis: 1-0:1.8.1\n    kind: raw\n"))
	require.Error(t, err)
}
