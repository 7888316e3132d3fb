package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/dsmr_telegram/pkg/catalogue"
	"github.com/NotCoffee418/dsmr_telegram/pkg/dsmr"
	"github.com/NotCoffee418/dsmr_telegram/pkg/pathing"
)

var (
	ActiveInterpreterAPIConfig *InterpreterAPIConfig
	ActiveMeterCollectorConfig *MeterCollectorConfig
)

var ErrInvalidConfig = errors.New("invalid config")

func DefaultInterpreterAPIConfig() *InterpreterAPIConfig {
	return &InterpreterAPIConfig{
		SerialDevice:   "/dev/ttyUSB0",
		Baudrate:       115200,
		ListenAddress:  "0.0.0.0",
		ListenPort:     9039,
		Variant:        catalogue.VariantFull,
		VerifyChecksum: true,
		UnitMismatch:   dsmr.UnitStrict.String(),
	}
}

func DefaultMeterCollectorConfig() *MeterCollectorConfig {
	return &MeterCollectorConfig{
		InterpreterAPIHost: "localhost:9039",
		TLSEnabled:         false,
		DbPath:             pathing.GetMeterDbPath(),
		AggregationEnabled: true,
	}
}

func LoadInterpreterAPIConfig() error {
	cfg, err := LoadInterpreterAPIConfigFrom(filepath.Join(pathing.GetConfigDir(), "interpreter_api.toml"))
	if err != nil {
		return err
	}
	ActiveInterpreterAPIConfig = cfg
	return nil
}

func LoadMeterCollectorConfig() error {
	cfg, err := LoadMeterCollectorConfigFrom(filepath.Join(pathing.GetConfigDir(), "meter_collector.toml"))
	if err != nil {
		return err
	}
	ActiveMeterCollectorConfig = cfg
	return nil
}

// LoadInterpreterAPIConfigFrom reads path, writing the defaults there
// first when it does not exist. Keys missing from the file keep their
// default.
func LoadInterpreterAPIConfigFrom(path string) (*InterpreterAPIConfig, error) {
	cfg := DefaultInterpreterAPIConfig()
	if err := loadOrCreate(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func LoadMeterCollectorConfigFrom(path string) (*MeterCollectorConfig, error) {
	cfg := DefaultMeterCollectorConfig()
	if err := loadOrCreate(path, cfg); err != nil {
		return nil, err
	}
	if cfg.InterpreterAPIHost == "" {
		return nil, fmt.Errorf("%s: %w: interpreter_api_host is empty", path, ErrInvalidConfig)
	}
	return cfg, nil
}

func loadOrCreate(path string, cfg any) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfgFile, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create default config: %w", err)
		}
		defer cfgFile.Close()
		if err := toml.NewEncoder(cfgFile).Encode(cfg); err != nil {
			return fmt.Errorf("failed to write default config: %w", err)
		}
		return nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return nil
}

func (c *InterpreterAPIConfig) Validate() error {
	var errs []error
	if c.SerialDevice == "" {
		errs = append(errs, fmt.Errorf("%w: serial_device is empty", ErrInvalidConfig))
	}
	if c.Baudrate == 0 {
		errs = append(errs, fmt.Errorf("%w: baudrate is zero", ErrInvalidConfig))
	}
	if _, err := dsmr.ParseUnitPolicy(c.UnitMismatch); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if c.CatalogueFile == "" {
		if _, err := catalogue.Fields(c.Variant); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
		}
	}
	return errors.Join(errs...)
}

// ParserOptions turns the decoding settings into parser options.
func (c *InterpreterAPIConfig) ParserOptions() (dsmr.Options, error) {
	policy, err := dsmr.ParseUnitPolicy(c.UnitMismatch)
	if err != nil {
		return dsmr.Options{}, err
	}
	opts := dsmr.DefaultOptions()
	opts.VerifyChecksum = c.VerifyChecksum
	opts.ErrorOnUnknownField = c.ErrorOnUnknownField
	opts.UnitMismatch = policy
	return opts, nil
}

// FieldSpecs returns the configured catalogue.
func (c *InterpreterAPIConfig) FieldSpecs() ([]dsmr.FieldSpec, error) {
	if c.CatalogueFile != "" {
		return catalogue.LoadFile(c.CatalogueFile)
	}
	return catalogue.Fields(c.Variant)
}

// RegistryFactory loads the catalogue once and returns a function that
// builds a fresh registry from it for every telegram.
func (c *InterpreterAPIConfig) RegistryFactory() (func() (*dsmr.Registry, error), error) {
	specs, err := c.FieldSpecs()
	if err != nil {
		return nil, err
	}
	if _, err := dsmr.NewRegistry(specs); err != nil {
		return nil, err
	}
	return func() (*dsmr.Registry, error) {
		return dsmr.NewRegistry(specs)
	}, nil
}
