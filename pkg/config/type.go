package config

type MeterCollectorConfig struct {
	InterpreterAPIHost string `toml:"interpreter_api_host"`
	TLSEnabled         bool   `toml:"tls_enabled"`
	// DbPath defaults to the meter database in the data directory.
	DbPath             string `toml:"db_path"`
	AggregationEnabled bool   `toml:"aggregation_enabled"`
}

type InterpreterAPIConfig struct {
	SerialDevice  string `toml:"serial_device"`
	Baudrate      uint   `toml:"baudrate"`
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`

	// Variant is the built-in field catalogue: full, nl or be.
	// CatalogueFile, when set, replaces it with a TOML or YAML catalogue.
	Variant       string `toml:"variant"`
	CatalogueFile string `toml:"catalogue_file"`

	VerifyChecksum      bool `toml:"verify_checksum"`
	ErrorOnUnknownField bool `toml:"error_on_unknown_field"`
	// UnitMismatch is strict or tolerant.
	UnitMismatch string `toml:"unit_mismatch"`
}
