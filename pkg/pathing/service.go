package pathing

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureDirs creates the config and data directories when missing. The
// binaries call it on startup.
func EnsureDirs() error {
	for _, dir := range []string{GetConfigDir(), GetDataDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func GetMeterDbPath() string {
	return filepath.Join(GetDataDir(), "esm-meter.db")
}

func GetDataDir() string {
	return "/var/lib/european_smart_meter"
}

func GetConfigDir() string {
	return "/etc/european_smart_meter"
}
