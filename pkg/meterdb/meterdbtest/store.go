// Package meterdbtest opens migrated meter databases for tests.
package meterdbtest

import (
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/NotCoffee418/dsmr_telegram/pkg/meterdb"
	"github.com/stretchr/testify/require"
)

// NewStore returns a store on a fresh database file in t.TempDir() with
// the up section of every migration applied.
func NewStore(t *testing.T) *meterdb.Store {
	t.Helper()
	db, err := meterdb.Open(filepath.Join(t.TempDir(), "meter.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrations := meterdb.Migrations()
	names, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)
	sort.Strings(names)

	for _, name := range names {
		data, err := fs.ReadFile(migrations, name)
		require.NoError(t, err)
		_, err = db.Exec(upSection(string(data)))
		require.NoError(t, err, path.Base(name))
	}
	return meterdb.NewStore(db)
}

func upSection(migration string) string {
	up := migration
	if i := strings.Index(up, "-- +up"); i >= 0 {
		up = up[i+len("-- +up"):]
	}
	if i := strings.Index(up, "-- +down"); i >= 0 {
		up = up[:i]
	}
	return up
}
