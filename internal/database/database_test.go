package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udl/extension/internal/config"
	"github.com/udl/extension/internal/model"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.PostgresConfig{
		Host: "db", Port: "5432", Username: "u", Password: "p", Database: "udl",
	})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=udl sslmode=disable", dsn)

	dsn = PostgresDSN(config.PostgresConfig{Host: "db", Port: "5432", SSLMode: "require"})
	assert.Contains(t, dsn, "sslmode=require")
}

func TestOpenSqlite_MemoryIsPrivate(t *testing.T) {
	a, err := OpenSqlite("")
	require.NoError(t, err)
	b, err := OpenSqlite("")
	require.NoError(t, err)

	require.NoError(t, Migrate(a))
	require.NoError(t, Migrate(b))

	require.NoError(t, a.Create(&model.FlightSession{ID: "s1", StartTime: time.Now()}).Error)

	var count int64
	require.NoError(t, b.Model(&model.FlightSession{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDump(t *testing.T) {
	db, err := OpenSqlite("")
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	require.NoError(t, db.Create(&model.FlightSession{ID: "s1", StartTime: time.Now()}).Error)
	require.NoError(t, db.Create(&model.Sighting{SessionID: "s1", Time: time.Now(), MarkerID: 3}).Error)

	path := filepath.Join(t.TempDir(), "dumps", "udl.db")
	require.NoError(t, Dump(db, path))
	// a second dump replaces the first
	require.NoError(t, Dump(db, path))

	disk, err := OpenSqlite(path)
	require.NoError(t, err)
	var sightings []model.Sighting
	require.NoError(t, disk.Find(&sightings).Error)
	require.Len(t, sightings, 1)
	assert.Equal(t, 3, sightings[0].MarkerID)
}

func TestDump_NoPath(t *testing.T) {
	db, err := OpenSqlite("")
	require.NoError(t, err)
	assert.ErrorIs(t, Dump(db, ""), ErrNoDumpPath)
}

func TestListDumps(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.db", "a.db", "notes.txt", "a.db.old"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c.db"), 0755))

	paths, err := ListDumps(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.db"), filepath.Join(dir, "b.db")}, paths)

	_, err = ListDumps(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
