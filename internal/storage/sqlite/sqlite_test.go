package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udl/extension/internal/database"
	"github.com/udl/extension/internal/model"
	"github.com/udl/extension/pkg/core"
)

func countOnDisk(t *testing.T, path string, m any) int64 {
	t.Helper()
	db, err := database.OpenSqlite(path)
	require.NoError(t, err)
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}

func TestEndSession_Dumps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "udl.db")
	b, err := New(Config{DumpPath: path}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.StartSession(&core.Session{ID: "s1", StartTime: time.Now(), BridgeType: "tello"}))
	require.NoError(t, b.RecordCommand(core.CommandRecord{Time: time.Now(), Opcode: "udltello_takeoff", Status: true}))
	require.NoError(t, b.EndSession())

	assert.FileExists(t, path)
	assert.Equal(t, path, b.GetExportedFilePath())
	assert.EqualValues(t, 1, countOnDisk(t, path, &model.Command{}))

	meta := b.GetExportMetadata()
	assert.Equal(t, "s1", meta.SessionID)
	assert.Equal(t, "tello", meta.Tag)
}

func TestDumpLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodic.db")
	b, err := New(Config{DumpPath: path, DumpInterval: 10 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClose_FinalDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final.db")
	b, err := New(Config{DumpPath: path}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	require.NoError(t, b.StartSession(&core.Session{ID: "s1", StartTime: time.Now()}))
	require.NoError(t, b.RecordSighting(core.SightingRecord{Time: time.Now(), MarkerID: 7}))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.EqualValues(t, 1, countOnDisk(t, path, &model.Sighting{}))
}

func TestNoDumpPath(t *testing.T) {
	b, err := New(Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	assert.NoError(t, b.Dump())
	assert.NoError(t, b.Close())
}
