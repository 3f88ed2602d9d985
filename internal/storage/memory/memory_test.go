package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udl/extension/internal/config"
	"github.com/udl/extension/pkg/core"
)

func testSession() *core.Session {
	return &core.Session{
		ID:               "0b6f3c1e-8f8a-4f3e-9a59-1d0c8f3f2a11",
		StartTime:        time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
		BridgeType:       "tello",
		ExtensionVersion: "1.0.0",
	}
}

func TestRecordWithoutSession(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.Init())

	require.NoError(t, b.RecordCommand(core.CommandRecord{Opcode: "udltello_land"}))
	require.NoError(t, b.RecordTelemetry(core.TelemetrySample{Field: core.FieldHeight}))
	require.NoError(t, b.RecordSighting(core.SightingRecord{MarkerID: 1}))

	c, tel, s := b.Counts()
	assert.Equal(t, []int{0, 0, 0}, []int{c, tel, s})
	assert.ErrorIs(t, b.EndSession(), ErrNoSession)
	assert.NoError(t, b.Close())
}

func TestStartSession_Resets(t *testing.T) {
	b := New(config.MemoryConfig{})
	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.RecordSighting(core.SightingRecord{MarkerID: 2}))
	require.NoError(t, b.RecordCommand(core.CommandRecord{Opcode: "udltello_up"}))

	c, _, s := b.Counts()
	assert.Equal(t, 1, c)
	assert.Equal(t, 1, s)

	require.NoError(t, b.StartSession(testSession()))
	c, _, s = b.Counts()
	assert.Zero(t, c)
	assert.Zero(t, s)
}

func TestStartSession_CopiesSession(t *testing.T) {
	b := New(config.MemoryConfig{})
	s := testSession()
	require.NoError(t, b.StartSession(s))
	s.BridgeType = "changed"

	export := b.buildExport()
	assert.Equal(t, "tello", export.BridgeType)
}
