package extension

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udl/extension/internal/bridge"
	"github.com/udl/extension/internal/dispatcher"
	"github.com/udl/extension/internal/program"
	"github.com/udl/extension/internal/sighting"
	"github.com/udl/extension/internal/telemetry"
	"github.com/udl/extension/pkg/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func TestRegisterHandlers(t *testing.T) {
	client := newFakeClient()
	alerts := &alertLog{}
	cache := telemetry.NewCache()
	require.NoError(t, cache.Set(core.FieldSpeed, 12))

	ws := program.NewWorkspace()
	ws.Replace(hatBlocks(2))
	q := sighting.New(program.MarkerClaims{Graph: ws, FieldName: MarkerMenu})

	tello := NewTello(client, cache, bridge.UnitTime, alerts, nil)
	camera := NewCamera(client, q, time.Hour, alerts, nil)
	t.Cleanup(camera.DetectEnd)

	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	RegisterHandlers(context.Background(), d, tello, camera, 8)

	for _, info := range Infos(tello, camera) {
		for _, b := range info.Blocks {
			assert.True(t, d.HasHandler(Opcode(info.ID, b.Opcode)), "missing handler for %s_%s", info.ID, b.Opcode)
		}
	}

	// Commands are queued and answered immediately.
	res, err := d.Dispatch(dispatcher.Event{Opcode: "udltello_forward", Args: map[string]any{"x": "3"}})
	require.NoError(t, err)
	assert.Equal(t, "queued", res)
	require.Eventually(t, func() bool { return len(client.Calls()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, call{bridge.MethodForward, 3, bridge.UnitTime}, client.Calls()[0])

	// Reporters read the cache synchronously.
	res, err = d.Dispatch(dispatcher.Event{Opcode: "udltello_getSpeed"})
	require.NoError(t, err)
	assert.Equal(t, 12.0, res)

	// Hat blocks consume sightings synchronously.
	q.Push(2)
	res, err = d.Dispatch(dispatcher.Event{Opcode: "udlcamera_armarkerdetected", Args: map[string]any{"n": "2"}})
	require.NoError(t, err)
	assert.Equal(t, true, res)
	res, err = d.Dispatch(dispatcher.Event{Opcode: "udlcamera_armarkerdetected", Args: map[string]any{"n": "2"}})
	require.NoError(t, err)
	assert.Equal(t, false, res)

	_, err = d.Dispatch(dispatcher.Event{Opcode: "udlcamera_armarkerdetectstart"})
	require.NoError(t, err)
	assert.True(t, camera.Detecting())
	_, err = d.Dispatch(dispatcher.Event{Opcode: "udlcamera_armarkerdetectend"})
	require.NoError(t, err)
	assert.False(t, camera.Detecting())

	_, err = d.Dispatch(dispatcher.Event{Opcode: "udltello_writeLog", Args: map[string]any{"TEXT": "hi"}})
	require.NoError(t, err)
}

func TestRegisterHandlers_HungCommandDoesNotBlockOpcode(t *testing.T) {
	client := newFakeClient()
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	client.gate = func(method string, x float64) {
		if method == bridge.MethodUp && x == 1 {
			<-release
		}
	}
	tello := NewTello(client, telemetry.NewCache(), bridge.UnitTime, &alertLog{}, nil)

	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)
	RegisterHandlers(context.Background(), d, tello, nil, 8)

	for _, x := range []string{"1", "2"} {
		res, err := d.Dispatch(dispatcher.Event{Opcode: Opcode(TelloID, OpUp), Args: map[string]any{"x": x}})
		require.NoError(t, err)
		assert.Equal(t, dispatcher.Queued, res)
	}

	require.Eventually(t, func() bool { return len(client.Calls()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, call{bridge.MethodUp, 2, bridge.UnitTime}, client.Calls()[0])
}

func TestRegisterHandlers_SkipsNilExtensions(t *testing.T) {
	d, err := dispatcher.New(nopLogger{})
	require.NoError(t, err)

	RegisterHandlers(context.Background(), d, nil, nil, 0)
	assert.Empty(t, d.Opcodes())
	assert.Empty(t, Infos(nil, nil))
}

func TestToNumber(t *testing.T) {
	assert.Equal(t, 0.0, toNumber("NaN"))
	assert.Equal(t, 12.0, toNumber("12"))
	assert.Equal(t, -3.5, toNumber(-3.5))
	assert.Equal(t, 0.0, toNumber(false))
	assert.Equal(t, 0.0, toNumber(map[string]any{}))
}
