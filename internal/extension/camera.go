package extension

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/udl/extension/internal/bridge"
	"github.com/udl/extension/internal/sighting"
	"github.com/udl/extension/pkg/core"
)

// CameraID is the extension id of the AR marker blocks.
const CameraID = "udlcamera"

// Camera block opcodes.
const (
	OpDetectStart = "armarkerdetectstart"
	OpDetectEnd   = "armarkerdetectend"
	OpDetected    = "armarkerdetected"
	OpChaseStart  = "armarkerchasestart"
	OpChaseEnd    = "armarkerchaseend"
)

// MarkerMenu is the menu the hat block's marker argument is bound to. The
// program graph stores the selected value under this field name.
const MarkerMenu = "arMarkerNames"

// DefaultDetectInterval is the delay between detector polls.
const DefaultDetectInterval = 500 * time.Millisecond

var markerNames = []string{"ウマ", "ヒツジ", "トナカイ", "ニワトリ", "ゴリラ", "サイ", "クマ", "パンダ", "ライオン", "サル"}

// Camera is the AR marker extension. Detected markers are pushed into its
// sighting queue; hat blocks consume them.
type Camera struct {
	client   bridge.Client
	queue    *sighting.Queue
	interval time.Duration
	alerter  Alerter
	recorder Recorder
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	polls  sync.WaitGroup
}

// NewCamera creates the marker extension around queue. A non-positive
// interval means DefaultDetectInterval.
func NewCamera(client bridge.Client, queue *sighting.Queue, interval time.Duration, alerter Alerter, logger *slog.Logger) *Camera {
	if interval <= 0 {
		interval = DefaultDetectInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	if alerter == nil {
		alerter = AlertFunc(func(string) {})
	}
	return &Camera{
		client:   client,
		queue:    queue,
		interval: interval,
		alerter:  alerter,
		logger:   logger.With("extension", CameraID),
	}
}

// SetRecorder attaches the flight log.
func (c *Camera) SetRecorder(r Recorder) {
	c.recorder = r
}

// Queue returns the sighting queue.
func (c *Camera) Queue() *sighting.Queue {
	return c.queue
}

// Info returns the block declarations.
func (c *Camera) Info() core.ExtensionInfo {
	items := make([]core.MenuItem, len(markerNames))
	for i, name := range markerNames {
		items[i] = core.MenuItem{Text: name, Value: strconv.Itoa(i + 1)}
	}
	return core.ExtensionInfo{
		ID:   CameraID,
		Name: "UDL Camera",
		Blocks: []core.BlockInfo{
			{Opcode: OpDetectStart, Text: "ARマーカー処理開始", BlockType: core.BlockCommand},
			{Opcode: OpDetectEnd, Text: "ARマーカー処理終了", BlockType: core.BlockCommand},
			{
				Opcode:    OpDetected,
				Text:      "ARマーカーの[n]が見えたとき",
				BlockType: core.BlockHat,
				Arguments: map[string]core.Argument{
					"n": {Type: core.ArgumentString, Menu: MarkerMenu, DefaultValue: 1},
				},
			},
			{Opcode: OpChaseStart, Text: "ARマーカー追跡開始", BlockType: core.BlockCommand},
			{Opcode: OpChaseEnd, Text: "ARマーカー追跡終了", BlockType: core.BlockCommand},
		},
		Menus: map[string]core.Menu{
			MarkerMenu: {AcceptReporters: true, Items: items},
		},
	}
}

// DetectStart starts polling the detector. Each tick issues one request
// without waiting for the previous one. Starting a running loop is a no-op.
func (c *Camera) DetectStart(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.loop(ctx, c.done)
	c.logger.Info("marker detection started", "interval", c.interval)
}

// DetectEnd stops the loop. Queued sightings stay queued.
func (c *Camera) DetectEnd() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.polls.Wait()
	c.logger.Info("marker detection stopped", "queued", c.queue.Len())
}

// Detecting reports whether the detection loop runs.
func (c *Camera) Detecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

func (c *Camera) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.polls.Add(1)
			go func() {
				defer c.polls.Done()
				c.poll(ctx)
			}()
		}
	}
}

func (c *Camera) poll(ctx context.Context) {
	res, err := c.client.ARMarkerDetected(ctx)
	if err != nil {
		c.logger.Debug("marker poll failed", "error", err)
		return
	}
	if !res.Status {
		c.logger.Debug("marker poll refused", "message", res.Message)
		return
	}
	id, err := c.queue.PushRaw(res.Message)
	if err != nil {
		c.logger.Debug("marker poll ignored", "error", err)
		return
	}
	if c.recorder != nil {
		if err := c.recorder.RecordSighting(core.SightingRecord{Time: time.Now(), MarkerID: int(id)}); err != nil {
			c.logger.Warn("failed to record sighting", "error", err)
		}
	}
}

// Detected is the hat predicate for marker n. It consumes at most one
// matching sighting.
func (c *Camera) Detected(n any) bool {
	return c.queue.CheckAndConsume(sighting.Coerce(n))
}

// ChaseStart asks the host to start following the visible marker.
func (c *Camera) ChaseStart(ctx context.Context) error {
	res, err := c.client.ARMarkerChaseStart(ctx)
	return c.finish(OpChaseStart, res, err)
}

// ChaseEnd stops marker following.
func (c *Camera) ChaseEnd(ctx context.Context) error {
	res, err := c.client.ARMarkerChaseEnd(ctx)
	return c.finish(OpChaseEnd, res, err)
}

func (c *Camera) finish(opcode string, res core.Result, err error) error {
	if rerr := record(c.recorder, CameraID+"_"+opcode, nil, res, err); rerr != nil {
		c.logger.Warn("failed to record command", "opcode", opcode, "error", rerr)
	}
	if msg, ok := commandResult(res, err); !ok {
		c.logger.Info("command failed", "opcode", opcode, "message", msg)
		c.alerter.Alert(msg)
	}
	return nil
}
