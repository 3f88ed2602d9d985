package extension

import (
	"context"

	"github.com/udl/extension/internal/dispatcher"
	"github.com/udl/extension/pkg/core"
)

// Opcode returns the qualified "<extension>_<opcode>" name blocks are
// dispatched under.
func Opcode(extensionID, opcode string) string {
	return extensionID + "_" + opcode
}

// Infos lists the declarations of every extension passed in.
func Infos(t *Tello, c *Camera) []core.ExtensionInfo {
	var out []core.ExtensionInfo
	if t != nil {
		out = append(out, t.Info())
	}
	if c != nil {
		out = append(out, c.Info())
	}
	return out
}

// RegisterHandlers wires every block of t and c into d. Command blocks are
// queued per opcode and each invocation runs on its own against ctx without
// the editor waiting, so a call the host never answers does not hold back the
// next one. Reporter and hat blocks answer synchronously. A nil extension is
// skipped.
func RegisterHandlers(ctx context.Context, d *dispatcher.Dispatcher, t *Tello, c *Camera, buffer int) {
	if buffer <= 0 {
		buffer = 64
	}
	cmd := []dispatcher.Option{dispatcher.Buffered(buffer), dispatcher.Detached(), dispatcher.Logged()}

	if t != nil {
		d.Register(Opcode(TelloID, OpTakeoff), func(dispatcher.Event) (any, error) {
			return nil, t.Takeoff(ctx)
		}, cmd...)
		d.Register(Opcode(TelloID, OpLand), func(dispatcher.Event) (any, error) {
			return nil, t.Land(ctx)
		}, cmd...)
		for _, op := range moveOrder {
			d.Register(Opcode(TelloID, op), func(e dispatcher.Event) (any, error) {
				return nil, t.Move(ctx, op, e.Arg("x"))
			}, cmd...)
		}
		for _, r := range reporters {
			d.Register(Opcode(TelloID, r.opcode), func(dispatcher.Event) (any, error) {
				return t.Reading(r.opcode)
			})
		}
		d.Register(Opcode(TelloID, OpWriteLog), func(e dispatcher.Event) (any, error) {
			t.WriteLog(e.Arg("TEXT"))
			return nil, nil
		})
	}

	if c != nil {
		d.Register(Opcode(CameraID, OpDetectStart), func(dispatcher.Event) (any, error) {
			c.DetectStart(ctx)
			return nil, nil
		}, dispatcher.Logged())
		d.Register(Opcode(CameraID, OpDetectEnd), func(dispatcher.Event) (any, error) {
			c.DetectEnd()
			return nil, nil
		}, dispatcher.Logged())
		d.Register(Opcode(CameraID, OpDetected), func(e dispatcher.Event) (any, error) {
			return c.Detected(e.Arg("n")), nil
		})
		d.Register(Opcode(CameraID, OpChaseStart), func(dispatcher.Event) (any, error) {
			return nil, c.ChaseStart(ctx)
		}, cmd...)
		d.Register(Opcode(CameraID, OpChaseEnd), func(dispatcher.Event) (any, error) {
			return nil, c.ChaseEnd(ctx)
		}, cmd...)
	}
}
