package tello

import (
	"gobot.io/x/gobot/platforms/dji/tello"
)

// FlightData is the subset of the drone's flight status reported as
// telemetry.
type FlightData struct {
	BatteryPercentage float64
	NorthSpeed        float64
	EastSpeed         float64
	VerticalSpeed     float64
	FlyTime           float64
	Height            float64
}

// Drone is the control surface the bridge needs from a Tello.
type Drone interface {
	Start() error
	Halt() error
	TakeOff() error
	Land() error
	Up(pct int) error
	Down(pct int) error
	Left(pct int) error
	Right(pct int) error
	Forward(pct int) error
	Backward(pct int) error
	Clockwise(pct int) error
	CounterClockwise(pct int) error
	Hover() error
	OnConnected(fn func())
	OnFlightData(fn func(FlightData))
}

// gobotDrone adapts the gobot DJI Tello driver.
type gobotDrone struct {
	*tello.Driver
}

// NewGobotDrone returns a Drone talking to a Tello from the given local UDP
// port.
func NewGobotDrone(port string) Drone {
	return &gobotDrone{Driver: tello.NewDriver(port)}
}

func (d *gobotDrone) Hover() error {
	d.Driver.Hover()
	return nil
}

func (d *gobotDrone) OnConnected(fn func()) {
	_ = d.Driver.On(tello.ConnectedEvent, func(any) { fn() })
}

func (d *gobotDrone) OnFlightData(fn func(FlightData)) {
	_ = d.Driver.On(tello.FlightDataEvent, func(data any) {
		var fd *tello.FlightData
		switch v := data.(type) {
		case *tello.FlightData:
			fd = v
		case tello.FlightData:
			fd = &v
		default:
			return
		}
		fn(FlightData{
			BatteryPercentage: float64(fd.BatteryPercentage),
			NorthSpeed:        float64(fd.NorthSpeed),
			EastSpeed:         float64(fd.EastSpeed),
			VerticalSpeed:     float64(fd.VerticalSpeed),
			FlyTime:           float64(fd.FlyTime),
			Height:            float64(fd.Height),
		})
	})
}
