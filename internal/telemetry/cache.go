// Package telemetry keeps the last known drone readings fresh for reporter
// blocks.
package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/udl/extension/pkg/core"
)

// Cache holds the last successfully parsed value of every field. Writes are
// last-write-wins per field.
type Cache struct {
	mu   sync.RWMutex
	snap core.TelemetrySnapshot
}

func NewCache() *Cache {
	return &Cache{}
}

// Set overwrites one field.
func (c *Cache) Set(field core.TelemetryField, v float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch field {
	case core.FieldBatteryPercentage:
		c.snap.BatteryPercentage = v
	case core.FieldSpeed:
		c.snap.Speed = v
	case core.FieldVerticalSpeed:
		c.snap.VerticalSpeed = v
	case core.FieldFlyTime:
		c.snap.FlyTime = v
	case core.FieldHeight:
		c.snap.Height = v
	case core.FieldTemperature:
		c.snap.Temperature = v
	default:
		return fmt.Errorf("unknown telemetry field: %s", field)
	}
	return nil
}

// Get returns one field.
func (c *Cache) Get(field core.TelemetryField) (float64, bool) {
	s := c.Snapshot()
	switch field {
	case core.FieldBatteryPercentage:
		return s.BatteryPercentage, true
	case core.FieldSpeed:
		return s.Speed, true
	case core.FieldVerticalSpeed:
		return s.VerticalSpeed, true
	case core.FieldFlyTime:
		return s.FlyTime, true
	case core.FieldHeight:
		return s.Height, true
	case core.FieldTemperature:
		return s.Temperature, true
	}
	return 0, false
}

// Snapshot returns a copy of every field.
func (c *Cache) Snapshot() core.TelemetrySnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

func (c *Cache) BatteryPercentage() float64 { return c.Snapshot().BatteryPercentage }
func (c *Cache) Speed() float64             { return c.Snapshot().Speed }
func (c *Cache) VerticalSpeed() float64     { return c.Snapshot().VerticalSpeed }
func (c *Cache) FlyTime() float64           { return c.Snapshot().FlyTime }
func (c *Cache) Height() float64            { return c.Snapshot().Height }
func (c *Cache) Temperature() float64       { return c.Snapshot().Temperature }

// ParseReading extracts the numeric value of a telemetry envelope. A refused
// call or a non-numeric message is an error and must leave the field stale.
func ParseReading(res core.Result) (float64, error) {
	if !res.Status {
		return 0, fmt.Errorf("bridge refused: %s", res.Message)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(res.Message), 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric reading %q", res.Message)
	}
	return v, nil
}
