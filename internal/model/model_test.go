package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		name     string
		model    interface{ TableName() string }
		expected string
	}{
		{"FlightSession", &FlightSession{}, "flight_sessions"},
		{"Command", &Command{}, "commands"},
		{"TelemetrySample", &TelemetrySample{}, "telemetry_samples"},
		{"Sighting", &Sighting{}, "sightings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.model.TableName())
		})
	}
}

func TestDatabaseModels(t *testing.T) {
	assert.Len(t, DatabaseModels, 4)
	for _, m := range DatabaseModels {
		_, ok := m.(interface{ TableName() string })
		assert.True(t, ok, "%T has no table name", m)
	}
}
