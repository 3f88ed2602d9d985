package gormstorage

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/udl/extension/internal/model"
	"github.com/udl/extension/internal/model/convert"
	"github.com/udl/extension/internal/storage/memory"
	"github.com/udl/extension/pkg/core"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("flight session not found")

// ListSessions returns every recorded session, newest first.
func ListSessions(db *gorm.DB) ([]core.Session, error) {
	var rows []model.FlightSession
	if err := db.Order("start_time desc").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]core.Session, 0, len(rows))
	for _, r := range rows {
		out = append(out, convert.SessionToCore(r))
	}
	return out, nil
}

// LoadFlightLog reads one session and all of its records in time order.
func LoadFlightLog(db *gorm.DB, sessionID string) (memory.FlightLogExport, error) {
	var export memory.FlightLogExport

	var session model.FlightSession
	err := db.Where("id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return export, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return export, fmt.Errorf("failed to load session: %w", err)
	}

	var commands []model.Command
	if err := db.Where("session_id = ?", sessionID).Order("time, id").Find(&commands).Error; err != nil {
		return export, fmt.Errorf("failed to load commands: %w", err)
	}
	var samples []model.TelemetrySample
	if err := db.Where("session_id = ?", sessionID).Order("time, id").Find(&samples).Error; err != nil {
		return export, fmt.Errorf("failed to load telemetry: %w", err)
	}
	var sightings []model.Sighting
	if err := db.Where("session_id = ?", sessionID).Order("time, id").Find(&sightings).Error; err != nil {
		return export, fmt.Errorf("failed to load sightings: %w", err)
	}

	s := convert.SessionToCore(session)
	export = memory.FlightLogExport{
		SessionID:        s.ID,
		ExtensionVersion: s.ExtensionVersion,
		BridgeType:       s.BridgeType,
		StartTime:        s.StartTime,
		Commands:         make([]core.CommandRecord, 0, len(commands)),
		Telemetry:        make([]core.TelemetrySample, 0, len(samples)),
		Sightings:        make([]core.SightingRecord, 0, len(sightings)),
	}
	if session.EndTime != nil {
		export.EndTime = *session.EndTime
		if session.EndTime.After(session.StartTime) {
			export.Duration = session.EndTime.Sub(session.StartTime).Seconds()
		}
	}
	for _, c := range commands {
		export.Commands = append(export.Commands, convert.CommandToCore(c))
	}
	for _, t := range samples {
		export.Telemetry = append(export.Telemetry, convert.TelemetrySampleToCore(t))
	}
	for _, si := range sightings {
		export.Sightings = append(export.Sightings, convert.SightingToCore(si))
	}
	return export, nil
}
