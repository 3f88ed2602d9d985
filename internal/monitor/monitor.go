package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/udl/extension/internal/sighting"
	"github.com/udl/extension/internal/telemetry"
	"github.com/udl/extension/pkg/core"
)

// DefaultInterval is how often the status file is rewritten.
const DefaultInterval = time.Second

// Dependencies holds all dependencies for the monitor service. Every hook
// is optional.
type Dependencies struct {
	Logger     *slog.Logger
	StatusPath string
	Interval   time.Duration

	Telemetry *telemetry.Cache
	Sightings *sighting.Queue

	SessionID       func() string
	BridgeConnected func() bool
	Editors         func() int
	// WriteQueues reports pending flight log rows of a database backend.
	WriteQueues func() (commands, telemetry, sightings int)
}

// WriteQueueLengths is the backlog of a database backend.
type WriteQueueLengths struct {
	Commands  int `json:"commands"`
	Telemetry int `json:"telemetry"`
	Sightings int `json:"sightings"`
}

// Status is one snapshot of the running host.
type Status struct {
	Time            time.Time              `json:"time"`
	SessionID       string                 `json:"sessionId,omitempty"`
	BridgeConnected bool                   `json:"bridgeConnected"`
	Editors         int                    `json:"editors"`
	Telemetry       core.TelemetrySnapshot `json:"telemetry"`
	Sightings       []sighting.MarkerID    `json:"sightings"`
	WriteQueues     *WriteQueueLengths     `json:"writeQueues,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus collects the current status.
func (s *Service) GetStatus() Status {
	st := Status{Time: time.Now(), Sightings: []sighting.MarkerID{}}
	if s.deps.SessionID != nil {
		st.SessionID = s.deps.SessionID()
	}
	if s.deps.BridgeConnected != nil {
		st.BridgeConnected = s.deps.BridgeConnected()
	}
	if s.deps.Editors != nil {
		st.Editors = s.deps.Editors()
	}
	if s.deps.Telemetry != nil {
		st.Telemetry = s.deps.Telemetry.Snapshot()
	}
	if s.deps.Sightings != nil {
		st.Sightings = s.deps.Sightings.Snapshot()
	}
	if s.deps.WriteQueues != nil {
		c, t, si := s.deps.WriteQueues()
		st.WriteQueues = &WriteQueueLengths{Commands: c, Telemetry: t, Sightings: si}
	}
	return st
}

// WriteStatus renders the current status as indented JSON.
func (s *Service) WriteStatus() ([]byte, error) {
	out, err := json.MarshalIndent(s.GetStatus(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}
	return out, nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	var statusFile *os.File
	if s.deps.StatusPath != "" {
		f, err := os.Create(s.deps.StatusPath)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("error creating status file: %w", err)
		}
		statusFile = f
	}

	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if statusFile != nil {
			defer statusFile.Close()
		}

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "path", s.deps.StatusPath)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if statusFile == nil {
					continue
				}
				out, err := s.WriteStatus()
				if err != nil {
					logger.Error("Error building status", "error", err)
					continue
				}
				if err := statusFile.Truncate(0); err != nil {
					logger.Error("Error truncating status file", "error", err)
					continue
				}
				if _, err := statusFile.WriteAt(append(out, '\n'), 0); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
