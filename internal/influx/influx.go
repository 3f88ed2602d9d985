// Package influx writes applied telemetry samples to InfluxDB.
package influx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"github.com/udl/extension/internal/config"
	"github.com/udl/extension/pkg/core"
)

// Measurement is the measurement every telemetry point is written to.
const Measurement = "drone_telemetry"

// ErrDisabled is returned by Connect when influx is switched off.
var ErrDisabled = errors.New("influx.enabled is false")

// Manager handles the InfluxDB connection and writes. When the server is
// unreachable points go to a gzipped line-protocol backup file instead.
type Manager struct {
	cfg        config.InfluxConfig
	backupPath string
	logger     zerolog.Logger

	mu           sync.Mutex
	client       influxdb2.Client
	writer       influxdb2_api.WriteAPI
	backupFile   *os.File
	backupWriter *gzip.Writer
	valid        bool
	sessionID    string
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, backupPath string, log zerolog.Logger) *Manager {
	return &Manager{
		cfg:        cfg,
		backupPath: backupPath,
		logger:     log.With().Str("component", "influx").Logger(),
	}
}

// ServerURL is the address built from protocol, host and port.
func (m *Manager) ServerURL() string {
	return fmt.Sprintf("%s://%s:%s", m.cfg.Protocol, m.cfg.Host, m.cfg.Port)
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server does not answer.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(
		m.ServerURL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000),
	)

	running, err := client.Ping(ctx)
	if err != nil || !running {
		client.Close()
		m.logger.Warn().Err(err).Str("backupPath", m.backupPath).
			Msg("InfluxDB unreachable, writing to backup file")
		return m.openBackup()
	}

	if err := m.setupOrganizationAndBucket(ctx, client); err != nil {
		client.Close()
		return err
	}

	writer := client.WriteAPI(m.cfg.Org, m.cfg.Bucket)
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.logger.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(writer.Errors())

	m.mu.Lock()
	m.client = client
	m.writer = writer
	m.valid = true
	m.mu.Unlock()

	m.logger.Info().Str("url", m.ServerURL()).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.backupPath == "" {
		return fmt.Errorf("influxdb unreachable and no backup path set")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backupWriter != nil {
		return nil
	}

	file, err := os.OpenFile(m.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context, client influxdb2.Client) error {
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure bucket exists with 90 day retention
	if _, err := client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

// SetSession tags every following point with the session id.
func (m *Manager) SetSession(id string) {
	m.mu.Lock()
	m.sessionID = id
	m.mu.Unlock()
}

// Valid reports whether points go to the server rather than the backup.
func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.valid
}

// NewPoint builds the point for one telemetry sample.
func NewPoint(sessionID string, sample core.TelemetrySample) *influxdb2_write.Point {
	point := influxdb2_write.NewPointWithMeasurement(Measurement).
		AddField(string(sample.Field), sample.Value).
		SetTime(sample.Time)
	if sessionID != "" {
		point.AddTag("session", sessionID)
	}
	return point
}

// WritePoint writes a point to InfluxDB or backup file. Without either it
// does nothing.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.backupWriter == nil {
		return nil
	}

	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if !strings.HasSuffix(lineProtocol, "\n") {
		lineProtocol += "\n"
	}
	if _, err := m.backupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// RecordTelemetry implements telemetry.Sink.
func (m *Manager) RecordTelemetry(sample core.TelemetrySample) {
	m.mu.Lock()
	id := m.sessionID
	m.mu.Unlock()

	if err := m.WritePoint(NewPoint(id, sample)); err != nil {
		m.logger.Warn().Err(err).Str("field", string(sample.Field)).Msg("telemetry point dropped")
	}
}

// Close flushes pending points and releases the client or backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.Flush()
		m.client.Close()
		m.valid = false
	}
	if m.backupWriter != nil {
		err := errors.Join(m.backupWriter.Close(), m.backupFile.Close())
		m.backupWriter = nil
		m.backupFile = nil
		return err
	}
	return nil
}
