package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/udl/extension/pkg/core"
)

// FlightLogExport is the root JSON structure of an exported flight log
type FlightLogExport struct {
	SessionID        string                 `json:"sessionId"`
	ExtensionVersion string                 `json:"extensionVersion"`
	BridgeType       string                 `json:"bridgeType"`
	StartTime        time.Time              `json:"startTime"`
	EndTime          time.Time              `json:"endTime"`
	Duration         float64                `json:"duration"`
	Commands         []core.CommandRecord   `json:"commands"`
	Telemetry        []core.TelemetrySample `json:"telemetry"`
	Sightings        []core.SightingRecord  `json:"sightings"`
}

// exportJSON writes the session data to a JSON file, zstd-compressed when
// configured. Callers hold b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	timestamp := b.session.StartTime.Format("20060102_150405")
	name := "flight_" + timestamp
	if id := strings.ReplaceAll(b.session.ID, "-", ""); len(id) >= 8 {
		name += "_" + id[:8]
	}

	filename := name + ".json"
	if b.cfg.CompressOutput {
		filename += ".zst"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := WriteExport(outputPath, export, b.cfg.CompressOutput); err != nil {
		return err
	}

	b.lastExportPath = outputPath
	b.lastExportMetadata = core.UploadMetadata{
		SessionID: export.SessionID,
		Duration:  export.Duration,
		Tag:       export.BridgeType,
	}
	return nil
}

func (b *Backend) buildExport() FlightLogExport {
	export := FlightLogExport{
		SessionID:        b.session.ID,
		ExtensionVersion: b.session.ExtensionVersion,
		BridgeType:       b.session.BridgeType,
		StartTime:        b.session.StartTime,
		EndTime:          b.endTime,
		Commands:         make([]core.CommandRecord, 0, len(b.commands)),
		Telemetry:        make([]core.TelemetrySample, 0, len(b.telemetry)),
		Sightings:        make([]core.SightingRecord, 0, len(b.sightings)),
	}
	if !b.endTime.IsZero() && b.endTime.After(b.session.StartTime) {
		export.Duration = b.endTime.Sub(b.session.StartTime).Seconds()
	}
	export.Commands = append(export.Commands, b.commands...)
	export.Telemetry = append(export.Telemetry, b.telemetry...)
	export.Sightings = append(export.Sightings, b.sightings...)
	return export
}

// WriteExport writes data to path as JSON, zstd-compressed when compress is set.
func WriteExport(path string, data FlightLogExport, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if !compress {
		return json.NewEncoder(f).Encode(data)
	}

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	if err := json.NewEncoder(bw).Encode(data); err != nil {
		enc.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadExport loads an exported flight log, compressed or not.
func ReadExport(path string) (FlightLogExport, error) {
	var export FlightLogExport

	f, err := os.Open(path)
	if err != nil {
		return export, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return export, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	if err := json.NewDecoder(bufio.NewReader(r)).Decode(&export); err != nil {
		return export, fmt.Errorf("failed to decode flight log: %w", err)
	}
	return export, nil
}
