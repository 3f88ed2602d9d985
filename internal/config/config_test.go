package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"bridge": { "type": "tello", "telloPort": "8890" }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "tello", viper.GetString("bridge.type"))
	assert.Equal(t, "8890", viper.GetString("bridge.telloPort"))
	assert.Equal(t, 50, viper.GetInt("bridge.telloSpeed"), "unset keys keep defaults")
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./udllogs", viper.GetString("logsDir"))
	assert.Equal(t, "websocket", viper.GetString("bridge.type"))
	assert.Equal(t, "ws://127.0.0.1:8765/bridge", viper.GetString("bridge.url"))
	assert.Equal(t, 1, viper.GetInt("bridge.unit"))
	assert.Equal(t, "127.0.0.1:20120", viper.GetString("host.listen"))
	assert.Equal(t, "/udl", viper.GetString("host.path"))
	assert.Equal(t, "500ms", viper.GetString("telemetry.interval"))
	assert.Equal(t, "memory", viper.GetString("storage.type"))
	assert.Equal(t, "./flightlogs", viper.GetString("storage.memory.outputDir"))
	assert.Equal(t, true, viper.GetBool("storage.memory.compressOutput"))
	assert.Equal(t, false, viper.GetBool("influx.enabled"))
	assert.Equal(t, "http://localhost:5000", viper.GetString("api.serverUrl"))
	assert.Equal(t, "", viper.GetString("api.apiKey"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))
	assert.Equal(t, false, viper.GetBool("otel.enabled"))
	assert.Equal(t, "udl-extension", viper.GetString("otel.serviceName"))
	assert.Equal(t, "5s", viper.GetString("otel.batchTimeout"))
	assert.Equal(t, true, viper.GetBool("otel.insecure"))
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")

	// Defaults are still usable.
	assert.Equal(t, "websocket", GetBridgeConfig().Type)
	assert.Equal(t, 500*time.Millisecond, GetTelemetryConfig().Interval)
}

func TestLoadFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"host": {"listen": ":9000"}}`), 0644))

	require.NoError(t, LoadFile(path))
	assert.Equal(t, ":9000", GetHostConfig().Listen)
	assert.Equal(t, "/udl", GetHostConfig().Path)

	err := LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestGetLogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"logLevel": "warn"}`)))
	assert.Equal(t, LogConfig{Level: "warn", Dir: "./udllogs"}, GetLogConfig())
}

func TestGetBridgeConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"bridge": { "type": "tello", "telloSpeed": 80, "unit": 2 }
	}`)))

	bc := GetBridgeConfig()
	assert.Equal(t, BridgeConfig{
		Type:       "tello",
		URL:        "ws://127.0.0.1:8765/bridge",
		TelloPort:  "8888",
		TelloSpeed: 80,
		Unit:       2,
	}, bc)
}

func TestGetHostConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"host": { "allowedOrigins": ["http://localhost:8601"], "commandBuffer": 8 }
	}`)))

	hc := GetHostConfig()
	assert.Equal(t, []string{"http://localhost:8601"}, hc.AllowedOrigins)
	assert.Equal(t, 8, hc.CommandBuffer)
	assert.Equal(t, "127.0.0.1:20120", hc.Listen)
}

func TestGetTelemetryConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"telemetry": {"interval": "1s"}}`)))

	tc := GetTelemetryConfig()
	assert.Equal(t, time.Second, tc.Interval)
	assert.Equal(t, 500*time.Millisecond, tc.DetectInterval)
}

func TestGetStorageConfig_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg := GetStorageConfig()
	assert.Equal(t, "memory", cfg.Type)
	assert.Equal(t, "./flightlogs", cfg.Memory.OutputDir)
	assert.Equal(t, true, cfg.Memory.CompressOutput)
	assert.Equal(t, "./flightlogs/udl.db", cfg.SQLite.Path)
	assert.Equal(t, 30*time.Second, cfg.SQLite.DumpInterval)
	assert.Equal(t, "udl", cfg.Postgres.Database)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
}

func TestGetStorageConfig_Override(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "path": "/tmp/flights.db", "dumpInterval": "1m" },
			"stream": { "url": "ws://dash:5000/stream", "secret": "s3" }
		}
	}`)))

	sc := GetStorageConfig()
	assert.Equal(t, "sqlite", sc.Type)
	assert.Equal(t, "/tmp/out", sc.Memory.OutputDir)
	assert.Equal(t, false, sc.Memory.CompressOutput)
	assert.Equal(t, "/tmp/flights.db", sc.SQLite.Path)
	assert.Equal(t, time.Minute, sc.SQLite.DumpInterval)
	assert.Equal(t, StreamConfig{URL: "ws://dash:5000/stream", Secret: "s3"}, sc.Stream)
}

func TestGetInfluxAndAPIConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{
		"influx": { "enabled": true, "bucket": "tello" },
		"api": { "apiKey": "secret", "uploadOnEnd": true }
	}`)))

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "tello", ic.Bucket)
	assert.Equal(t, "udl-metrics", ic.Org)

	ac := GetAPIConfig()
	assert.Equal(t, "secret", ac.APIKey)
	assert.True(t, ac.UploadOnEnd)
	assert.Equal(t, "http://localhost:5000", ac.ServerURL)
}

func TestGetOTelConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
		want OTelConfig
	}{
		{
			name: "defaults",
			body: `{}`,
			want: OTelConfig{ServiceName: "udl-extension", BatchTimeout: 5 * time.Second, Insecure: true},
		},
		{
			name: "collector over tls",
			body: `{"otel": {"enabled": true, "serviceName": "classroom-3", "batchTimeout": "30s", "endpoint": "otel.local:4318", "insecure": false}}`,
			want: OTelConfig{Enabled: true, ServiceName: "classroom-3", BatchTimeout: 30 * time.Second, Endpoint: "otel.local:4318"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(viper.Reset)
			require.NoError(t, Load(writeConfig(t, tt.body)))
			assert.Equal(t, tt.want, GetOTelConfig())
		})
	}
}

func TestGetGraylogConfig(t *testing.T) {
	t.Cleanup(viper.Reset)

	require.NoError(t, Load(writeConfig(t, `{"graylog": {"enabled": true, "address": "logs:12201"}}`)))

	gc := GetGraylogConfig()
	assert.Equal(t, GraylogConfig{Enabled: true, Address: "logs:12201", Facility: "udl-extension"}, gc)
}
