package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "udl_extension.cfg.json"

// BridgeConfig selects and configures the drone bridge.
type BridgeConfig struct {
	// Type is "websocket" (native host) or "tello" (direct drone).
	Type       string `json:"type" mapstructure:"type"`
	URL        string `json:"url" mapstructure:"url"`
	TelloPort  string `json:"telloPort" mapstructure:"telloPort"`
	TelloSpeed int    `json:"telloSpeed" mapstructure:"telloSpeed"`
	// Unit is 1 for seconds, 2 for centimetres/degrees.
	Unit int `json:"unit" mapstructure:"unit"`
}

// HostConfig holds the editor-facing server settings.
type HostConfig struct {
	Listen         string   `json:"listen" mapstructure:"listen"`
	Path           string   `json:"path" mapstructure:"path"`
	AllowedOrigins []string `json:"allowedOrigins" mapstructure:"allowedOrigins"`
	CommandBuffer  int      `json:"commandBuffer" mapstructure:"commandBuffer"`
}

// TelemetryConfig holds poll intervals.
type TelemetryConfig struct {
	Interval       time.Duration `json:"interval" mapstructure:"interval"`
	DetectInterval time.Duration `json:"detectInterval" mapstructure:"detectInterval"`
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds the local flight log database settings.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// PostgresConfig holds the shared flight log database settings.
type PostgresConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
	SSLMode  string `json:"sslmode" mapstructure:"sslmode"`
}

// StreamConfig holds the live flight log dashboard settings.
type StreamConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects the flight log backend.
type StorageConfig struct {
	// Type is "memory", "sqlite", "postgres" or "stream".
	Type     string         `json:"type" mapstructure:"type"`
	Memory   MemoryConfig   `json:"memory" mapstructure:"memory"`
	SQLite   SQLiteConfig   `json:"sqlite" mapstructure:"sqlite"`
	Postgres PostgresConfig `json:"postgres" mapstructure:"postgres"`
	Stream   StreamConfig   `json:"stream" mapstructure:"stream"`
}

// InfluxConfig holds telemetry metrics settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// APIConfig holds the flight log server settings.
type APIConfig struct {
	ServerURL   string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey      string `json:"apiKey" mapstructure:"apiKey"`
	UploadOnEnd bool   `json:"uploadOnEnd" mapstructure:"uploadOnEnd"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// GraylogConfig holds GELF log shipping settings.
type GraylogConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Address  string `json:"address" mapstructure:"address"`
	Facility string `json:"facility" mapstructure:"facility"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./udllogs")

	viper.SetDefault("bridge.type", "websocket")
	viper.SetDefault("bridge.url", "ws://127.0.0.1:8765/bridge")
	viper.SetDefault("bridge.telloPort", "8888")
	viper.SetDefault("bridge.telloSpeed", 50)
	viper.SetDefault("bridge.unit", 1)

	viper.SetDefault("host.listen", "127.0.0.1:20120")
	viper.SetDefault("host.path", "/udl")
	viper.SetDefault("host.allowedOrigins", []string{})
	viper.SetDefault("host.commandBuffer", 64)

	viper.SetDefault("telemetry.interval", "500ms")
	viper.SetDefault("telemetry.detectInterval", "500ms")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./flightlogs")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./flightlogs/udl.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "30s")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "udl")
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.stream.url", "ws://localhost:5000/api/v1/stream")
	viper.SetDefault("storage.stream.secret", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "udl-metrics")
	viper.SetDefault("influx.bucket", "drone")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.uploadOnEnd", false)

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "udl-extension")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
	viper.SetDefault("graylog.facility", "udl-extension")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Defaults stay in
// effect when the file cannot be read.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) error {
	setDefaults()

	viper.SetConfigFile(path)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %v", path, err)
	}
	return nil
}

// LogConfig is the top-level logLevel and logsDir.
type LogConfig struct {
	Level string
	Dir   string
}

func GetLogConfig() LogConfig {
	return LogConfig{
		Level: viper.GetString("logLevel"),
		Dir:   viper.GetString("logsDir"),
	}
}

func GetBridgeConfig() BridgeConfig {
	return BridgeConfig{
		Type:       viper.GetString("bridge.type"),
		URL:        viper.GetString("bridge.url"),
		TelloPort:  viper.GetString("bridge.telloPort"),
		TelloSpeed: viper.GetInt("bridge.telloSpeed"),
		Unit:       viper.GetInt("bridge.unit"),
	}
}

func GetHostConfig() HostConfig {
	return HostConfig{
		Listen:         viper.GetString("host.listen"),
		Path:           viper.GetString("host.path"),
		AllowedOrigins: viper.GetStringSlice("host.allowedOrigins"),
		CommandBuffer:  viper.GetInt("host.commandBuffer"),
	}
}

func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Interval:       viper.GetDuration("telemetry.interval"),
		DetectInterval: viper.GetDuration("telemetry.detectInterval"),
	}
}

// GetStorageConfig returns the storage backend configuration.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
			SSLMode:  viper.GetString("storage.postgres.sslmode"),
		},
		Stream: StreamConfig{
			URL:    viper.GetString("storage.stream.url"),
			Secret: viper.GetString("storage.stream.secret"),
		},
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL:   viper.GetString("api.serverUrl"),
		APIKey:      viper.GetString("api.apiKey"),
		UploadOnEnd: viper.GetBool("api.uploadOnEnd"),
	}
}

// GetOTelConfig returns the OpenTelemetry configuration.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled:  viper.GetBool("graylog.enabled"),
		Address:  viper.GetString("graylog.address"),
		Facility: viper.GetString("graylog.facility"),
	}
}
