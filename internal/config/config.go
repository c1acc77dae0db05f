// Package config provides file- and environment-based configuration for the
// sizing service.
package config

import (
	stdjson "encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides. Nested keys use a double
// underscore, e.g. MICROGRID_SERVER__PORT=9000.
const EnvPrefix = "MICROGRID_"

// AppConfig represents the root configuration structure
type AppConfig struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Auxiliary AuxiliaryConfig `json:"auxiliary" yaml:"auxiliary"`
	Optimizer OptimizerConfig `json:"optimizer" yaml:"optimizer"`
	Defaults  RunDefaults     `json:"defaults" yaml:"defaults"`
	History   HistoryConfig   `json:"history" yaml:"history"`
	Metrics   MetricsConfig   `json:"metrics" yaml:"metrics"`
	MQTT      MQTTConfig      `json:"mqtt" yaml:"mqtt"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port                 int      `json:"port" yaml:"port"`
	BindAddress          string   `json:"bind_address" yaml:"bind_address"`
	EnableCORS           bool     `json:"enable_cors" yaml:"enable_cors"`
	AllowOrigins         []string `json:"allow_origins" yaml:"allow_origins"`
	ReadTimeout          int      `json:"read_timeout_seconds" yaml:"read_timeout_seconds"`
	WriteTimeout         int      `json:"write_timeout_seconds" yaml:"write_timeout_seconds"`
	IdleTimeout          int      `json:"idle_timeout_seconds" yaml:"idle_timeout_seconds"`
	BodyLimit            string   `json:"body_limit" yaml:"body_limit"`
	EnableCompression    bool     `json:"enable_compression" yaml:"enable_compression"`
	CompressionLevel     int      `json:"compression_level" yaml:"compression_level"`
	EnableRequestLogging bool     `json:"enable_request_logging" yaml:"enable_request_logging"`
}

// StorageConfig contains workspace settings
type StorageConfig struct {
	DataDirectory      string `json:"data_directory" yaml:"data_directory"`
	WorkspaceDirectory string `json:"workspace_directory" yaml:"workspace_directory"`
	// IsolateRuns gives every request its own workspace subdirectory. When
	// false all requests share WorkspaceDirectory.
	IsolateRuns            bool `json:"isolate_runs" yaml:"isolate_runs"`
	RetentionMinutes       int  `json:"retention_minutes" yaml:"retention_minutes"`
	CleanupIntervalMinutes int  `json:"cleanup_interval_minutes" yaml:"cleanup_interval_minutes"`
}

// AuxiliaryConfig locates the fixed server-side configuration artifacts.
type AuxiliaryConfig struct {
	Directory     string `json:"directory" yaml:"directory"`
	FiscalFile    string `json:"fiscal_file" yaml:"fiscal_file"`
	CostFile      string `json:"cost_file" yaml:"cost_file"`
	MultiyearFile string `json:"multiyear_file" yaml:"multiyear_file"`
}

// OptimizerConfig selects and tunes the optimizer engine.
type OptimizerConfig struct {
	// Engine is "reference" (built in) or "process" (external command).
	Engine  string   `json:"engine" yaml:"engine"`
	Command []string `json:"command" yaml:"command"`
	// PlotFile is copied into the run workspace after a process run when the
	// tool writes its plot outside the workspace.
	PlotFile       string  `json:"plot_file" yaml:"plot_file"`
	TimeoutSeconds int     `json:"timeout_seconds" yaml:"timeout_seconds"`
	Seed           int64   `json:"seed" yaml:"seed"`
	Iterations     int     `json:"iterations" yaml:"iterations"`
	Alpha          float64 `json:"alpha" yaml:"alpha"`
}

// RunDefaults are the form defaults applied when a request omits a scalar.
type RunDefaults struct {
	Years         int     `json:"years" yaml:"years"`
	DemandCovered float64 `json:"demand_covered" yaml:"demand_covered"`
	DiscountRate  float64 `json:"discount_rate" yaml:"discount_rate"`
	LPSPLimit     int     `json:"lpsp_limit" yaml:"lpsp_limit"`
}

// HistoryConfig controls the persistent run history.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// MetricsConfig controls run telemetry sinks.
type MetricsConfig struct {
	PrometheusEnabled bool         `json:"prometheus_enabled" yaml:"prometheus_enabled"`
	Path              string       `json:"path" yaml:"path"`
	Influx            InfluxConfig `json:"influx" yaml:"influx"`
}

// InfluxConfig configures the InfluxDB sink.
type InfluxConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	URL     string `json:"url" yaml:"url"`
	Token   string `json:"token" yaml:"token"`
	Org     string `json:"org" yaml:"org"`
	Bucket  string `json:"bucket" yaml:"bucket"`
}

// MQTTConfig configures run completion notifications.
type MQTTConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Broker   string `json:"broker" yaml:"broker"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Topic    string `json:"topic" yaml:"topic"`
	QoS      int    `json:"qos" yaml:"qos"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:        8000,
			BindAddress: "0.0.0.0",
			EnableCORS:  true,
			AllowOrigins: []string{
				"http://localhost:4200",
				"http://127.0.0.1:4200",
			},
			ReadTimeout:          60,
			WriteTimeout:         0,
			IdleTimeout:          120,
			BodyLimit:            "256M",
			EnableCompression:    true,
			CompressionLevel:     5,
			EnableRequestLogging: true,
		},
		Storage: StorageConfig{
			DataDirectory:          "./data",
			WorkspaceDirectory:     "./data/tmp_uploads",
			IsolateRuns:            true,
			RetentionMinutes:       24 * 60,
			CleanupIntervalMinutes: 30,
		},
		Auxiliary: AuxiliaryConfig{
			Directory:     "./auxiliar",
			FiscalFile:    "fiscal_incentive.json",
			CostFile:      "parameters_cost.json",
			MultiyearFile: "multiyear.json",
		},
		Optimizer: OptimizerConfig{
			Engine:     "reference",
			PlotFile:   "temp-plot.html",
			Iterations: 50,
			Alpha:      0.3,
		},
		Defaults: RunDefaults{
			Years:         20,
			DemandCovered: 0.6,
			DiscountRate:  0.08,
			LPSPLimit:     10,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "./data/history.duckdb",
		},
		Metrics: MetricsConfig{
			PrometheusEnabled: true,
			Path:              "/metrics",
		},
		MQTT: MQTTConfig{
			ClientID: "microgrid-api",
			Topic:    "microgrid/runs/completed",
			QoS:      1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadConfig loads configuration from a YAML or JSON file, then applies
// environment overrides. A missing file is created with the defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	defaults, err := yamlv3.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(rawBytes(defaults), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	var parser koanf.Parser
	switch ext := strings.ToLower(filepath.Ext(configPath)); ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(configPath), parser); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	cfg = &AppConfig{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.SetDefaults()
	cfg.resolvePaths(filepath.Dir(configPath))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// rawBytes is a koanf.Provider over an in-memory document.
type rawBytes []byte

func (b rawBytes) ReadBytes() ([]byte, error) { return b, nil }

func (b rawBytes) Read() (map[string]any, error) {
	return nil, errors.New("rawBytes provider does not support Read")
}

// envKey maps MICROGRID_SERVER__PORT to server.port.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration as YAML, or JSON when the path ends in .json.
func (c *AppConfig) Save(configPath string) error {
	var content []byte
	if strings.EqualFold(filepath.Ext(configPath), ".json") {
		output, err := stdjson.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		content = output
	} else {
		output, err := yamlv3.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		header := []byte("# Microgrid sizing API configuration\n# This file is auto-generated on first run\n\n")
		content = append(header, output...)
	}

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SetDefaults fills zero values that have no meaningful zero.
func (c *AppConfig) SetDefaults() {
	d := DefaultConfig()
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.BodyLimit == "" {
		c.Server.BodyLimit = d.Server.BodyLimit
	}
	if c.Storage.WorkspaceDirectory == "" {
		c.Storage.WorkspaceDirectory = filepath.Join(c.Storage.DataDirectory, "tmp_uploads")
	}
	if c.Storage.CleanupIntervalMinutes <= 0 {
		c.Storage.CleanupIntervalMinutes = d.Storage.CleanupIntervalMinutes
	}
	if c.Optimizer.Engine == "" {
		c.Optimizer.Engine = d.Optimizer.Engine
	}
	if c.Optimizer.Iterations <= 0 {
		c.Optimizer.Iterations = d.Optimizer.Iterations
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = d.Metrics.Path
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
}

// Validate checks mandatory fields.
func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Optimizer.Engine {
	case "reference":
	case "process":
		if len(c.Optimizer.Command) == 0 {
			return fmt.Errorf("optimizer.command is required for the process engine")
		}
	default:
		return fmt.Errorf("unknown optimizer engine %q", c.Optimizer.Engine)
	}
	if c.Optimizer.Alpha < 0 || c.Optimizer.Alpha > 1 {
		return fmt.Errorf("optimizer.alpha must be in [0,1], got %v", c.Optimizer.Alpha)
	}
	if c.Defaults.DemandCovered < 0 || c.Defaults.DemandCovered > 1 {
		return fmt.Errorf("defaults.demand_covered must be in [0,1], got %v", c.Defaults.DemandCovered)
	}
	if c.Defaults.Years < 1 {
		return fmt.Errorf("defaults.years must be >= 1, got %d", c.Defaults.Years)
	}
	if c.Metrics.Influx.Enabled && c.Metrics.Influx.URL == "" {
		return fmt.Errorf("metrics.influx.url is required when influx is enabled")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}
	return nil
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	abs(&c.Storage.DataDirectory)
	abs(&c.Storage.WorkspaceDirectory)
	abs(&c.Auxiliary.Directory)
	abs(&c.History.Path)
}

// FiscalPath returns the fiscal incentive artifact path.
func (c *AppConfig) FiscalPath() string {
	return filepath.Join(c.Auxiliary.Directory, c.Auxiliary.FiscalFile)
}

// CostPath returns the cost parameter artifact path.
func (c *AppConfig) CostPath() string {
	return filepath.Join(c.Auxiliary.Directory, c.Auxiliary.CostFile)
}

// MultiyearPath returns the multiyear parameter artifact path.
func (c *AppConfig) MultiyearPath() string {
	return filepath.Join(c.Auxiliary.Directory, c.Auxiliary.MultiyearFile)
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.WorkspaceDirectory,
	}
	if c.History.Enabled {
		dirs = append(dirs, filepath.Dir(c.History.Path))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
