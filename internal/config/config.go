package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// CaptureConfig selects the audio backend and the devices used for the two
// capture kinds. Device fields are matched as case-insensitive substrings of
// the backend's device names; empty means the backend default.
type CaptureConfig struct {
	Backend        string `yaml:"backend"` // portaudio, mock
	InputDevice    string `yaml:"input_device"`
	LoopbackDevice string `yaml:"loopback_device"`
	BlockFrames    int    `yaml:"block_frames"`
}

type EngineConfig struct {
	Mode      string `yaml:"mode"` // whisper, exec, mock
	ModelName string `yaml:"model_name"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
	Threads   int    `yaml:"threads"`
	Command   string `yaml:"command"`
}

// PipelineConfig holds the streaming chunker and silence-gate parameters.
// The dedup thresholds are heuristics tuned on real transcripts; they are
// configuration, not contract.
type PipelineConfig struct {
	TargetSampleRate int     `yaml:"target_sample_rate"`
	PollIntervalMS   int     `yaml:"poll_interval_ms"`
	MinChunkSeconds  float64 `yaml:"min_chunk_seconds"`
	RetentionSeconds float64 `yaml:"retention_seconds"`
	SilenceThreshold float64 `yaml:"silence_threshold"`
	SilenceHoldMS    int     `yaml:"silence_hold_ms"`
	DedupMinChars    int     `yaml:"dedup_min_chars"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type Config struct {
	RuntimeName string          `yaml:"runtime_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Bus         BusConfig       `yaml:"bus"`
	Capture     CaptureConfig   `yaml:"capture"`
	Engine      EngineConfig    `yaml:"engine"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	Store       StoreConfig     `yaml:"store"`
}

func Default() Config {
	return Config{
		RuntimeName: "murmur-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8090,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9092",
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Capture: CaptureConfig{
			Backend:     "portaudio",
			BlockFrames: 1024,
		},
		Engine: EngineConfig{
			Mode:      "whisper",
			ModelName: "ggml-base.en.bin",
			Language:  "en",
			Threads:   4,
		},
		Pipeline: PipelineConfig{
			TargetSampleRate: 16000,
			PollIntervalMS:   1000,
			MinChunkSeconds:  3,
			RetentionSeconds: 10,
			SilenceThreshold: 0.01,
			SilenceHoldMS:    3000,
			DedupMinChars:    5,
		},
		Store: StoreConfig{
			Path:          "./data/murmur-transcripts.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "MURMUR_RUNTIME_NAME")
	overrideString(&cfg.Environment, "MURMUR_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "MURMUR_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "MURMUR_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "MURMUR_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "MURMUR_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "MURMUR_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "MURMUR_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Enabled, "MURMUR_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "MURMUR_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "MURMUR_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "MURMUR_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "MURMUR_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "MURMUR_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "MURMUR_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "MURMUR_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "MURMUR_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Capture.Backend, "MURMUR_CAPTURE_BACKEND")
	overrideString(&cfg.Capture.InputDevice, "MURMUR_CAPTURE_INPUT_DEVICE")
	overrideString(&cfg.Capture.LoopbackDevice, "MURMUR_CAPTURE_LOOPBACK_DEVICE")
	overrideInt(&cfg.Capture.BlockFrames, "MURMUR_CAPTURE_BLOCK_FRAMES")
	overrideString(&cfg.Engine.Mode, "MURMUR_ENGINE_MODE")
	overrideString(&cfg.Engine.ModelName, "MURMUR_ENGINE_MODEL_NAME")
	overrideString(&cfg.Engine.ModelPath, "MURMUR_ENGINE_MODEL_PATH")
	overrideString(&cfg.Engine.Language, "MURMUR_ENGINE_LANGUAGE")
	overrideInt(&cfg.Engine.Threads, "MURMUR_ENGINE_THREADS")
	overrideString(&cfg.Engine.Command, "MURMUR_ENGINE_COMMAND")
	overrideInt(&cfg.Pipeline.TargetSampleRate, "MURMUR_PIPELINE_TARGET_SAMPLE_RATE")
	overrideInt(&cfg.Pipeline.PollIntervalMS, "MURMUR_PIPELINE_POLL_INTERVAL_MS")
	overrideFloat(&cfg.Pipeline.MinChunkSeconds, "MURMUR_PIPELINE_MIN_CHUNK_SECONDS")
	overrideFloat(&cfg.Pipeline.RetentionSeconds, "MURMUR_PIPELINE_RETENTION_SECONDS")
	overrideFloat(&cfg.Pipeline.SilenceThreshold, "MURMUR_PIPELINE_SILENCE_THRESHOLD")
	overrideInt(&cfg.Pipeline.SilenceHoldMS, "MURMUR_PIPELINE_SILENCE_HOLD_MS")
	overrideInt(&cfg.Pipeline.DedupMinChars, "MURMUR_PIPELINE_DEDUP_MIN_CHARS")
	overrideString(&cfg.Store.Path, "MURMUR_STORE_PATH")
	overrideString(&cfg.Store.RetentionMode, "MURMUR_STORE_RETENTION_MODE")
	overrideInt(&cfg.Store.RetentionDays, "MURMUR_STORE_RETENTION_DAYS")
	overrideInt(&cfg.Store.MaxSessions, "MURMUR_STORE_MAX_SESSIONS")
	overrideBool(&cfg.Store.VacuumOnStart, "MURMUR_STORE_VACUUM_ON_START")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	switch cfg.Capture.Backend {
	case "portaudio", "mock":
	default:
		return errors.New("capture.backend must be one of portaudio|mock")
	}
	if cfg.Capture.BlockFrames <= 0 {
		return errors.New("capture.block_frames must be positive")
	}
	switch cfg.Engine.Mode {
	case "whisper", "exec", "mock":
	default:
		return errors.New("engine.mode must be one of whisper|exec|mock")
	}
	if cfg.Engine.Mode == "whisper" && cfg.Engine.ModelName == "" && cfg.Engine.ModelPath == "" {
		return errors.New("engine.model_name or engine.model_path must be set when mode=whisper")
	}
	if cfg.Engine.Mode == "exec" && cfg.Engine.Command == "" {
		return errors.New("engine.command must be set when mode=exec")
	}
	if cfg.Pipeline.TargetSampleRate <= 0 {
		return errors.New("pipeline.target_sample_rate must be positive")
	}
	if cfg.Pipeline.PollIntervalMS <= 0 {
		return errors.New("pipeline.poll_interval_ms must be positive")
	}
	if cfg.Pipeline.MinChunkSeconds <= 0 {
		return errors.New("pipeline.min_chunk_seconds must be positive")
	}
	if cfg.Pipeline.RetentionSeconds < cfg.Pipeline.MinChunkSeconds {
		return errors.New("pipeline.retention_seconds must be at least min_chunk_seconds")
	}
	if cfg.Pipeline.SilenceThreshold < 0 || cfg.Pipeline.SilenceThreshold > 1 {
		return errors.New("pipeline.silence_threshold must be within [0, 1]")
	}
	if cfg.Pipeline.SilenceHoldMS <= 0 {
		return errors.New("pipeline.silence_hold_ms must be positive")
	}
	if cfg.Pipeline.DedupMinChars < 0 {
		return errors.New("pipeline.dedup_min_chars must be >= 0")
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	switch cfg.Store.RetentionMode {
	case "ephemeral", "session", "persistent":
	default:
		return errors.New("store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	return nil
}
