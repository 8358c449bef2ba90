package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	LLM         LLMConfig         `yaml:"llm"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Transcript  TranscriptConfig  `yaml:"transcript"`
	Workers     WorkersConfig     `yaml:"workers"`
	Storage     StorageConfig     `yaml:"storage"`
	GoogleDrive GoogleDriveConfig `yaml:"google_drive"`
	Redis       RedisConfig       `yaml:"redis"`
	Cleanup     CleanupConfig     `yaml:"cleanup"`
	Logging     LoggingConfig     `yaml:"logging"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	BodyLimitKB int    `yaml:"body_limit_kb"`
}

type LLMConfig struct {
	Provider       string `yaml:"provider"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type PipelineConfig struct {
	ChunkSize          int    `yaml:"chunk_size"`
	MaxConcurrency     int    `yaml:"max_concurrency"`
	CallTimeoutSeconds int    `yaml:"call_timeout_seconds"`
	SegmentMaxTokens   int64  `yaml:"segment_max_tokens"`
	CombineMaxTokens   int64  `yaml:"combine_max_tokens"`
	TokenizerModel     string `yaml:"tokenizer_model"`
	// Temperature is nil when the key is absent; 0 is a valid setting.
	Temperature *float64 `yaml:"temperature"`
}

type TranscriptConfig struct {
	Fetcher        string `yaml:"fetcher"`
	Language       string `yaml:"language"`
	YouTubeAPIKey  string `yaml:"youtube_api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type WorkersConfig struct {
	Count             int `yaml:"count"`
	QueueSize         int `yaml:"queue_size"`
	JobTimeoutMinutes int `yaml:"job_timeout_minutes"`
}

type StorageConfig struct {
	Driver    string `yaml:"driver"`
	Database  string `yaml:"database"`
	DSN       string `yaml:"dsn"`
	OutputDir string `yaml:"output_dir"`
}

type GoogleDriveConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	FolderName      string `yaml:"folder_name"`
}

type RedisConfig struct {
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	Prefix         string `yaml:"prefix"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
}

type CleanupConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
	MaxAgeHours     int `yaml:"max_age_hours"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Load reads the YAML file at path, applies environment overrides and validates
// the result.
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides secrets and deployment settings from the environment.
func (c *Config) applyEnv(getenv func(string) string) {
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "anthropic":
			c.LLM.APIKey = getenv("ANTHROPIC_API_KEY")
		case "gemini":
			c.LLM.APIKey = getenv("GEMINI_API_KEY")
		default:
			c.LLM.APIKey = getenv("OPENAI_API_KEY")
		}
	}
	if v := getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Storage.Driver = "postgres"
		c.Storage.DSN = v
	}
	if v := getenv("YOUTUBE_API_KEY"); v != "" {
		c.Transcript.YouTubeAPIKey = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
}

// Validate checks required settings and fills defaults
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "":
		c.LLM.Provider = "openai"
	case "openai", "anthropic", "gemini":
	default:
		return fmt.Errorf("llm.provider must be one of openai, anthropic, gemini (got %q)", c.LLM.Provider)
	}

	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = "sqlite"
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver must be sqlite or postgres (got %q)", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for the postgres driver")
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Database == "" {
		c.Storage.Database = "data/transcripts.db"
	}

	switch c.Transcript.Fetcher {
	case "":
		c.Transcript.Fetcher = "http"
	case "http", "browser":
	default:
		return fmt.Errorf("transcript.fetcher must be http or browser (got %q)", c.Transcript.Fetcher)
	}

	if c.Pipeline.ChunkSize < 0 || c.Pipeline.MaxConcurrency < 0 {
		return fmt.Errorf("pipeline.chunk_size and pipeline.max_concurrency cannot be negative")
	}

	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.BodyLimitKB == 0 {
		c.Server.BodyLimitKB = 10 * 1024
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 120
	}
	if c.Pipeline.ChunkSize == 0 {
		c.Pipeline.ChunkSize = 6000
	}
	if c.Pipeline.CallTimeoutSeconds == 0 {
		c.Pipeline.CallTimeoutSeconds = 60
	}
	if c.Pipeline.SegmentMaxTokens == 0 {
		c.Pipeline.SegmentMaxTokens = 500
	}
	if c.Pipeline.CombineMaxTokens == 0 {
		c.Pipeline.CombineMaxTokens = 800
	}
	if c.Pipeline.Temperature == nil {
		t := 0.3
		c.Pipeline.Temperature = &t
	} else if *c.Pipeline.Temperature < 0 || *c.Pipeline.Temperature > 2 {
		return fmt.Errorf("pipeline.temperature must be between 0 and 2 (got %v)", *c.Pipeline.Temperature)
	}
	if c.Transcript.Language == "" {
		c.Transcript.Language = "en"
	}
	if c.Transcript.TimeoutSeconds == 0 {
		c.Transcript.TimeoutSeconds = 30
	}
	if c.Workers.Count == 0 {
		c.Workers.Count = 2
	}
	if c.Workers.QueueSize == 0 {
		c.Workers.QueueSize = 100
	}
	if c.Workers.JobTimeoutMinutes == 0 {
		c.Workers.JobTimeoutMinutes = 15
	}
	if c.GoogleDrive.FolderName == "" {
		c.GoogleDrive.FolderName = "Video Summaries"
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "video-summarizer:lock:"
	}
	if c.Redis.LockTTLSeconds == 0 {
		c.Redis.LockTTLSeconds = 30
	}
	if c.Cleanup.IntervalMinutes == 0 {
		c.Cleanup.IntervalMinutes = 10
	}
	if c.Cleanup.MaxAgeHours == 0 {
		c.Cleanup.MaxAgeHours = 1
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "video-summarizer"
	}

	return nil
}

// CallTimeout is the deadline applied to each language model call.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Pipeline.CallTimeoutSeconds) * time.Second
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
