// Package config loads and validates process-wide configuration. The whole
// tree is built exactly once at startup and passed by reference into every
// component; nothing re-reads the environment afterwards.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sesimlab/counselvoice/internal/logger"
)

// ServiceName is the canonical name used for config/env file resolution and
// the logger tag.
const ServiceName = "counselvoice"

// Config is the root configuration for the service.
type Config struct {
	Service       ServiceConfig       `yaml:"service" mapstructure:"service"`
	Logging       logger.Config       `yaml:"logging" mapstructure:"logging"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Auth          AuthConfig          `yaml:"auth" mapstructure:"auth"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	STT           STTConfig           `yaml:"stt" mapstructure:"stt"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Jobs          JobsConfig          `yaml:"jobs" mapstructure:"jobs"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Environment string `yaml:"environment" mapstructure:"environment"`
	Version     string `yaml:"version" mapstructure:"version"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string   `yaml:"host" mapstructure:"host"`
	Port           int      `yaml:"port" mapstructure:"port" validate:"gte=0,lte=65535"`
	ReadTimeout    int      `yaml:"read_timeout" mapstructure:"read_timeout"`   // seconds
	WriteTimeout   int      `yaml:"write_timeout" mapstructure:"write_timeout"` // seconds
	IdleTimeout    int      `yaml:"idle_timeout" mapstructure:"idle_timeout"`   // seconds
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// AuthConfig holds bearer-token verification settings. Token issuance lives
// in a separate service.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
}

// DatabaseConfig holds relational store settings.
type DatabaseConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite"`
	DSN          string `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	LogLevel     string `yaml:"log_level" mapstructure:"log_level"`
}

// StorageConfig holds object storage (S3) settings.
type StorageConfig struct {
	Bucket         string        `yaml:"bucket" mapstructure:"bucket"`
	Region         string        `yaml:"region" mapstructure:"region"`
	Endpoint       string        `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey      string        `yaml:"access_key" mapstructure:"access_key"`
	SecretKey      string        `yaml:"secret_key" mapstructure:"secret_key"`
	ForcePathStyle bool          `yaml:"force_path_style" mapstructure:"force_path_style"`
	PresignTTL     time.Duration `yaml:"presign_ttl" mapstructure:"presign_ttl"`
	UploadPrefix   string        `yaml:"upload_prefix" mapstructure:"upload_prefix"`
}

// VendorCredentials holds API credentials for one transcription vendor.
type VendorCredentials struct {
	APIKey       string `yaml:"api_key" mapstructure:"api_key"`
	ClientID     string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret string `yaml:"client_secret" mapstructure:"client_secret"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
}

// Configured reports whether the vendor has usable credentials.
func (v VendorCredentials) Configured() bool {
	return v.APIKey != "" || (v.ClientID != "" && v.ClientSecret != "")
}

// STTConfig holds per-vendor transcription settings plus shared polling
// behavior for job-based vendors.
type STTConfig struct {
	AssemblyAI   VendorCredentials `yaml:"assemblyai" mapstructure:"assemblyai"`
	Deepgram     VendorCredentials `yaml:"deepgram" mapstructure:"deepgram"`
	Speechmatics VendorCredentials `yaml:"speechmatics" mapstructure:"speechmatics"`
	RTZR         VendorCredentials `yaml:"rtzr" mapstructure:"rtzr"`
	Voxtral      VendorCredentials `yaml:"voxtral" mapstructure:"voxtral"`

	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`
	PollTimeout  time.Duration `yaml:"poll_timeout" mapstructure:"poll_timeout"`
}

// Vendor returns the credentials for the named vendor.
func (c *STTConfig) Vendor(name string) (VendorCredentials, bool) {
	switch name {
	case "assemblyai":
		return c.AssemblyAI, true
	case "deepgram":
		return c.Deepgram, true
	case "speechmatics":
		return c.Speechmatics, true
	case "rtzr":
		return c.RTZR, true
	case "voxtral":
		return c.Voxtral, true
	}
	return VendorCredentials{}, false
}

// LLMConfig holds chat-completion client settings.
type LLMConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig holds embedding client settings.
type EmbeddingConfig struct {
	APIKey     string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL    string        `yaml:"base_url" mapstructure:"base_url"`
	Model      string        `yaml:"model" mapstructure:"model"`
	Dimensions int           `yaml:"dimensions" mapstructure:"dimensions" validate:"gt=0"`
	BatchSize  int           `yaml:"batch_size" mapstructure:"batch_size" validate:"gt=0,lte=32"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// JobsConfig holds background worker pool settings.
type JobsConfig struct {
	Workers   int `yaml:"workers" mapstructure:"workers" validate:"gt=0"`
	QueueSize int `yaml:"queue_size" mapstructure:"queue_size" validate:"gt=0"`
}

// ObservabilityConfig holds tracing exporter settings.
type ObservabilityConfig struct {
	TracingEnabled bool   `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" mapstructure:"otlp_endpoint"`
}

// ApplyDefaults fills zero-valued fields across all sections.
func (c *Config) ApplyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = ServiceName
	}
	if c.Service.Environment == "" {
		c.Service.Environment = "development"
	}
	c.Logging.ApplyDefaults()

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "counselvoice.db"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "warn"
	}

	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Storage.PresignTTL == 0 {
		c.Storage.PresignTTL = 15 * time.Minute
	}
	if c.Storage.UploadPrefix == "" {
		c.Storage.UploadPrefix = "uploads"
	}

	if c.STT.PollInterval == 0 {
		c.STT.PollInterval = 10 * time.Second
	}
	if c.STT.PollTimeout == 0 {
		c.STT.PollTimeout = 6 * time.Hour
	}

	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}

	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = c.LLM.BaseURL
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = c.LLM.APIKey
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Embedding.Timeout == 0 {
		c.Embedding.Timeout = 30 * time.Second
	}

	if c.Jobs.Workers == 0 {
		c.Jobs.Workers = 4
	}
	if c.Jobs.QueueSize == 0 {
		c.Jobs.QueueSize = 64
	}
}

// Validate checks the configuration tree, combining struct-tag validation
// with section checks.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}

	v := validator.New()
	if err := v.Struct(c); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			errs = append(errs, err)
		} else {
			for _, fe := range err.(validator.ValidationErrors) {
				errs = append(errs, fmt.Errorf("config: field %s failed rule %q", fe.Namespace(), fe.Tag()))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
