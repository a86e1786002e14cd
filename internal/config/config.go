package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig
	Logging       LoggingConfig
	Remote        RemoteConfig
	Storage       StorageConfig
	Transcoder    TranscoderConfig
	Transcription TranscriptionConfig
	Style         StyleConfig
	Batch         BatchConfig
	Redis         RedisConfig
	Database      DatabaseConfig
	Queue         QueueConfig
	Tracing       TracingConfig
	Metrics       MetricsConfig
	Auth          AuthConfig
	Schedule      ScheduleConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig mirrors logging.Config
type LoggingConfig struct {
	Level      string
	Format     string
	Output     string
	TimeFormat string
}

// RemoteConfig holds the remote job coordinator endpoint
type RemoteConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration // connect and response headers, whole body for JSON calls
	MaxRetries int
	RetryDelay time.Duration
	// TransferTimeout bounds a whole source download or result upload. Zero leaves it to the caller's context.
	TransferTimeout time.Duration
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
}

// TranscoderConfig holds encoder configuration
type TranscoderConfig struct {
	FFmpegPath     string
	FFprobePath    string
	CommandTimeout time.Duration
	OutputWidth    int
	OutputHeight   int
}

// TranscriptionConfig selects and configures the speech-to-text provider
type TranscriptionConfig struct {
	Provider     string // openai, whisper
	APIKey       string
	BaseURL      string
	Model        string
	Language     string
	WhisperPath  string
	WhisperModel string
	CacheEnabled bool
	CacheTTL     time.Duration
	// UsePrompt sends the job's reference text as the transcription prompt
	UsePrompt bool
}

// StyleConfig locates the persisted subtitle style document
type StyleConfig struct {
	Dir string
}

// BatchConfig holds batch orchestrator settings
type BatchConfig struct {
	TempDir     string
	StepTimeout time.Duration
	OutputExt   string
	KeepTemp    bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	LockTTL  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
	Exchange string
}

// TracingConfig holds Jaeger tracer configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	AgentHost   string
	AgentPort   int
	SampleRate  float64
}

// MetricsConfig holds prometheus exporter configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// AuthConfig holds API authentication settings
type AuthConfig struct {
	JWTSecret string
	RateLimit float64
	RateBurst int
}

// ScheduleConfig holds the cron expression for scheduled batch runs
type ScheduleConfig struct {
	Cron string
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return unmarshal(v)
}

// LoadOrDefault behaves like Load but returns defaults when no file exists
func LoadOrDefault(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return Load(configPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config: %w", err)
		}
	}

	return unmarshal(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LITURGIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.shutdownTimeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.timeFormat", time.RFC3339)

	// Remote defaults
	v.SetDefault("remote.baseURL", "http://localhost:8000/api")
	v.SetDefault("remote.token", "")
	v.SetDefault("remote.timeout", "60s")
	v.SetDefault("remote.maxRetries", 3)
	v.SetDefault("remote.retryDelay", "1s")
	v.SetDefault("remote.transferTimeout", "0s")

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "liturgia")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)

	// Transcoder defaults
	v.SetDefault("transcoder.ffmpegPath", "ffmpeg")
	v.SetDefault("transcoder.ffprobePath", "ffprobe")
	v.SetDefault("transcoder.commandTimeout", "30m")
	v.SetDefault("transcoder.outputWidth", 1080)
	v.SetDefault("transcoder.outputHeight", 1920)

	// Transcription defaults
	v.SetDefault("transcription.provider", "openai")
	v.SetDefault("transcription.apiKey", "")
	v.SetDefault("transcription.baseURL", "")
	v.SetDefault("transcription.model", "whisper-1")
	v.SetDefault("transcription.language", "pt")
	v.SetDefault("transcription.whisperPath", "whisper")
	v.SetDefault("transcription.whisperModel", "small")
	v.SetDefault("transcription.cacheEnabled", false)
	v.SetDefault("transcription.cacheTTL", "168h")
	v.SetDefault("transcription.usePrompt", false)

	// Style defaults
	v.SetDefault("style.dir", "./data/style")

	// Batch defaults
	v.SetDefault("batch.tempDir", os.TempDir())
	v.SetDefault("batch.stepTimeout", "0s")
	v.SetDefault("batch.outputExt", ".mp4")
	v.SetDefault("batch.keepTemp", false)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lockTTL", "2h")

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "liturgia")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxConns", 5)
	v.SetDefault("database.minConns", 1)

	// Queue defaults
	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")
	v.SetDefault("queue.exchange", "liturgia.jobs")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "liturgia-worker")
	v.SetDefault("tracing.agentHost", "localhost")
	v.SetDefault("tracing.agentPort", 6831)
	v.SetDefault("tracing.sampleRate", 1.0)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)

	// Auth defaults
	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.rateLimit", 5.0)
	v.SetDefault("auth.rateBurst", 10)

	// Schedule defaults
	v.SetDefault("schedule.cron", "@every 30m")
}
