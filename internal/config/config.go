package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	S3            S3Config            `mapstructure:"s3"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Conversion    ConversionConfig    `mapstructure:"conversion"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Email         EmailConfig         `mapstructure:"email"`
	Outbox        OutboxConfig        `mapstructure:"outbox"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type S3Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	PublicBaseURL   string        `mapstructure:"public_base_url"`
	UploadTimeout   time.Duration `mapstructure:"upload_timeout"`
}

type TranscriptionConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	DirectSizeLimit int64         `mapstructure:"direct_size_limit"`
	SegmentSize     int64         `mapstructure:"segment_size"`
	Workers         int           `mapstructure:"workers"`
	SegmentRetries  int           `mapstructure:"segment_retries"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// PipelineConfig задаёт бюджет времени на каждую стадию обработки записи.
// Нулевое значение отключает дедлайн стадии.
type PipelineConfig struct {
	UploadTimeout     time.Duration `mapstructure:"upload_timeout"`
	NormalizeTimeout  time.Duration `mapstructure:"normalize_timeout"`
	TranscribeTimeout time.Duration `mapstructure:"transcribe_timeout"`
	AnalyzeTimeout    time.Duration `mapstructure:"analyze_timeout"`
}

type ConversionConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	TargetFormat string        `mapstructure:"target_format"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

type LLMConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type EmailConfig struct {
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	FromEmail       string `mapstructure:"from_email"`
}

type OutboxConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

// Load читает конфигурацию из переменных окружения с дефолтами для
// локальной разработки.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	bindings := map[string]string{
		"server.port":                     "HTTP_PORT",
		"database.host":                   "DATABASE_HOST",
		"database.port":                   "DATABASE_PORT",
		"database.user":                   "DATABASE_USER",
		"database.password":               "DATABASE_PASSWORD",
		"database.name":                   "DATABASE_NAME",
		"database.sslmode":                "DATABASE_SSLMODE",
		"s3.endpoint":                     "S3_ENDPOINT",
		"s3.region":                       "S3_REGION",
		"s3.bucket":                       "S3_BUCKET",
		"s3.access_key_id":                "S3_ACCESS_KEY_ID",
		"s3.secret_access_key":            "S3_SECRET_ACCESS_KEY",
		"s3.public_base_url":              "S3_PUBLIC_BASE_URL",
		"s3.upload_timeout":               "S3_UPLOAD_TIMEOUT",
		"transcription.base_url":          "TRANSCRIPTION_BASE_URL",
		"transcription.direct_size_limit": "TRANSCRIPTION_DIRECT_SIZE_LIMIT",
		"transcription.segment_size":      "TRANSCRIPTION_SEGMENT_SIZE",
		"transcription.workers":           "TRANSCRIPTION_WORKERS",
		"transcription.segment_retries":   "TRANSCRIPTION_SEGMENT_RETRIES",
		"transcription.request_timeout":   "TRANSCRIPTION_REQUEST_TIMEOUT",
		"pipeline.upload_timeout":         "PIPELINE_UPLOAD_TIMEOUT",
		"pipeline.normalize_timeout":      "PIPELINE_NORMALIZE_TIMEOUT",
		"pipeline.transcribe_timeout":     "PIPELINE_TRANSCRIBE_TIMEOUT",
		"pipeline.analyze_timeout":        "PIPELINE_ANALYZE_TIMEOUT",
		"conversion.base_url":             "CONVERSION_BASE_URL",
		"conversion.target_format":        "CONVERSION_TARGET_FORMAT",
		"conversion.poll_interval":        "CONVERSION_POLL_INTERVAL",
		"conversion.poll_timeout":         "CONVERSION_POLL_TIMEOUT",
		"llm.url":                         "LLM_URL",
		"llm.api_key":                     "LLM_API_KEY",
		"llm.model":                       "LLM_MODEL",
		"llm.timeout":                     "LLM_TIMEOUT",
		"kafka.brokers":                   "KAFKA_BROKERS",
		"kafka.topic":                     "KAFKA_TOPIC",
		"email.region":                    "EMAIL_REGION",
		"email.access_key_id":             "EMAIL_ACCESS_KEY_ID",
		"email.secret_access_key":         "EMAIL_SECRET_ACCESS_KEY",
		"email.from_email":                "EMAIL_FROM",
		"outbox.interval":                 "OUTBOX_INTERVAL",
		"outbox.batch_size":               "OUTBOX_BATCH_SIZE",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	v.SetDefault("server.port", "8081")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("transcription.direct_size_limit", 25*1024*1024)
	v.SetDefault("transcription.segment_size", 20*1024*1024)
	v.SetDefault("transcription.workers", 3)
	v.SetDefault("transcription.segment_retries", 2)
	v.SetDefault("transcription.request_timeout", 5*time.Minute)
	v.SetDefault("pipeline.upload_timeout", 10*time.Minute)
	v.SetDefault("pipeline.normalize_timeout", 20*time.Minute)
	v.SetDefault("pipeline.transcribe_timeout", 45*time.Minute)
	v.SetDefault("pipeline.analyze_timeout", 5*time.Minute)
	v.SetDefault("s3.upload_timeout", 10*time.Minute)
	v.SetDefault("conversion.target_format", "mp3")
	v.SetDefault("conversion.poll_interval", 5*time.Second)
	v.SetDefault("conversion.poll_timeout", 15*time.Minute)
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.timeout", 2*time.Minute)
	v.SetDefault("kafka.topic", "recording-events")
	v.SetDefault("outbox.interval", 2*time.Second)
	v.SetDefault("outbox.batch_size", 100)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// KAFKA_BROKERS приходит одной строкой через запятую.
	if raw := v.GetString("kafka.brokers"); raw != "" {
		cfg.Kafka.Brokers = strings.Split(raw, ",")
	}

	if cfg.Database.Host == "" ||
		cfg.Database.User == "" ||
		cfg.Database.Name == "" {
		return nil, fmt.Errorf("database configuration is incomplete: host=%s, user=%s, name=%s",
			cfg.Database.Host, cfg.Database.User, cfg.Database.Name)
	}

	return &cfg, nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}
