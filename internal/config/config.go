package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends accepted by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// Blob backends accepted by BLOB_BACKEND.
const (
	BlobDisk  = "disk"
	BlobS3    = "s3"
	BlobMinio = "minio"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	LogFormat     string

	StoreBackend string
	DatabaseURL  string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	LockTTL       time.Duration
	LockWait      time.Duration
	DedupTTL      time.Duration

	TwilioAccountSID    string
	TwilioAuthToken     string
	TwilioWebhookSecret string

	MediaFetchTimeout       time.Duration
	MediaMaxBytes           int64
	ValidateCoordinateRange bool
	ListenerTimeout         time.Duration

	BlobBackend    string
	PhotoDir       string
	S3Bucket       string
	S3Prefix       string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ConversationsTable  string
	ReportsTable        string
	ReportsIndex        string

	ReportEventsQueueURL string

	// Report e-mail notification
	NotifyEmailTo  string
	EmailProvider  string
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string

	AdminJWTSecret string
	MetricsEnabled bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8008"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),

		StoreBackend: strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", BackendMemory))),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		LockTTL:       getEnvAsDuration("LOCK_TTL", 30*time.Second),
		LockWait:      getEnvAsDuration("LOCK_WAIT", 10*time.Second),
		DedupTTL:      getEnvAsDuration("DEDUP_TTL", 24*time.Hour),

		TwilioAccountSID:    getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWebhookSecret: getEnv("TWILIO_WEBHOOK_SECRET", ""),

		MediaFetchTimeout:       getEnvAsDuration("MEDIA_FETCH_TIMEOUT", 15*time.Second),
		MediaMaxBytes:           int64(getEnvAsInt("MEDIA_MAX_BYTES", 16<<20)),
		ValidateCoordinateRange: getEnvAsBool("VALIDATE_COORDINATE_RANGE", true),
		ListenerTimeout:         getEnvAsDuration("LISTENER_TIMEOUT", 10*time.Second),

		BlobBackend:    strings.ToLower(strings.TrimSpace(getEnv("BLOB_BACKEND", BlobDisk))),
		PhotoDir:       getEnv("PHOTO_DIR", "pothole_images"),
		S3Bucket:       getEnv("S3_BUCKET", ""),
		S3Prefix:       getEnv("S3_PREFIX", "pothole_images"),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET", "pothole-images"),
		MinioUseSSL:    getEnvAsBool("MINIO_USE_SSL", false),

		AWSRegion:           getEnv("AWS_REGION", "af-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ConversationsTable:  getEnv("CONVERSATIONS_TABLE", "pothole_conversations"),
		ReportsTable:        getEnv("REPORTS_TABLE", "pothole_reports"),
		ReportsIndex:        getEnv("REPORTS_CREATED_AT_INDEX", ""),

		ReportEventsQueueURL: getEnv("REPORT_EVENTS_QUEUE_URL", ""),

		NotifyEmailTo:  getEnv("NOTIFY_EMAIL_TO", ""),
		EmailProvider:  strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "sendgrid"))),
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", ""),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "Pothole Reporter"),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}
}

// UsesAWS reports whether any configured component needs an AWS client.
func (c *Config) UsesAWS() bool {
	if c == nil {
		return false
	}
	return c.StoreBackend == BackendDynamoDB ||
		c.BlobBackend == BlobS3 ||
		strings.TrimSpace(c.ReportEventsQueueURL) != "" ||
		(strings.TrimSpace(c.NotifyEmailTo) != "" && c.EmailProvider == "ses")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
