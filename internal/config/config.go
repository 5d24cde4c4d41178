package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	// Document store
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	DBNotifyChannel    string `envconfig:"DB_NOTIFY_CHANNEL" default:"programs_changed"`

	// Blob store (any S3-compatible service)
	S3URL         string `envconfig:"S3_URL" required:"true"`
	S3Bucket      string `envconfig:"S3_BUCKET" required:"true"`
	S3Region      string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey   string `envconfig:"S3_ACCESS_KEY" required:"true"`
	S3SecretKey   string `envconfig:"S3_SECRET_KEY" required:"true"`
	S3PublicURL   string `envconfig:"S3_PUBLIC_URL"`
	MaxVideoMB    int64  `envconfig:"MAX_VIDEO_MB" default:"100"`
	MaxResourceMB int64  `envconfig:"MAX_RESOURCE_MB" default:"25"`

	// Admin session
	JWTSecret         string        `envconfig:"JWT_SECRET"`
	SessionTTL        time.Duration `envconfig:"SESSION_TTL" default:"12h"`
	AdminEmail        string        `envconfig:"ADMIN_EMAIL"`
	AdminPasswordHash string        `envconfig:"ADMIN_PASSWORD_HASH"`
	// Secret Manager secret holding the bcrypt hash, used when ADMIN_PASSWORD_HASH is empty.
	AdminPasswordSecret string `envconfig:"ADMIN_PASSWORD_SECRET"`

	// Viewer session
	CookieSecret  string        `envconfig:"COOKIE_SECRET"`
	ViewerIdleTTL time.Duration `envconfig:"VIEWER_IDLE_TTL" default:"6h"`

	// Google Cloud
	GCPProjectID        string `envconfig:"GCP_PROJECT_ID"`
	GCPCredentialsFile  string `envconfig:"GCP_CREDENTIALS_FILE"`
	PubSubEmulatorHost  string `envconfig:"PUBSUB_EMULATOR_HOST"`
	PubSubProgramsTopic string `envconfig:"PUBSUB_PROGRAMS_TOPIC"`

	// Blob cleanup worker
	CleanupQueueName           string `envconfig:"CLEANUP_QUEUE_NAME" default:"blob_cleanup_queue"`
	CleanupDeadLetterQueueName string `envconfig:"CLEANUP_DEAD_LETTER_QUEUE_NAME" default:"blob_cleanup_queue_dlq"`
	CleanupPollTimeoutSec      int    `envconfig:"CLEANUP_POLL_TIMEOUT_SEC" default:"30"`
	CleanupPollMaxMsg          int    `envconfig:"CLEANUP_POLL_MAX_MSG" default:"1"`
	CleanupMaxRetries          int    `envconfig:"CLEANUP_MAX_RETRIES" default:"5"`
	CleanupBackoffInitialSec   int    `envconfig:"CLEANUP_BACKOFF_INITIAL_SEC" default:"1"`
	CleanupBackoffMaxSec       int    `envconfig:"CLEANUP_BACKOFF_MAX_SEC" default:"60"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PublicObjectBaseURL returns the prefix that object keys are appended to when
// building durable download URLs.
func (c *Config) PublicObjectBaseURL() string {
	if c.S3PublicURL != "" {
		return c.S3PublicURL
	}
	return c.S3URL + "/" + c.S3Bucket
}

// IsDevelopment reports whether the service runs against local infrastructure.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// ValidateServer checks the settings only the HTTP server needs; the cleanup
// worker runs without them.
func (c *Config) ValidateServer() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.AdminEmail == "" {
		errs = append(errs, errors.New("ADMIN_EMAIL is required"))
	}
	if c.AdminPasswordHash == "" && c.AdminPasswordSecret == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD_HASH or ADMIN_PASSWORD_SECRET is required"))
	}
	if len(c.CookieSecret) < 32 {
		errs = append(errs, errors.New("COOKIE_SECRET must be at least 32 bytes"))
	}
	return errors.Join(errs...)
}
