package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "STORE_BACKEND", "BLOB_BACKEND", "MEDIA_FETCH_TIMEOUT", "LISTENER_TIMEOUT", "VALIDATE_COORDINATE_RANGE", "PHOTO_DIR"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8008" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.StoreBackend != BackendMemory {
		t.Fatalf("expected memory store by default, got %s", cfg.StoreBackend)
	}
	if cfg.BlobBackend != BlobDisk {
		t.Fatalf("expected disk blobs by default, got %s", cfg.BlobBackend)
	}
	if cfg.PhotoDir != "pothole_images" {
		t.Fatalf("expected default photo dir, got %s", cfg.PhotoDir)
	}
	if cfg.MediaFetchTimeout != 15*time.Second {
		t.Fatalf("expected default fetch timeout, got %s", cfg.MediaFetchTimeout)
	}
	if !cfg.ValidateCoordinateRange {
		t.Fatalf("expected coordinate range validation on by default")
	}
	if cfg.ListenerTimeout != 10*time.Second {
		t.Fatalf("expected default listener timeout, got %s", cfg.ListenerTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", " Postgres ")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("BLOB_BACKEND", "S3")
	t.Setenv("S3_BUCKET", "potholes")
	t.Setenv("LOCK_TTL", "45s")
	t.Setenv("MEDIA_MAX_BYTES", "1024")
	t.Setenv("VALIDATE_COORDINATE_RANGE", "false")
	t.Setenv("MINIO_USE_SSL", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.StoreBackend != BackendPostgres {
		t.Fatalf("expected normalized backend, got %q", cfg.StoreBackend)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.BlobBackend != BlobS3 || cfg.S3Bucket != "potholes" {
		t.Fatalf("expected s3 blobs, got %s/%s", cfg.BlobBackend, cfg.S3Bucket)
	}
	if cfg.LockTTL != 45*time.Second {
		t.Fatalf("expected lock ttl override, got %s", cfg.LockTTL)
	}
	if cfg.MediaMaxBytes != 1024 {
		t.Fatalf("expected media max override, got %d", cfg.MediaMaxBytes)
	}
	if cfg.ValidateCoordinateRange {
		t.Fatalf("expected range validation disabled")
	}
	if !cfg.MinioUseSSL {
		t.Fatalf("expected minio ssl enabled")
	}
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("LOCK_TTL", "soon")
	t.Setenv("MEDIA_MAX_BYTES", "lots")
	t.Setenv("REDIS_TLS", "maybe")
	cfg := Load()
	if cfg.LockTTL != 30*time.Second {
		t.Fatalf("expected default lock ttl, got %s", cfg.LockTTL)
	}
	if cfg.MediaMaxBytes != 16<<20 {
		t.Fatalf("expected default media max, got %d", cfg.MediaMaxBytes)
	}
	if cfg.RedisTLS {
		t.Fatalf("expected redis tls default false")
	}
}

func TestUsesAWS(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{"memory only", Config{StoreBackend: BackendMemory, BlobBackend: BlobDisk}, false},
		{"dynamo", Config{StoreBackend: BackendDynamoDB}, true},
		{"s3 blobs", Config{BlobBackend: BlobS3}, true},
		{"sqs events", Config{ReportEventsQueueURL: "https://sqs/queue"}, true},
		{"ses mail", Config{NotifyEmailTo: "roads@example.org", EmailProvider: "ses"}, true},
		{"sendgrid mail", Config{NotifyEmailTo: "roads@example.org", EmailProvider: "sendgrid"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.UsesAWS(); got != tc.want {
				t.Fatalf("UsesAWS() = %v, want %v", got, tc.want)
			}
		})
	}
	var nilCfg *Config
	if nilCfg.UsesAWS() {
		t.Fatal("nil config should not use aws")
	}
}
