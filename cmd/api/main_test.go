package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Yardman-Mzansi/potholematic/internal/app/bootstrap"
	appconfig "github.com/Yardman-Mzansi/potholematic/internal/config"
	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	logger := logging.New("error")
	if pool := connectPostgresPool(context.Background(), "", logger); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
	db, err := openSQLDB("  ")
	if err != nil || db != nil {
		t.Fatalf("expected nil db without error, got %v %v", db, err)
	}
}

func TestOpenDepsMemoryBackends(t *testing.T) {
	cfg := &appconfig.Config{StoreBackend: appconfig.BackendMemory, BlobBackend: appconfig.BlobDisk}
	deps, cleanup, err := openDeps(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()
	if deps.Pool != nil || deps.SQLDB != nil || deps.Redis != nil || deps.AWS != nil {
		t.Fatalf("expected no external dependencies, got %+v", deps)
	}
}

func TestBuildRouterServesWebhookAndMetrics(t *testing.T) {
	cfg := &appconfig.Config{
		StoreBackend:            appconfig.BackendMemory,
		BlobBackend:             appconfig.BlobDisk,
		PhotoDir:                filepath.Join(t.TempDir(), "pothole_images"),
		LockTTL:                 time.Second,
		LockWait:                time.Second,
		DedupTTL:                time.Hour,
		MediaFetchTimeout:       time.Second,
		ValidateCoordinateRange: true,
		MetricsEnabled:          true,
	}
	logger := logging.New("error")
	registry, metricsHandler := setupMetrics()

	rt, err := bootstrap.BuildRuntime(context.Background(), cfg, bootstrap.Deps{Registerer: registry}, logger)
	if err != nil {
		t.Fatalf("build runtime: %v", err)
	}
	handler := buildRouter(cfg, rt, metricsHandler, logger)

	form := url.Values{}
	form.Set("MessageSid", "SM1")
	form.Set("From", "whatsapp:+27820000000")
	form.Set("Body", "hi")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/messages", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Pothole Reporter") {
		t.Fatalf("expected welcome reply, got %s", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "potholematic_messaging_inbound_webhook_total") {
		t.Fatalf("expected webhook counter to be exported")
	}

	// Admin routes stay unmounted without a signing secret.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/reports", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected admin routes to be disabled, got %d", rr.Code)
	}
}
