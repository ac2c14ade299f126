package main

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
)

func gatewayEvent(method, path string) events.APIGatewayV2HTTPRequest {
	return events.APIGatewayV2HTTPRequest{
		RawPath: path,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method: method,
				Path:   path,
			},
		},
	}
}

func testProxy(baseURL string) *proxy {
	return &proxy{upstreamBaseURL: baseURL, timeout: time.Second, client: &http.Client{Timeout: time.Second}}
}

func TestHandleHealth(t *testing.T) {
	resp, err := testProxy("http://example.com").handle(context.Background(), gatewayEvent(http.MethodGet, "/health"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK || resp.Body != "ok" {
		t.Fatalf("unexpected health response %d %q", resp.StatusCode, resp.Body)
	}
}

func TestHandleRejects(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/webhooks/twilio/messages", http.StatusMethodNotAllowed},
		{http.MethodPost, "/webhooks/twilio/voice", http.StatusNotFound},
		{http.MethodPost, "/admin/reports", http.StatusNotFound},
	}
	p := testProxy("http://example.com")
	for _, tc := range cases {
		resp, err := p.handle(context.Background(), gatewayEvent(tc.method, tc.path))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.StatusCode != tc.want {
			t.Fatalf("%s %s: expected status %d, got %d", tc.method, tc.path, tc.want, resp.StatusCode)
		}
	}
}

func TestHandleInvalidBase64Body(t *testing.T) {
	evt := gatewayEvent(http.MethodPost, "/pothole")
	evt.Body = "not-base64"
	evt.IsBase64Encoded = true

	resp, err := testProxy("http://example.com").handle(context.Background(), evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest || resp.Body != "invalid body" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, resp.Body)
	}
}

func TestHandleForwardsMessagingWebhook(t *testing.T) {
	var gotHeaders http.Header
	var gotBody, gotPath string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotHeaders, gotBody, gotPath = r.Header.Clone(), string(body), r.URL.Path
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte("<Response><Message>hi</Message></Response>"))
	}))
	defer upstream.Close()

	evt := gatewayEvent(http.MethodPost, "/webhooks/twilio/messages")
	evt.Body = base64.StdEncoding.EncodeToString([]byte("From=whatsapp%3A%2B27&Body=hi"))
	evt.IsBase64Encoded = true
	evt.Headers = map[string]string{
		"Content-Type":       "application/x-www-form-urlencoded",
		"X-Twilio-Signature": "sig",
	}
	evt.RequestContext.DomainName = "hooks.example.org"
	evt.RequestContext.RequestID = "gw-123"

	resp, err := testProxy(upstream.URL).handle(context.Background(), evt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if resp.Headers["content-type"] != "application/xml" {
		t.Fatalf("expected content-type to be forwarded, got %q", resp.Headers["content-type"])
	}

	if gotPath != "/webhooks/twilio/messages" {
		t.Fatalf("unexpected upstream path %q", gotPath)
	}
	if gotBody != "From=whatsapp%3A%2B27&Body=hi" {
		t.Fatalf("expected decoded body, got %q", gotBody)
	}
	checks := map[string]string{
		"X-Twilio-Signature": "sig",
		"X-Forwarded-Host":   "hooks.example.org",
		"X-Forwarded-Proto":  "https",
		"X-Request-ID":       "gw-123",
		"Content-Type":       "application/x-www-form-urlencoded",
	}
	for header, want := range checks {
		if got := gotHeaders.Get(header); got != want {
			t.Fatalf("%s: expected %q, got %q", header, want, got)
		}
	}
}

func TestHandleUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	resp, err := testProxy(url).handle(context.Background(), gatewayEvent(http.MethodPost, "/pothole"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, resp.StatusCode)
	}
}

func TestNewProxyFromEnv(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "")
	if _, err := newProxyFromEnv(); err == nil {
		t.Fatalf("expected error without upstream")
	}

	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.org/")
	t.Setenv("UPSTREAM_TIMEOUT", "nope")
	if _, err := newProxyFromEnv(); err == nil {
		t.Fatalf("expected error for invalid timeout")
	}

	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	p, err := newProxyFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.upstreamBaseURL != "https://api.example.org" || p.timeout != 3*time.Second {
		t.Fatalf("unexpected proxy %+v", p)
	}
}
