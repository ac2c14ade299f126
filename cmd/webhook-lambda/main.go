// Command webhook-lambda forwards Twilio messaging webhooks from API Gateway
// to the intake API, keeping the headers Twilio signed against.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

const maxResponseBytes = 64 << 10

// forwardedPaths are the webhook routes the API serves.
var forwardedPaths = map[string]bool{
	"/webhooks/twilio/messages": true,
	"/pothole":                  true,
}

type proxy struct {
	upstreamBaseURL string
	timeout         time.Duration
	client          *http.Client
}

func newProxyFromEnv() (*proxy, error) {
	baseURL := strings.TrimSpace(os.Getenv("UPSTREAM_BASE_URL"))
	if baseURL == "" {
		return nil, errors.New("UPSTREAM_BASE_URL is required")
	}

	timeout := 10 * time.Second
	if raw := strings.TrimSpace(os.Getenv("UPSTREAM_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid UPSTREAM_TIMEOUT: %w", err)
		}
		timeout = parsed
	}
	return &proxy{
		upstreamBaseURL: strings.TrimRight(baseURL, "/"),
		timeout:         timeout,
		client:          &http.Client{Timeout: timeout},
	}, nil
}

func main() {
	p, err := newProxyFromEnv()
	if err != nil {
		panic(err)
	}
	lambda.Start(p.handle)
}

func (p *proxy) handle(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	method := strings.ToUpper(strings.TrimSpace(evt.RequestContext.HTTP.Method))
	path := strings.TrimSpace(evt.RawPath)
	if path == "" {
		path = strings.TrimSpace(evt.RequestContext.HTTP.Path)
	}

	if path == "/health" {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusOK, Body: "ok"}, nil
	}
	if !forwardedPaths[path] {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusNotFound}, nil
	}
	if method != http.MethodPost {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusMethodNotAllowed}, nil
	}

	body, err := requestBody(evt)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadRequest, Body: "invalid body"}, nil
	}

	target := p.upstreamBaseURL + path
	if qs := strings.TrimSpace(evt.RawQueryString); qs != "" {
		target += "?" + qs
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusInternalServerError}, nil
	}
	forwardHeaders(req.Header, evt)

	resp, err := p.client.Do(req)
	if err != nil {
		return events.APIGatewayV2HTTPResponse{StatusCode: http.StatusBadGateway, Body: "upstream error"}, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	out := events.APIGatewayV2HTTPResponse{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Headers:    map[string]string{},
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		out.Headers["content-type"] = ct
	}
	return out, nil
}

// forwardHeaders copies the content type and Twilio signature, and rebuilds
// the public host/proto so the API validates against the URL Twilio called.
func forwardHeaders(dst http.Header, evt events.APIGatewayV2HTTPRequest) {
	if ct := headerValue(evt.Headers, "content-type"); ct != "" {
		dst.Set("Content-Type", ct)
	}
	if sig := strings.TrimSpace(headerValue(evt.Headers, "x-twilio-signature")); sig != "" {
		dst.Set("X-Twilio-Signature", sig)
	}
	if id := strings.TrimSpace(evt.RequestContext.RequestID); id != "" {
		dst.Set("X-Request-ID", id)
	}

	host := strings.TrimSpace(evt.RequestContext.DomainName)
	if host == "" {
		host = strings.TrimSpace(headerValue(evt.Headers, "host"))
	}
	if host != "" {
		dst.Set("X-Forwarded-Host", host)
	}
	proto := strings.TrimSpace(headerValue(evt.Headers, "x-forwarded-proto"))
	if proto == "" {
		proto = "https"
	}
	dst.Set("X-Forwarded-Proto", proto)
}

func requestBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
