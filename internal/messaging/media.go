package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
)

var mediaTracer = otel.Tracer("potholematic.internal.messaging.media")

const defaultMaxMediaBytes int64 = 16 << 20

// ErrMediaTooLarge is returned when a download exceeds the configured cap.
var ErrMediaTooLarge = errors.New("messaging: media exceeds size limit")

// TwilioMediaFetcher downloads MediaUrl attachments. Twilio media URLs
// redirect to a signed CDN location, which the default client follows.
type TwilioMediaFetcher struct {
	accountSID string
	authToken  string
	maxBytes   int64
	httpClient *http.Client
}

var _ conversation.MediaFetcher = (*TwilioMediaFetcher)(nil)

// NewTwilioMediaFetcher builds a fetcher. Credentials are optional; when both
// are set requests use HTTP basic auth.
func NewTwilioMediaFetcher(accountSID, authToken string, maxBytes int64, timeout time.Duration) *TwilioMediaFetcher {
	if maxBytes <= 0 {
		maxBytes = defaultMaxMediaBytes
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TwilioMediaFetcher{
		accountSID: strings.TrimSpace(accountSID),
		authToken:  strings.TrimSpace(authToken),
		maxBytes:   maxBytes,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the attachment at url.
func (f *TwilioMediaFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	ctx, span := mediaTracer.Start(ctx, "messaging.twilio.media_fetch")
	defer span.End()

	data, contentType, err := f.fetch(ctx, url)
	if err != nil {
		span.RecordError(err)
		return nil, "", err
	}
	span.SetAttributes(
		attribute.Int("potholematic.media_bytes", len(data)),
		attribute.String("potholematic.media_content_type", contentType),
	)
	return data, contentType, nil
}

func (f *TwilioMediaFetcher) fetch(ctx context.Context, url string) ([]byte, string, error) {
	if strings.TrimSpace(url) == "" {
		return nil, "", errors.New("messaging: media url required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("messaging: build media request: %w", err)
	}
	if f.accountSID != "" && f.authToken != "" {
		req.SetBasicAuth(f.accountSID, f.authToken)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("messaging: download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, "", fmt.Errorf("messaging: download media: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("messaging: read media: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", ErrMediaTooLarge
	}
	return data, resp.Header.Get("Content-Type"), nil
}
