package reports

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

// Sink adapts a BlobStore and a Repository to conversation.ReportSink.
type Sink struct {
	blobs  BlobStore
	repo   Repository
	logger *logging.Logger
}

var _ conversation.ReportSink = (*Sink)(nil)

// NewSink builds a Sink.
func NewSink(blobs BlobStore, repo Repository, logger *logging.Logger) *Sink {
	if blobs == nil {
		panic("reports: blob store cannot be nil")
	}
	if repo == nil {
		panic("reports: repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sink{blobs: blobs, repo: repo, logger: logger}
}

// StoreBlob writes the photo under name. The content type is derived from the extension.
func (s *Sink) StoreBlob(ctx context.Context, name string, data []byte) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("reports: blob name required")
	}
	locator, err := s.blobs.Put(ctx, name, data, contentTypeFor(name))
	if err != nil {
		return "", fmt.Errorf("reports: store blob %s: %w", name, err)
	}
	s.logger.Debug("photo stored", "name", name, "locator", locator, "bytes", len(data))
	return locator, nil
}

// CreateReport inserts report and returns its id.
func (s *Sink) CreateReport(ctx context.Context, report conversation.Report) (string, error) {
	if report.ID == "" {
		return "", fmt.Errorf("reports: report id required")
	}
	if err := s.repo.Insert(ctx, report); err != nil {
		return "", fmt.Errorf("reports: insert report %s: %w", report.ID, err)
	}
	s.logger.Info("report created",
		"report_id", report.ID,
		"sender_id", report.SenderID,
		"image_locator", report.ImageLocator,
	)
	return report.ID, nil
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
