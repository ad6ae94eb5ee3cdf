package export

import (
	"context"
	"fmt"
	"time"

	"specstudio/internal/project"
)

// Request contains parameters for an export operation
type Request struct {
	Format   Format
	Snapshot project.Snapshot
}

// Service provides project export functionality
type Service struct {
	pdfTimeout time.Duration
	now        func() time.Time
}

// NewService creates a new export service
func NewService(pdfTimeout time.Duration) *Service {
	if pdfTimeout <= 0 {
		pdfTimeout = 30 * time.Second
	}
	return &Service{pdfTimeout: pdfTimeout, now: time.Now}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	now := s.now()
	switch req.Format {
	case FormatZip, "":
		return Bundle(req.Snapshot, now)
	case FormatPDF:
		data, err := NewTemplateData(req.Snapshot.Normalize(), now)
		if err != nil {
			return nil, err
		}
		html, err := RenderDocumentHTML(data)
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		return printPDF(ctx, html, data.Title, s.pdfTimeout)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}
