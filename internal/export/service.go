package export

import (
	"context"
	"fmt"
	"log"
	"time"

	"copydesk/api/internal/billing"
)

// Service renders monthly reports and archives a copy of each export.
type Service struct {
	archive *Archive // nil when object storage is not configured
}

// NewService creates an export service. archive may be nil.
func NewService(archive *Archive) *Service {
	return &Service{archive: archive}
}

// ExportMonthly renders the given stats in the requested format. Archiving
// is best effort: a storage failure is logged, not returned, because the
// caller already holds the bytes.
func (s *Service) ExportMonthly(ctx context.Context, stats []billing.MonthlyStat, req Request) (*Result, error) {
	title := req.Title
	if title == "" {
		title = "Monthly Revenue Report"
	}

	var result *Result
	var err error
	switch req.Format {
	case FormatCSV:
		result, err = exportCSV(stats, title)
	case FormatPDF:
		var html string
		html, err = RenderReportHTML(ReportData{
			Title:       title,
			GeneratedAt: time.Now(),
			Stats:       stats,
		})
		if err != nil {
			return nil, fmt.Errorf("render report: %w", err)
		}
		result, err = exportPDF(html, title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
	if err != nil {
		return nil, err
	}

	if s.archive != nil {
		if archiveErr := s.archive.Store(ctx, result); archiveErr != nil {
			log.Printf("export: archive failed: %v", archiveErr)
		}
	}
	return result, nil
}
