package cashsession

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tuitionhub/backend/internal/domain/cashsession"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

// ArchiveLinker checks and signs read access to archived objects
type ArchiveLinker interface {
	ObjectExists(ctx context.Context, key string) (bool, error)
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
}

// ArchiveLinkResponse is a time-limited download link for a final report
type ArchiveLinkResponse struct {
	ReportID  uuid.UUID `json:"report_id"`
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ArchiveLinkService hands out download links for archived final reports
type ArchiveLinkService struct {
	reports cashsession.ReportRepository
	linker  ArchiveLinker
	prefix  string
	ttl     time.Duration
}

// NewArchiveLinkService creates a new link service. A nil linker means
// archiving is disabled and every lookup fails with NOT_FOUND.
func NewArchiveLinkService(reports cashsession.ReportRepository, linker ArchiveLinker, prefix string, ttl time.Duration) *ArchiveLinkService {
	if prefix == "" {
		prefix = "reports"
	}
	return &ArchiveLinkService{reports: reports, linker: linker, prefix: prefix, ttl: ttl}
}

// ArchiveLink returns a download link for the archive of a final report
func (s *ArchiveLinkService) ArchiveLink(ctx context.Context, reportID uuid.UUID) (*ArchiveLinkResponse, error) {
	if s.linker == nil {
		return nil, shared.NewNotFoundError("Report archiving is disabled")
	}

	report, err := s.reports.FindByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if !report.IsFinal {
		return nil, shared.NewInvalidStateError("Only final reports are archived")
	}

	key := ArchiveKey(s.prefix, report)
	exists, err := s.linker.ObjectExists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check report archive: %w", err)
	}
	if !exists {
		return nil, shared.NewNotFoundError("Report archive not found")
	}

	url, expiresAt, err := s.linker.PresignGet(ctx, key, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to sign report archive link: %w", err)
	}
	return &ArchiveLinkResponse{ReportID: report.ID, Key: key, URL: url, ExpiresAt: expiresAt}, nil
}
