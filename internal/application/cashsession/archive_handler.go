package cashsession

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/tuitionhub/backend/internal/domain/cashsession"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

// ObjectStore writes archive objects
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// ReportArchiveHandler copies final reports to object storage when a session
// closes. Archive failures are logged and never undo the close.
type ReportArchiveHandler struct {
	store  ObjectStore
	prefix string
	logger *zap.Logger
}

// NewReportArchiveHandler creates a new handler for CashSessionClosed events
func NewReportArchiveHandler(store ObjectStore, prefix string, logger *zap.Logger) *ReportArchiveHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prefix == "" {
		prefix = "reports"
	}
	return &ReportArchiveHandler{
		store:  store,
		prefix: prefix,
		logger: logger,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *ReportArchiveHandler) EventTypes() []string {
	return []string{cashsession.EventTypeSessionClosed}
}

// Handle processes a SessionClosedEvent
func (h *ReportArchiveHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	closed, ok := event.(*cashsession.SessionClosedEvent)
	if !ok {
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			cashsession.EventTypeSessionClosed, event.EventType())
	}
	if closed.Report == nil {
		h.logger.Warn("Session closed event without report", zap.String("session_id", closed.AggregateID().String()))
		return nil
	}

	key, err := h.ArchiveFinalReport(ctx, closed.Report)
	if err != nil {
		h.logger.Error("Failed to archive final report",
			zap.String("session_id", closed.AggregateID().String()),
			zap.String("report_id", closed.FinalReportID.String()),
			zap.Error(err))
		return nil
	}
	h.logger.Info("Final report archived",
		zap.String("report_id", closed.FinalReportID.String()),
		zap.String("key", key))
	return nil
}

// ArchiveFinalReport writes the report JSON under
// <prefix>/<cashierId>/<sessionDate>/<reportId>.json and returns the key
func (h *ReportArchiveHandler) ArchiveFinalReport(ctx context.Context, r *cashsession.SessionReport) (string, error) {
	body, err := json.Marshal(ToReportResponse(r))
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	key := ArchiveKey(h.prefix, r)
	if err := h.store.PutObject(ctx, key, body, "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// ArchiveKey returns the object key of a report
func ArchiveKey(prefix string, r *cashsession.SessionReport) string {
	return path.Join(prefix, r.CashierID.String(), r.SessionDate.Format("2006-01-02"), r.ID.String()+".json")
}
