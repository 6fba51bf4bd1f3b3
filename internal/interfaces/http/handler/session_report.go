package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sessionapp "github.com/tuitionhub/backend/internal/application/cashsession"
)

// ReportService reads and annotates session reports
type ReportService interface {
	ListReports(ctx context.Context, filter sessionapp.ReportListFilter) ([]sessionapp.ReportResponse, int64, error)
	GetReport(ctx context.Context, id uuid.UUID) (*sessionapp.ReportResponse, error)
	AnnotateReport(ctx context.Context, id uuid.UUID, req sessionapp.AnnotateReportRequest) (*sessionapp.ReportResponse, error)
}

// ArchiveLinker hands out download links for archived final reports
type ArchiveLinker interface {
	ArchiveLink(ctx context.Context, reportID uuid.UUID) (*sessionapp.ArchiveLinkResponse, error)
}

// SessionReportHandler handles the report history endpoints
type SessionReportHandler struct {
	BaseHandler
	reports  ReportService
	archives ArchiveLinker
}

// NewSessionReportHandler creates a new SessionReportHandler
func NewSessionReportHandler(reports ReportService, archives ArchiveLinker) *SessionReportHandler {
	return &SessionReportHandler{reports: reports, archives: archives}
}

// List godoc
//
//	@ID				listSessionReports
//	@Summary		List session reports
//	@Tags			session-reports
//	@Produce		json
//	@Param			page		query		int		false	"Page number"
//	@Param			page_size	query		int		false	"Page size"
//	@Param			cashier_id	query		string	false	"Cashier"
//	@Param			session_id	query		string	false	"Session"
//	@Param			is_final	query		bool	false	"Only final or only interim reports"
//	@Success		200			{object}	ListResponse[sessionapp.ReportResponse]
//	@Router			/session-reports [get]
func (h *SessionReportHandler) List(c *gin.Context) {
	var filter sessionapp.ReportListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	list, total, err := h.reports.ListReports(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	page := filter.ToDomain()
	h.SuccessWithMeta(c, list, total, page.Page, page.PageSize)
}

// Get godoc
//
//	@ID				getSessionReport
//	@Summary		Get a session report
//	@Tags			session-reports
//	@Produce		json
//	@Param			id	path		string	true	"Report ID"
//	@Success		200	{object}	APIResponse[sessionapp.ReportResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Router			/session-reports/{id} [get]
func (h *SessionReportHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	report, err := h.reports.GetReport(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, report)
}

// Annotate godoc
//
//	@ID				annotateSessionReport
//	@Summary		Set notes on an interim report
//	@Description	Final reports are immutable and answer 409
//	@Tags			session-reports
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Report ID"
//	@Param			request	body		sessionapp.AnnotateReportRequest	true	"Notes"
//	@Success		200		{object}	APIResponse[sessionapp.ReportResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/session-reports/{id}/notes [patch]
func (h *SessionReportHandler) Annotate(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req sessionapp.AnnotateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	report, err := h.reports.AnnotateReport(c.Request.Context(), id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, report)
}

// Archive godoc
//
//	@ID				getSessionReportArchive
//	@Summary		Download link for an archived final report
//	@Tags			session-reports
//	@Produce		json
//	@Param			id	path		string	true	"Report ID"
//	@Success		200	{object}	APIResponse[sessionapp.ArchiveLinkResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/session-reports/{id}/archive [get]
func (h *SessionReportHandler) Archive(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	link, err := h.archives.ArchiveLink(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, link)
}
