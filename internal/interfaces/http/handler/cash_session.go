package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sessionapp "github.com/tuitionhub/backend/internal/application/cashsession"
)

// SessionService drives cashier shifts
type SessionService interface {
	Open(ctx context.Context, req sessionapp.OpenSessionRequest) (*sessionapp.SessionResponse, error)
	GetSession(ctx context.Context, id uuid.UUID) (*sessionapp.SessionResponse, error)
	CashOut(ctx context.Context, sessionID uuid.UUID, req sessionapp.CashOutRequest) (*sessionapp.CashOutResult, error)
	GenerateReport(ctx context.Context, sessionID uuid.UUID, req sessionapp.GenerateReportRequest) (*sessionapp.ReportResponse, error)
	Close(ctx context.Context, sessionID uuid.UUID) (*sessionapp.CloseResult, error)
}

// CashSessionHandler handles cash session endpoints
type CashSessionHandler struct {
	BaseHandler
	sessions SessionService
}

// NewCashSessionHandler creates a new CashSessionHandler
func NewCashSessionHandler(sessions SessionService) *CashSessionHandler {
	return &CashSessionHandler{sessions: sessions}
}

// Open godoc
//
//	@ID				openCashSession
//	@Summary		Open a cashier shift
//	@Tags			cash-sessions
//	@Accept			json
//	@Produce		json
//	@Param			request	body		sessionapp.OpenSessionRequest	true	"Shift opening"
//	@Success		201		{object}	APIResponse[sessionapp.SessionResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/cash-sessions [post]
func (h *CashSessionHandler) Open(c *gin.Context) {
	var req sessionapp.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	s, err := h.sessions.Open(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, s)
}

// Get godoc
//
//	@ID				getCashSession
//	@Summary		Get a cash session with its drawer balance
//	@Tags			cash-sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	APIResponse[sessionapp.SessionResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Router			/cash-sessions/{id} [get]
func (h *CashSessionHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	s, err := h.sessions.GetSession(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, s)
}

// CashOut godoc
//
//	@ID				cashOutCashSession
//	@Summary		Take cash out of the drawer
//	@Tags			cash-sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string						true	"Session ID"
//	@Param			request	body		sessionapp.CashOutRequest	true	"Cash-out"
//	@Success		201		{object}	APIResponse[sessionapp.CashOutResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/cash-sessions/{id}/cash-outs [post]
func (h *CashSessionHandler) CashOut(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req sessionapp.CashOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	res, err := h.sessions.CashOut(c.Request.Context(), id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, res)
}

// GenerateReport godoc
//
//	@ID				generateCashSessionReport
//	@Summary		Generate an interim session report
//	@Tags			cash-sessions
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string							true	"Session ID"
//	@Param			request	body		sessionapp.GenerateReportRequest	false	"Report type"
//	@Success		201		{object}	APIResponse[sessionapp.ReportResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/cash-sessions/{id}/reports [post]
func (h *CashSessionHandler) GenerateReport(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req sessionapp.GenerateReportRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	report, err := h.sessions.GenerateReport(c.Request.Context(), id, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, report)
}

// Close godoc
//
//	@ID				closeCashSession
//	@Summary		Close a cashier shift
//	@Description	Reconciles the shift against the payment ledger and stores the final report
//	@Tags			cash-sessions
//	@Produce		json
//	@Param			id	path		string	true	"Session ID"
//	@Success		200	{object}	APIResponse[sessionapp.CloseResult]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/cash-sessions/{id}/close [post]
func (h *CashSessionHandler) Close(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	res, err := h.sessions.Close(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, res)
}
