package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	paymentapp "github.com/tuitionhub/backend/internal/application/payment"
	"github.com/tuitionhub/backend/internal/domain/payment"
)

// defaultRedriveBatch is used when a manual batch re-drive names no size
const defaultRedriveBatch = 50

// PaymentService is the payment lifecycle as seen by the HTTP layer
type PaymentService interface {
	Create(ctx context.Context, req paymentapp.CreatePaymentRequest) (*paymentapp.PaymentResponse, error)
	RecordCounterPayment(ctx context.Context, req paymentapp.CounterPaymentRequest) (*paymentapp.ProcessResult, error)
	Submit(ctx context.Context, transactionID string) (*paymentapp.PaymentResponse, error)
	Process(ctx context.Context, transactionID string, result payment.GatewayResult) (*paymentapp.ProcessResult, error)
	Cancel(ctx context.Context, transactionID, reason string) (*paymentapp.PaymentResponse, error)
	Get(ctx context.Context, transactionID string) (*paymentapp.PaymentResponse, error)
	List(ctx context.Context, filter paymentapp.PaymentListFilter) ([]paymentapp.PaymentResponse, int64, error)
	ListUnsettled(ctx context.Context, filter paymentapp.PaymentListFilter) ([]paymentapp.PaymentResponse, int64, error)
	Redrive(ctx context.Context, transactionID string) (*paymentapp.ProcessResult, error)
	RedriveUnsettled(ctx context.Context, batchSize int) (*paymentapp.RedriveSummary, error)
}

// PaymentHandler handles payment lifecycle endpoints
type PaymentHandler struct {
	BaseHandler
	payments PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// RedriveBatchRequest sizes a manual re-drive batch
type RedriveBatchRequest struct {
	BatchSize int `json:"batch_size" binding:"omitempty,min=1,max=500"`
}

// Create godoc
//
//	@ID				createPayment
//	@Summary		Start a checkout
//	@Description	Create a payment in CREATED state with a fresh transaction id
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		paymentapp.CreatePaymentRequest	true	"Payment request"
//	@Success		201		{object}	APIResponse[paymentapp.PaymentResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	var req paymentapp.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	p, err := h.payments.Create(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, p)
}

// RecordCounter godoc
//
//	@ID				recordCounterPayment
//	@Summary		Record a counter payment
//	@Description	Record cash taken by a cashier; the payment is paid immediately and settled
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		paymentapp.CounterPaymentRequest	true	"Counter payment"
//	@Success		201		{object}	APIResponse[paymentapp.ProcessResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/payments/counter [post]
func (h *PaymentHandler) RecordCounter(c *gin.Context) {
	var req paymentapp.CounterPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	res, err := h.payments.RecordCounterPayment(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, res)
}

// List godoc
//
//	@ID				listPayments
//	@Summary		List payments
//	@Tags			payments
//	@Produce		json
//	@Param			page			query		int		false	"Page number"
//	@Param			page_size		query		int		false	"Page size"
//	@Param			student_id		query		string	false	"Student"
//	@Param			class_id		query		string	false	"Class"
//	@Param			status			query		string	false	"Status"
//	@Param			collected_by	query		string	false	"Cashier"
//	@Success		200				{object}	ListResponse[paymentapp.PaymentResponse]
//	@Failure		400				{object}	ErrorResponse
//	@Router			/payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	h.list(c, h.payments.List)
}

// ListUnsettled godoc
//
//	@ID				listUnsettledPayments
//	@Summary		List unsettled payments
//	@Description	Paid payments whose enrollment has not been materialized
//	@Tags			payments
//	@Produce		json
//	@Param			page		query		int	false	"Page number"
//	@Param			page_size	query		int	false	"Page size"
//	@Success		200			{object}	ListResponse[paymentapp.PaymentResponse]
//	@Router			/payments/unsettled [get]
func (h *PaymentHandler) ListUnsettled(c *gin.Context) {
	h.list(c, h.payments.ListUnsettled)
}

func (h *PaymentHandler) list(c *gin.Context, fetch func(context.Context, paymentapp.PaymentListFilter) ([]paymentapp.PaymentResponse, int64, error)) {
	var filter paymentapp.PaymentListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	list, total, err := fetch(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	page := filter.ToDomain()
	h.SuccessWithMeta(c, list, total, page.Page, page.PageSize)
}

// Get godoc
//
//	@ID				getPayment
//	@Summary		Get a payment by transaction id
//	@Tags			payments
//	@Produce		json
//	@Param			txid	path		string	true	"Transaction ID"
//	@Success		200		{object}	APIResponse[paymentapp.PaymentResponse]
//	@Failure		404		{object}	ErrorResponse
//	@Router			/payments/{txid} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	p, err := h.payments.Get(c.Request.Context(), c.Param("txid"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, p)
}

// Submit godoc
//
//	@ID				submitPayment
//	@Summary		Submit a payment to the gateway
//	@Tags			payments
//	@Produce		json
//	@Param			txid	path		string	true	"Transaction ID"
//	@Success		200		{object}	APIResponse[paymentapp.PaymentResponse]
//	@Failure		409		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Router			/payments/{txid}/submit [post]
func (h *PaymentHandler) Submit(c *gin.Context) {
	p, err := h.payments.Submit(c.Request.Context(), c.Param("txid"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, p)
}

// Process godoc
//
//	@ID				processPayment
//	@Summary		Apply a gateway result
//	@Description	Operator entry of a gateway outcome. Results for finished payments are acknowledged without effect.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			txid	path		string							true	"Transaction ID"
//	@Param			request	body		paymentapp.ProcessPaymentRequest	true	"Gateway result"
//	@Success		200		{object}	APIResponse[paymentapp.ProcessResult]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/payments/{txid}/process [post]
func (h *PaymentHandler) Process(c *gin.Context) {
	var req paymentapp.ProcessPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	txid := c.Param("txid")
	res, err := h.payments.Process(c.Request.Context(), txid, req.ToGatewayResult(txid))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, res)
}

// Cancel godoc
//
//	@ID				cancelPayment
//	@Summary		Cancel a payment before submission
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			txid	path		string							true	"Transaction ID"
//	@Param			request	body		paymentapp.CancelPaymentRequest	false	"Reason"
//	@Success		200		{object}	APIResponse[paymentapp.PaymentResponse]
//	@Failure		409		{object}	ErrorResponse
//	@Router			/payments/{txid}/cancel [post]
func (h *PaymentHandler) Cancel(c *gin.Context) {
	var req paymentapp.CancelPaymentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	p, err := h.payments.Cancel(c.Request.Context(), c.Param("txid"), req.Reason)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, p)
}

// Redrive godoc
//
//	@ID				redrivePayment
//	@Summary		Retry settlement of an unsettled payment
//	@Tags			payments
//	@Produce		json
//	@Param			txid	path		string	true	"Transaction ID"
//	@Success		200		{object}	APIResponse[paymentapp.ProcessResult]
//	@Failure		409		{object}	ErrorResponse
//	@Router			/payments/{txid}/redrive [post]
func (h *PaymentHandler) Redrive(c *gin.Context) {
	res, err := h.payments.Redrive(c.Request.Context(), c.Param("txid"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, res)
}

// RedriveBatch godoc
//
//	@ID				redriveUnsettledPayments
//	@Summary		Re-drive one batch of unsettled payments
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RedriveBatchRequest	false	"Batch size"
//	@Success		200		{object}	APIResponse[paymentapp.RedriveSummary]
//	@Router			/payments/redrive [post]
func (h *PaymentHandler) RedriveBatch(c *gin.Context) {
	req := RedriveBatchRequest{BatchSize: defaultRedriveBatch}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}
	if req.BatchSize == 0 {
		req.BatchSize = defaultRedriveBatch
	}

	summary, err := h.payments.RedriveUnsettled(c.Request.Context(), req.BatchSize)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, summary)
}
