package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	feeapp "github.com/tuitionhub/backend/internal/application/fee"
)

// FeeQuoter prices a class for a student
type FeeQuoter interface {
	Quote(ctx context.Context, req feeapp.QuoteRequest) (*feeapp.QuoteResponse, error)
}

// FeeHandler handles fee quote endpoints
type FeeHandler struct {
	BaseHandler
	quoter FeeQuoter
}

// NewFeeHandler creates a new FeeHandler
func NewFeeHandler(quoter FeeQuoter) *FeeHandler {
	return &FeeHandler{quoter: quoter}
}

// Quote godoc
//
//	@ID				quoteFee
//	@Summary		Quote a class fee
//	@Description	Price a class for a student with card, theory and promo discounts applied
//	@Tags			fees
//	@Accept			json
//	@Produce		json
//	@Param			request	body		feeapp.QuoteRequest	true	"Quote request"
//	@Success		200		{object}	APIResponse[feeapp.QuoteResponse]
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/fees/quote [post]
func (h *FeeHandler) Quote(c *gin.Context) {
	var req feeapp.QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	quote, err := h.quoter.Quote(c.Request.Context(), req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, quote)
}
