package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	paymentapp "github.com/tuitionhub/backend/internal/application/payment"
	"github.com/tuitionhub/backend/internal/interfaces/http/dto"
)

// SignatureHeader carries the gateway's HMAC over the raw callback body
const SignatureHeader = "X-Signature"

// CallbackProcessor verifies and applies a raw gateway callback
type CallbackProcessor interface {
	HandleCallback(ctx context.Context, body []byte, signature string) (*paymentapp.CallbackResult, error)
}

// PaymentCallbackHandler receives gateway webhooks. The gateway authenticates
// with a body signature, so the route sits outside any auth.
type PaymentCallbackHandler struct {
	BaseHandler
	callbacks CallbackProcessor
}

// NewPaymentCallbackHandler creates a new PaymentCallbackHandler
func NewPaymentCallbackHandler(callbacks CallbackProcessor) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{callbacks: callbacks}
}

// Handle godoc
//
//	@ID				handlePaymentCallback
//	@Summary		Receive a gateway callback
//	@Description	Verify the signed body and apply the payment outcome. Redelivered callbacks are acknowledged with already_processed.
//	@Tags			payment-callbacks
//	@Accept			json
//	@Produce		json
//	@Param			X-Signature	header		string	true	"Hex HMAC-SHA256 of the body"
//	@Success		200			{object}	APIResponse[paymentapp.CallbackResult]
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Router			/payment-callbacks [post]
func (h *PaymentCallbackHandler) Handle(c *gin.Context) {
	// The signature covers the exact bytes, so the body is read raw
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.CodeRequestTooLarge, "Callback body too large")
			return
		}
		h.BadRequest(c, "Failed to read request body")
		return
	}

	result, err := h.callbacks.HandleCallback(c.Request.Context(), body, c.GetHeader(SignatureHeader))
	if err != nil {
		if isSignatureFailure(err) {
			h.Error(c, http.StatusUnauthorized, dto.CodeInvalidSignature, "Callback signature verification failed")
			return
		}
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, result)
}

// isSignatureFailure looks for the verification sentinel by identity.
// errors.Is would also match every other VALIDATION_FAILED error.
func isSignatureFailure(err error) bool {
	for ; err != nil; err = errors.Unwrap(err) {
		if err == error(paymentapp.ErrCallbackVerificationFailed) {
			return true
		}
	}
	return false
}
