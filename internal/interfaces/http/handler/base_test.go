package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuitionhub/backend/internal/domain/shared"
)

func TestHandleDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", shared.NewValidationError("bad"), http.StatusBadRequest, shared.CodeValidation},
		{"not found", shared.NewNotFoundError("missing"), http.StatusNotFound, shared.CodeNotFound},
		{"invalid state", shared.NewInvalidStateError("closed"), http.StatusConflict, shared.CodeInvalidState},
		{"immutable report", shared.ErrImmutableReport, http.StatusConflict, shared.CodeImmutableReport},
		{"negative balance", shared.ErrNegativeBalance, http.StatusConflict, shared.CodeNegativeBalance},
		{"concurrency", shared.ErrConcurrencyConflict, http.StatusConflict, shared.CodeConcurrentModification},
		{"mismatch", shared.ErrReconciliationMismatch, http.StatusConflict, shared.CodeReconciliationMismatch},
		{"unsettled", shared.ErrUnsettledPayment, http.StatusConflict, shared.CodeUnsettledPayment},
		{"gateway", shared.ErrGateway, http.StatusBadGateway, shared.CodeGateway},
		{"wrapped domain error", fmt.Errorf("outer: %w", shared.NewNotFoundError("inner")), http.StatusNotFound, shared.CodeNotFound},
		{"plain error", errors.New("db exploded"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			w, resp := serve(t, func(r *gin.Engine) {
				r.GET("/x", func(c *gin.Context) { h.HandleDomainError(c, tt.err) })
			}, http.MethodGet, "/x", nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.RequestID)
		})
	}
}

func TestHandleDomainError_HidesInternalMessage(t *testing.T) {
	h := &BaseHandler{}
	_, resp := serve(t, func(r *gin.Engine) {
		r.GET("/x", func(c *gin.Context) { h.HandleDomainError(c, errors.New("password=hunter2")) })
	}, http.MethodGet, "/x", nil)

	require.NotNil(t, resp.Error)
	assert.NotContains(t, resp.Error.Message, "hunter2")
}

func TestParseUUIDParam(t *testing.T) {
	h := &EnrollmentHandler{}
	w, resp := serve(t, func(r *gin.Engine) {
		r.GET("/enrollments/:id", h.Get)
	}, http.MethodGet, "/enrollments/not-a-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
}
