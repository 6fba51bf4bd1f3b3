package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuitionhub/backend/internal/domain/shared"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{shared.CodeValidation, http.StatusBadRequest},
		{shared.CodeNotFound, http.StatusNotFound},
		{shared.CodeDuplicateTransaction, http.StatusConflict},
		{shared.CodeInvalidState, http.StatusConflict},
		{shared.CodeImmutableReport, http.StatusConflict},
		{shared.CodeNegativeBalance, http.StatusConflict},
		{shared.CodeConcurrentModification, http.StatusConflict},
		{shared.CodeReconciliationMismatch, http.StatusConflict},
		{shared.CodeUnsettledPayment, http.StatusConflict},
		{shared.CodeGateway, http.StatusBadGateway},
		{CodeBadRequest, http.StatusBadRequest},
		{CodeInvalidSignature, http.StatusUnauthorized},
		{CodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatus(tt.code))
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(shared.CodeNotFound, "Payment not found", "req-1")

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":{"code":"NOT_FOUND","message":"Payment not found","request_id":"req-1"}}`, string(body))
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "", []ValidationDetail{
		{Field: "student_id", Message: "This field is required"},
	})

	assert.False(t, resp.Success)
	assert.Equal(t, CodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "student_id", resp.Error.Details[0].Field)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		name      string
		total     int64
		page      int
		pageSize  int
		wantPages int
	}{
		{"exact pages", 40, 1, 20, 2},
		{"partial last page", 41, 3, 20, 3},
		{"empty", 0, 1, 20, 0},
		{"zero page size", 5, 1, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewSuccessResponseWithMeta([]int{}, tt.total, tt.page, tt.pageSize)
			assert.True(t, resp.Success)
			require.NotNil(t, resp.Meta)
			assert.Equal(t, tt.wantPages, resp.Meta.TotalPages)
			assert.Equal(t, tt.total, resp.Meta.Total)
		})
	}
}
