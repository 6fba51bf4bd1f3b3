package dto

import (
	"net/http"

	"github.com/tuitionhub/backend/internal/domain/shared"
)

// Domain error codes pass through to clients unchanged. The transport layer
// adds a few of its own.
const (
	CodeValidation       = shared.CodeValidation
	CodeNotFound         = shared.CodeNotFound
	CodeBadRequest       = "BAD_REQUEST"
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodeRequestTooLarge  = "REQUEST_TOO_LARGE"
	CodeInternal         = "INTERNAL_ERROR"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
)

var codeHTTPStatus = map[string]int{
	shared.CodeValidation:             http.StatusBadRequest,
	shared.CodeNotFound:               http.StatusNotFound,
	shared.CodeDuplicateTransaction:   http.StatusConflict,
	shared.CodeAlreadyExists:          http.StatusConflict,
	shared.CodeInvalidState:           http.StatusConflict,
	shared.CodeImmutableReport:        http.StatusConflict,
	shared.CodeNegativeBalance:        http.StatusConflict,
	shared.CodeConcurrentModification: http.StatusConflict,
	shared.CodeReconciliationMismatch: http.StatusConflict,
	shared.CodeUnsettledPayment:       http.StatusConflict,
	shared.CodeGateway:                http.StatusBadGateway,

	CodeBadRequest:       http.StatusBadRequest,
	CodeInvalidSignature: http.StatusUnauthorized,
	CodeRequestTooLarge:  http.StatusRequestEntityTooLarge,
	CodeInternal:         http.StatusInternalServerError,
	CodeUnavailable:      http.StatusServiceUnavailable,
}

// HTTPStatus returns the status for an error code; unknown codes are 500
func HTTPStatus(code string) int {
	if status, ok := codeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
