package handler

import "github.com/tuitionhub/backend/internal/interfaces/http/dto"

// The envelopes below exist for the swag annotations only. At runtime every
// handler writes dto.Response.

// APIResponse is a successful response carrying T
type APIResponse[T any] struct {
	Success bool `json:"success" example:"true"`
	Data    T    `json:"data"`
}

// ListResponse is a successful paged listing
type ListResponse[T any] struct {
	Success bool      `json:"success" example:"true"`
	Data    []T       `json:"data"`
	Meta    *dto.Meta `json:"meta"`
}

// ErrorResponse is the body of every 4xx and 5xx answer
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error"`
}
