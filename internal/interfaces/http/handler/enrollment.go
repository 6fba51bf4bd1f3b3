package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	enrollmentapp "github.com/tuitionhub/backend/internal/application/enrollment"
)

// EnrollmentService reads and cancels materialized enrollments
type EnrollmentService interface {
	Get(ctx context.Context, id uuid.UUID) (*enrollmentapp.EnrollmentResponse, error)
	ListForStudent(ctx context.Context, studentID uuid.UUID) ([]enrollmentapp.EnrollmentResponse, error)
	Cancel(ctx context.Context, id uuid.UUID) (*enrollmentapp.EnrollmentResponse, error)
}

// EnrollmentHandler handles enrollment endpoints
type EnrollmentHandler struct {
	BaseHandler
	enrollments EnrollmentService
}

// NewEnrollmentHandler creates a new EnrollmentHandler
func NewEnrollmentHandler(enrollments EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// EnrollmentListQuery selects a student's enrollments
type EnrollmentListQuery struct {
	StudentID *uuid.UUID `form:"student_id" binding:"required"`
}

// List godoc
//
//	@ID				listEnrollments
//	@Summary		List a student's enrollments
//	@Tags			enrollments
//	@Produce		json
//	@Param			student_id	query		string	true	"Student"
//	@Success		200			{object}	APIResponse[[]enrollmentapp.EnrollmentResponse]
//	@Failure		400			{object}	ErrorResponse
//	@Router			/enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	var q EnrollmentListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	list, err := h.enrollments.ListForStudent(c.Request.Context(), *q.StudentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, list)
}

// Get godoc
//
//	@ID				getEnrollment
//	@Summary		Get an enrollment with its payment history
//	@Tags			enrollments
//	@Produce		json
//	@Param			id	path		string	true	"Enrollment ID"
//	@Success		200	{object}	APIResponse[enrollmentapp.EnrollmentResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Router			/enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	e, err := h.enrollments.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, e)
}

// Cancel godoc
//
//	@ID				cancelEnrollment
//	@Summary		Cancel an enrollment
//	@Tags			enrollments
//	@Produce		json
//	@Param			id	path		string	true	"Enrollment ID"
//	@Success		200	{object}	APIResponse[enrollmentapp.EnrollmentResponse]
//	@Failure		404	{object}	ErrorResponse
//	@Failure		409	{object}	ErrorResponse
//	@Router			/enrollments/{id}/cancel [post]
func (h *EnrollmentHandler) Cancel(c *gin.Context) {
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	e, err := h.enrollments.Cancel(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, e)
}
