package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	enrollmentapp "github.com/tuitionhub/backend/internal/application/enrollment"
	feeapp "github.com/tuitionhub/backend/internal/application/fee"
)

func TestSystemHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantState  string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewSystemHandler("tuitionhub-settlement", "test", stubPinger{err: tt.pingErr})
			r := gin.New()
			r.GET("/health", h.Health)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			var body HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantState, body.Status)
		})
	}
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("tuitionhub-settlement", "1.2.3", stubPinger{})
	w, resp := serve(t, func(r *gin.Engine) { r.GET("/system/info", h.GetSystemInfo) }, http.MethodGet, "/system/info", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "tuitionhub-settlement", data["name"])
	assert.Equal(t, "1.2.3", data["version"])
	assert.NotEmpty(t, data["go_version"])
}

func TestFeeHandler_Quote(t *testing.T) {
	studentID, classID := uuid.New(), uuid.New()
	quoter := new(MockFeeQuoter)
	quoter.On("Quote", mock.Anything, feeapp.QuoteRequest{StudentID: studentID, ClassID: classID, Collection: "speed_post"}).
		Return(&feeapp.QuoteResponse{StudentID: studentID, ClassID: classID, Pricing: "standard"}, nil)

	h := NewFeeHandler(quoter)
	w, resp := serve(t, func(r *gin.Engine) { r.POST("/fees/quote", h.Quote) }, http.MethodPost, "/fees/quote",
		map[string]any{"student_id": studentID, "class_id": classID, "collection": "speed_post"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "standard", resp.Data.(map[string]any)["pricing"])
	quoter.AssertExpectations(t)
}

func TestEnrollmentHandler_List(t *testing.T) {
	studentID := uuid.New()

	t.Run("requires student", func(t *testing.T) {
		svc := new(MockEnrollmentService)
		h := NewEnrollmentHandler(svc)
		w, _ := serve(t, func(r *gin.Engine) { r.GET("/enrollments", h.List) }, http.MethodGet, "/enrollments", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("lists", func(t *testing.T) {
		svc := new(MockEnrollmentService)
		svc.On("ListForStudent", mock.Anything, studentID).
			Return([]enrollmentapp.EnrollmentResponse{{StudentID: studentID}}, nil)

		h := NewEnrollmentHandler(svc)
		w, resp := serve(t, func(r *gin.Engine) { r.GET("/enrollments", h.List) }, http.MethodGet,
			"/enrollments?student_id="+studentID.String(), nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, resp.Data.([]any), 1)
	})
}
