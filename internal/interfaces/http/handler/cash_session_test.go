package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	sessionapp "github.com/tuitionhub/backend/internal/application/cashsession"
	"github.com/tuitionhub/backend/internal/domain/shared"
)

func sessionRoutes(h *CashSessionHandler, rh *SessionReportHandler) func(r *gin.Engine) {
	return func(r *gin.Engine) {
		r.POST("/cash-sessions", h.Open)
		r.GET("/cash-sessions/:id", h.Get)
		r.POST("/cash-sessions/:id/cash-outs", h.CashOut)
		r.POST("/cash-sessions/:id/reports", h.GenerateReport)
		r.POST("/cash-sessions/:id/close", h.Close)
		if rh != nil {
			r.GET("/session-reports", rh.List)
			r.GET("/session-reports/:id", rh.Get)
			r.PATCH("/session-reports/:id/notes", rh.Annotate)
			r.GET("/session-reports/:id/archive", rh.Archive)
		}
	}
}

func TestCashSessionHandler_Open(t *testing.T) {
	cashierID := uuid.New()

	t.Run("opened", func(t *testing.T) {
		svc := new(MockSessionService)
		svc.On("Open", mock.Anything, mock.MatchedBy(func(req sessionapp.OpenSessionRequest) bool {
			return req.CashierID == cashierID && req.OpeningBalance.Equal(decimal.NewFromInt(1000))
		})).Return(&sessionapp.SessionResponse{ID: uuid.New(), CashierID: cashierID, Status: "open"}, nil)

		w, resp := serve(t, sessionRoutes(NewCashSessionHandler(svc), nil), http.MethodPost, "/cash-sessions",
			`{"cashier_id":"`+cashierID.String()+`","opening_balance":"1000"}`)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, "open", resp.Data.(map[string]any)["status"])
		svc.AssertExpectations(t)
	})

	t.Run("second open session", func(t *testing.T) {
		svc := new(MockSessionService)
		svc.On("Open", mock.Anything, mock.Anything).
			Return(nil, shared.NewDomainError(shared.CodeAlreadyExists, "Cashier already has an open session"))

		w, resp := serve(t, sessionRoutes(NewCashSessionHandler(svc), nil), http.MethodPost, "/cash-sessions",
			`{"cashier_id":"`+cashierID.String()+`"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, shared.CodeAlreadyExists, resp.Error.Code)
	})
}

func TestCashSessionHandler_CashOut(t *testing.T) {
	sessionID, performer := uuid.New(), uuid.New()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"accepted", nil, http.StatusCreated},
		{"overdraws drawer", shared.ErrNegativeBalance, http.StatusConflict},
		{"session closed", shared.NewInvalidStateError("Session is closed"), http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSessionService)
			call := svc.On("CashOut", mock.Anything, sessionID, mock.MatchedBy(func(req sessionapp.CashOutRequest) bool {
				return req.PerformedBy == performer && req.Amount.Equal(decimal.NewFromInt(300))
			}))
			if tt.err != nil {
				call.Return(nil, tt.err)
			} else {
				call.Return(&sessionapp.CashOutResult{}, nil)
			}

			w, _ := serve(t, sessionRoutes(NewCashSessionHandler(svc), nil), http.MethodPost,
				"/cash-sessions/"+sessionID.String()+"/cash-outs",
				`{"amount":"300","reason":"float","performed_by":"`+performer.String()+`"}`)
			assert.Equal(t, tt.wantStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestCashSessionHandler_GenerateReportDefaultsBody(t *testing.T) {
	sessionID := uuid.New()
	svc := new(MockSessionService)
	svc.On("GenerateReport", mock.Anything, sessionID, sessionapp.GenerateReportRequest{}).
		Return(&sessionapp.ReportResponse{SessionID: sessionID, ReportType: "summary"}, nil)

	w, _ := serve(t, sessionRoutes(NewCashSessionHandler(svc), nil), http.MethodPost,
		"/cash-sessions/"+sessionID.String()+"/reports", nil)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestCashSessionHandler_CloseMismatch(t *testing.T) {
	sessionID := uuid.New()
	svc := new(MockSessionService)
	svc.On("Close", mock.Anything, sessionID).Return(nil, shared.ErrReconciliationMismatch)

	w, resp := serve(t, sessionRoutes(NewCashSessionHandler(svc), nil), http.MethodPost,
		"/cash-sessions/"+sessionID.String()+"/close", nil)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, shared.CodeReconciliationMismatch, resp.Error.Code)
}

func TestSessionReportHandler(t *testing.T) {
	reportID := uuid.New()

	t.Run("final report notes are immutable", func(t *testing.T) {
		reports := new(MockReportService)
		reports.On("AnnotateReport", mock.Anything, reportID, sessionapp.AnnotateReportRequest{Notes: "late"}).
			Return(nil, shared.ErrImmutableReport)

		w, resp := serve(t, sessionRoutes(NewCashSessionHandler(nil), NewSessionReportHandler(reports, nil)),
			http.MethodPatch, "/session-reports/"+reportID.String()+"/notes", `{"notes":"late"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, shared.CodeImmutableReport, resp.Error.Code)
	})

	t.Run("list with final filter", func(t *testing.T) {
		reports := new(MockReportService)
		reports.On("ListReports", mock.Anything, mock.MatchedBy(func(f sessionapp.ReportListFilter) bool {
			return f.IsFinal != nil && *f.IsFinal
		})).Return([]sessionapp.ReportResponse{{ID: reportID, IsFinal: true}}, int64(1), nil)

		w, resp := serve(t, sessionRoutes(NewCashSessionHandler(nil), NewSessionReportHandler(reports, nil)),
			http.MethodGet, "/session-reports?is_final=true", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(1), resp.Meta.Total)
	})

	t.Run("archive link", func(t *testing.T) {
		links := new(MockArchiveLinker)
		links.On("ArchiveLink", mock.Anything, reportID).Return(&sessionapp.ArchiveLinkResponse{
			ReportID:  reportID,
			URL:       "https://s3.test/reports/x.json?sig=1",
			ExpiresAt: time.Now().Add(time.Hour),
		}, nil)

		w, resp := serve(t, sessionRoutes(NewCashSessionHandler(nil), NewSessionReportHandler(nil, links)),
			http.MethodGet, "/session-reports/"+reportID.String()+"/archive", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, resp.Data.(map[string]any)["url"], "sig=1")
	})

	t.Run("archive of interim report", func(t *testing.T) {
		links := new(MockArchiveLinker)
		links.On("ArchiveLink", mock.Anything, reportID).Return(nil, shared.NewInvalidStateError("Only final reports are archived"))

		w, _ := serve(t, sessionRoutes(NewCashSessionHandler(nil), NewSessionReportHandler(nil, links)),
			http.MethodGet, "/session-reports/"+reportID.String()+"/archive", nil)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
