package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tuitionhub/backend/internal/interfaces/http/handler"
)

// Handlers are the HTTP handlers of the settlement API
type Handlers struct {
	Fee            *handler.FeeHandler
	Payment        *handler.PaymentHandler
	Callback       *handler.PaymentCallbackHandler
	Enrollment     *handler.EnrollmentHandler
	CashSession    *handler.CashSessionHandler
	SessionReport  *handler.SessionReportHandler
	System         *handler.SystemHandler
	MetricsHandler http.Handler
}

// SettlementGroups returns the /api/v1 route groups
func SettlementGroups(h Handlers) []RouteRegistrar {
	fees := NewDomainGroup("/fees").
		POST("/quote", h.Fee.Quote)

	// Static segments are registered next to :txid; gin resolves them first
	payments := NewDomainGroup("/payments").
		POST("", h.Payment.Create).
		GET("", h.Payment.List).
		POST("/counter", h.Payment.RecordCounter).
		GET("/unsettled", h.Payment.ListUnsettled).
		POST("/redrive", h.Payment.RedriveBatch).
		GET("/:txid", h.Payment.Get).
		POST("/:txid/submit", h.Payment.Submit).
		POST("/:txid/process", h.Payment.Process).
		POST("/:txid/cancel", h.Payment.Cancel).
		POST("/:txid/redrive", h.Payment.Redrive)

	callbacks := NewDomainGroup("/payment-callbacks").
		POST("", h.Callback.Handle)

	enrollments := NewDomainGroup("/enrollments").
		GET("", h.Enrollment.List).
		GET("/:id", h.Enrollment.Get).
		POST("/:id/cancel", h.Enrollment.Cancel)

	sessions := NewDomainGroup("/cash-sessions").
		POST("", h.CashSession.Open).
		GET("/:id", h.CashSession.Get).
		POST("/:id/close", h.CashSession.Close).
		POST("/:id/cash-outs", h.CashSession.CashOut).
		POST("/:id/reports", h.CashSession.GenerateReport)

	reports := NewDomainGroup("/session-reports").
		GET("", h.SessionReport.List).
		GET("/:id", h.SessionReport.Get).
		PATCH("/:id/notes", h.SessionReport.Annotate).
		GET("/:id/archive", h.SessionReport.Archive)

	system := NewDomainGroup("/system").
		GET("/info", h.System.GetSystemInfo)

	return []RouteRegistrar{fees, payments, callbacks, enrollments, sessions, reports, system}
}

// Mount registers the health endpoints and the versioned API on engine
func Mount(engine *gin.Engine, h Handlers, opts ...Option) {
	engine.GET("/health", h.System.Health)
	if h.MetricsHandler != nil {
		engine.GET("/metrics", gin.WrapH(h.MetricsHandler))
	}
	Setup(engine, SettlementGroups(h), opts...)
}
