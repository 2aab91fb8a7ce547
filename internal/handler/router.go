package handler

import (
	"net/http"

	"clinic/backend/helper"
	"clinic/backend/internal/middleware"
	"clinic/backend/internal/model"

	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	AdminRole   string
	CORSOrigins []string
}

// NewRouter mounts every API route on a fresh engine.
func (h *Handler) NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(h.log), middleware.Logger(h.log), middleware.CORS(cfg.CORSOrigins))
	r.NoRoute(func(c *gin.Context) {
		helper.SendError(c, http.StatusNotFound, helper.CodeNotFound, "route not found")
	})

	r.GET("/ping", Ping)
	api := r.Group("/api")
	api.GET("/health", h.Health)

	adminRole := cfg.AdminRole
	if adminRole == "" {
		adminRole = model.RoleAdmin
	}
	staff := []string{adminRole, model.RoleDoctor, model.RoleReceptionist}
	admin := middleware.RequireRole(adminRole)

	if h.svc.Auth == nil {
		return r
	}
	authed := middleware.Auth(h.svc.Auth)

	auth := api.Group("/auth")
	auth.POST("/register", middleware.OptionalAuth(h.svc.Auth), h.RegisterHandler)
	auth.POST("/login", h.LoginHandler)
	auth.GET("/verify", authed, h.VerifyHandler)
	auth.GET("/system-status", h.SystemStatusHandler)

	if h.svc.DB != nil {
		db := api.Group("/database", authed, admin)
		db.GET("/tables", h.ListTablesHandler)
		db.GET("/tables/:tableName", h.TableDataHandler)
		db.POST("/tables/:tableName", h.InsertRecordHandler)
		db.PUT("/tables/:tableName/:id", h.UpdateRecordHandler)
		db.DELETE("/tables/:tableName/:id", h.DeleteRecordHandler)
		db.POST("/query", h.QueryHandler)
		db.POST("/cleanup", h.CleanupHandler)
		db.GET("/stats", h.StatsHandler)
		db.GET("/search", h.SearchHandler)
	}

	if h.svc.Bookings != nil {
		bookings := api.Group("/bookings")
		bookings.POST("", h.CreateBookingHandler)
		bookings.GET("", authed, middleware.RequireRole(staff...), h.ListBookingsHandler)
		bookings.GET("/:id", authed, middleware.RequireRole(staff...), h.GetBookingHandler)
		bookings.PATCH("/:id/status", authed, middleware.RequireRole(staff...), h.UpdateBookingStatusHandler)

		appts := api.Group("/appointments")
		appts.GET("/find/:appointmentNumber", h.FindAppointmentHandler)
		appts.POST("/cleanup", authed, admin, h.CleanupAppointmentsHandler)

		api.GET("/patients", authed, middleware.RequireRole(staff...), h.ListPatientsHandler)
	}

	if h.svc.Billing != nil {
		tx := api.Group("/transactions", authed, middleware.RequireRole(staff...))
		tx.POST("", h.CreateTransactionHandler)
		tx.GET("", h.ListTransactionsHandler)
		tx.GET("/stats", h.TransactionStatsHandler)

		pay := api.Group("/payments", authed, middleware.RequireRole(staff...))
		pay.POST("", h.CreatePaymentHandler)
		pay.GET("", h.ListPaymentsHandler)
		pay.GET("/stats/summary", h.PaymentSummaryHandler)
		pay.GET("/:id", h.GetPaymentHandler)
		pay.PUT("/:id", h.UpdatePaymentHandler)
		pay.DELETE("/:id", admin, h.DeletePaymentHandler)
	}

	if h.svc.Notifications != nil {
		n := api.Group("/notifications", authed)
		n.GET("/email-settings", admin, h.GetEmailSettingsHandler)
		n.POST("/email-settings", admin, h.SaveEmailSettingsHandler)
		n.POST("/send-test-email", admin, h.SendTestEmailHandler)
		n.POST("/send-appointment-notification", middleware.RequireRole(staff...), h.SendAppointmentNotificationHandler)
		n.GET("/logs", middleware.RequireRole(staff...), h.NotificationLogsHandler)
		n.GET("/stats", middleware.RequireRole(staff...), h.NotificationStatsHandler)
	}

	if h.svc.Analysis != nil {
		ai := api.Group("/ai-analysis", authed)
		ai.POST("/analyze-symptoms", h.AnalyzeSymptomsHandler)
		ai.GET("/patient/:patientId", h.PatientAnalysesHandler)
		ai.GET("/report/:analysisId", h.AnalysisReportHandler)
		ai.GET("/statistics", h.AnalysisStatisticsHandler)
	}

	return r
}
