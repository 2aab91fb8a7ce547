package handler

import (
	"net/http"

	"clinic/backend/helper"
	"clinic/backend/internal/model"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetEmailSettingsHandler(c *gin.Context) {
	s, err := h.svc.Notifications.EmailSettings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, s)
}

func (h *Handler) SaveEmailSettingsHandler(c *gin.Context) {
	var req model.EmailSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "Invalid request")
		return
	}
	s, err := h.svc.Notifications.SaveEmailSettings(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email settings saved", "data": s})
}

func (h *Handler) SendTestEmailHandler(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		invalidRequest(c, "email is required")
		return
	}
	if err := h.svc.Notifications.SendTestEmail(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Test email sent"})
}

func (h *Handler) SendAppointmentNotificationHandler(c *gin.Context) {
	var req model.AppointmentNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "Invalid request")
		return
	}
	if req.Type == "" || req.PatientEmail == "" || req.PatientName == "" {
		invalidRequest(c, "type, patientEmail and patientName are required")
		return
	}

	notice := model.BookingNotice{
		PatientName:     req.PatientName,
		Email:           req.PatientEmail,
		AppointmentDate: req.AppointmentDate,
		AppointmentTime: req.AppointmentTime,
		DoctorName:      req.DoctorName,
		BookingNumber:   req.AppointmentID,
		Notes:           req.Notes,
	}
	if err := h.svc.Notifications.SendAppointmentEmail(c.Request.Context(), req.Type, notice); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification sent"})
}

func (h *Handler) NotificationLogsHandler(c *gin.Context) {
	page := helper.ParseIntDefault(c.Query("page"), 1, 1)
	limit := helper.ParseIntDefault(c.Query("limit"), model.DefaultPageLimit, 1)
	if limit > model.MaxPageLimit {
		limit = model.MaxPageLimit
	}

	logs, total, err := h.svc.Notifications.Logs(c.Request.Context(), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    logs,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
			"pages": helper.TotalPages(total, int64(limit)),
		},
	})
}

func (h *Handler) NotificationStatsHandler(c *gin.Context) {
	stats, err := h.svc.Notifications.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, stats)
}
