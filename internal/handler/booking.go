package handler

import (
	"net/http"

	"clinic/backend/helper"
	"clinic/backend/internal/model"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateBookingHandler(c *gin.Context) {
	var req model.BookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "Invalid request")
		return
	}

	res, err := h.svc.Bookings.CreateBooking(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Booking created successfully", "data": res})
}

func (h *Handler) ListBookingsHandler(c *gin.Context) {
	bookings, err := h.svc.Bookings.ListBookings(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, bookings)
}

func (h *Handler) GetBookingHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	booking, err := h.svc.Bookings.GetBooking(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, booking)
}

func (h *Handler) UpdateBookingStatusHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "Invalid request")
		return
	}

	if err := h.svc.Bookings.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Status updated", "data": gin.H{"id": id, "status": req.Status}})
}

func (h *Handler) FindAppointmentHandler(c *gin.Context) {
	appt, err := h.svc.Bookings.FindByNumber(c.Request.Context(), c.Param("appointmentNumber"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "appointment": appt, "found": appt != nil})
}

func (h *Handler) CleanupAppointmentsHandler(c *gin.Context) {
	res, err := h.svc.Bookings.CleanupAppointments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, res)
}

func (h *Handler) ListPatientsHandler(c *gin.Context) {
	patients, err := h.svc.Bookings.ListPatients(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, patients)
}
