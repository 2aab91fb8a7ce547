package handler

import (
	"net/http"
	"strconv"

	"clinic/backend/helper"
	"clinic/backend/internal/model"

	"github.com/gin-gonic/gin"
)

func (h *Handler) CreateTransactionHandler(c *gin.Context) {
	var req model.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "Invalid request")
		return
	}
	tx, err := h.svc.Billing.CreateTransaction(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendCreated(c, tx)
}

func (h *Handler) ListTransactionsHandler(c *gin.Context) {
	txs, err := h.svc.Billing.ListTransactions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, txs)
}

func (h *Handler) TransactionStatsHandler(c *gin.Context) {
	stats, err := h.svc.Billing.TransactionStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, stats)
}

func (h *Handler) CreatePaymentHandler(c *gin.Context) {
	var req model.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "Invalid request")
		return
	}
	p, err := h.svc.Billing.CreatePayment(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendCreated(c, p)
}

func (h *Handler) ListPaymentsHandler(c *gin.Context) {
	f := model.PaymentFilter{
		Page:        helper.ParseIntDefault(c.Query("page"), 1, 1),
		Limit:       helper.ParseIntDefault(c.Query("limit"), model.DefaultPageLimit, 1),
		PatientName: c.Query("patient_name"),
		Method:      c.Query("method"),
		DateFrom:    c.Query("date_from"),
		DateTo:      c.Query("date_to"),
	}
	if v := c.Query("transaction_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			invalidRequest(c, "invalid transaction_id")
			return
		}
		f.TransactionID = &id
	}

	page, err := h.svc.Billing.ListPayments(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    page.Payments,
		"pagination": gin.H{
			"page":  page.Page,
			"limit": page.Limit,
			"total": page.Total,
			"pages": page.Pages,
		},
	})
}

func (h *Handler) GetPaymentHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Billing.GetPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, p)
}

func (h *Handler) UpdatePaymentHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.PaymentUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "Invalid request")
		return
	}
	p, err := h.svc.Billing.UpdatePayment(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, p)
}

func (h *Handler) DeletePaymentHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Billing.DeletePayment(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Payment deleted"})
}

func (h *Handler) PaymentSummaryHandler(c *gin.Context) {
	sum, err := h.svc.Billing.PaymentSummary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, sum)
}
