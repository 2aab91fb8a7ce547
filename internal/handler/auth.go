package handler

import (
	"net/http"

	"clinic/backend/helper"
	"clinic/backend/internal/middleware"
	"clinic/backend/internal/model"

	"github.com/gin-gonic/gin"
)

func (h *Handler) RegisterHandler(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "Invalid request")
		return
	}

	var actorRole string
	if actor, ok := middleware.CurrentUser(c); ok {
		actorRole = actor.Role
	}
	user, err := h.svc.Auth.Register(c.Request.Context(), req, actorRole)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "User registered successfully", "user": user})
}

func (h *Handler) LoginHandler(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "Invalid request")
		return
	}

	res, err := h.svc.Auth.Login(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, res)
}

func (h *Handler) VerifyHandler(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		helper.SendError(c, http.StatusUnauthorized, helper.CodeUnauthorized, "authentication required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

func (h *Handler) SystemStatusHandler(c *gin.Context) {
	status, err := h.svc.Auth.SystemStatus(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, status)
}
