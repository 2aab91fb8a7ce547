package handler

import (
	"encoding/json"
	"net/http"

	"clinic/backend/helper"
	"clinic/backend/internal/model"

	"github.com/gin-gonic/gin"
)

func (h *Handler) QueryHandler(c *gin.Context) {
	var req model.QueryRequest
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		invalidRequest(c, "Invalid request")
		return
	}
	if req.Query == "" {
		invalidRequest(c, "query is required")
		return
	}

	res, err := h.svc.DB.ExecuteQuery(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, res)
}

func (h *Handler) CleanupHandler(c *gin.Context) {
	res, err := h.svc.DB.CleanupData(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("database cleanup failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database cleaned, admin account preserved",
		"data":    res,
	})
}
