package handler

import (
	"net/http"

	"clinic/backend/helper"
	"clinic/backend/internal/model"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListTablesHandler(c *gin.Context) {
	tables, err := h.svc.DB.ListTables(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]model.Table, len(tables))
	for i, t := range tables {
		out[i] = model.Table{Name: t}
	}
	helper.SendSuccess(c, out)
}

func (h *Handler) TableDataHandler(c *gin.Context) {
	req := model.TableDataRequest{
		Table:  c.Param("tableName"),
		Page:   helper.ParseIntDefault(c.Query("page"), 1, 1),
		Limit:  helper.ParseIntDefault(c.Query("limit"), model.DefaultPageLimit, 1),
		Search: c.Query("search"),
	}

	data, err := h.svc.DB.GetTableData(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, data)
}

func (h *Handler) InsertRecordHandler(c *gin.Context) {
	fields, ok := decodeFields(c)
	if !ok {
		return
	}

	res, err := h.svc.DB.InsertRecord(c.Request.Context(), c.Param("tableName"), fields)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, res)
}

func (h *Handler) UpdateRecordHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	fields, ok := decodeFields(c)
	if !ok {
		return
	}

	res, err := h.svc.DB.UpdateRecord(c.Request.Context(), c.Param("tableName"), id, fields)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, res)
}

func (h *Handler) DeleteRecordHandler(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.svc.DB.DeleteRecord(c.Request.Context(), c.Param("tableName"), id)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, res)
}

func (h *Handler) StatsHandler(c *gin.Context) {
	stats, err := h.svc.DB.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, stats)
}

func (h *Handler) SearchHandler(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		invalidRequest(c, "missing 'q' query parameter")
		return
	}
	limit := helper.ParseIntDefault(c.Query("limit"), 50, 1)

	hits, err := h.svc.DB.Search(c.Request.Context(), q, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": hits, "count": len(hits)})
}
