package handler

import (
	"clinic/backend/helper"
	"clinic/backend/internal/model"

	"github.com/gin-gonic/gin"
)

func (h *Handler) AnalyzeSymptomsHandler(c *gin.Context) {
	var req model.SymptomAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, "Invalid request")
		return
	}

	analysis, diagnosis, err := h.svc.Analysis.AnalyzeSymptoms(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, gin.H{"analysis": analysis, "result": diagnosis})
}

func (h *Handler) PatientAnalysesHandler(c *gin.Context) {
	id, ok := paramID(c, "patientId")
	if !ok {
		return
	}
	list, err := h.svc.Analysis.PatientAnalyses(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, list)
}

func (h *Handler) AnalysisReportHandler(c *gin.Context) {
	id, ok := paramID(c, "analysisId")
	if !ok {
		return
	}
	report, err := h.svc.Analysis.Report(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, report)
}

func (h *Handler) AnalysisStatisticsHandler(c *gin.Context) {
	stats, err := h.svc.Analysis.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	helper.SendSuccess(c, stats)
}
