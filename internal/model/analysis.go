package model

import "time"

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

type SymptomAnalysisRequest struct {
	Symptoms  []string `json:"symptoms"`
	PatientID *int64   `json:"patientId"`
	DoctorID  *int64   `json:"doctorId"`
	PainLevel int      `json:"painLevel"`
}

type Diagnosis struct {
	Diagnosis       string   `json:"diagnosis"`
	Confidence      float64  `json:"confidence"`
	Severity        string   `json:"severity"`
	Recommendations []string `json:"recommendations"`
	Urgent          bool     `json:"urgent"`
}

type Analysis struct {
	ID               int64     `json:"id"`
	AnalysisNumber   string    `json:"analysis_number"`
	PatientID        *int64    `json:"patient_id"`
	DoctorID         *int64    `json:"doctor_id"`
	AnalysisType     string    `json:"analysis_type"`
	Diagnosis        string    `json:"diagnosis"`
	ConfidenceScore  float64   `json:"confidence_score"`
	SeverityLevel    string    `json:"severity_level"`
	Recommendations  []string  `json:"recommendations"`
	Status           string    `json:"status"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

type AnalysisReport struct {
	ID         int64     `json:"id"`
	AnalysisID int64     `json:"analysis_id"`
	ReportType string    `json:"report_type"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Insights   []string  `json:"insights"`
	Urgent     bool      `json:"urgency_indicators"`
	CreatedAt  time.Time `json:"created_at"`
	Diagnosis  string    `json:"diagnosis"`
	Severity   string    `json:"severity_level"`
}

type CountBy struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type AnalysisStats struct {
	Total             int64     `json:"total"`
	Today             int64     `json:"today"`
	Completed         int64     `json:"completed"`
	AverageConfidence float64   `json:"averageConfidence"`
	ByType            []CountBy `json:"byType"`
	BySeverity        []CountBy `json:"bySeverity"`
}
