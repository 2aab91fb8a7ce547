package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"clinic/backend/internal/model"

	"github.com/rs/zerolog"
)

const analysisTypeSymptoms = "symptoms"

type symptomRule struct {
	keywords        []string
	diagnosis       string
	severity        string
	confidence      float64
	recommendations []string
}

// symptomRules are checked in order; the rule with the most keyword hits wins.
var symptomRules = []symptomRule{
	{
		keywords:   []string{"swelling", "abscess", "pus", "fever"},
		diagnosis:  "Dental abscess",
		severity:   model.SeverityHigh,
		confidence: 0.85,
		recommendations: []string{
			"Seek urgent dental care",
			"Do not attempt to drain the swelling",
			"Rinse with warm salt water",
		},
	},
	{
		keywords:   []string{"toothache", "pain", "throbbing", "sensitivity", "cold", "hot", "sweet"},
		diagnosis:  "Dental caries with pulp sensitivity",
		severity:   model.SeverityMedium,
		confidence: 0.78,
		recommendations: []string{
			"Book an examination and X-ray",
			"Avoid very hot, cold and sugary food",
			"Use desensitising toothpaste",
		},
	},
	{
		keywords:   []string{"bleeding", "gums", "gum", "bad breath", "red"},
		diagnosis:  "Gingivitis",
		severity:   model.SeverityMedium,
		confidence: 0.8,
		recommendations: []string{
			"Schedule a professional cleaning",
			"Brush twice daily and floss",
			"Use an antiseptic mouthwash",
		},
	},
	{
		keywords:   []string{"jaw", "clicking", "grinding", "headache"},
		diagnosis:  "Temporomandibular joint disorder",
		severity:   model.SeverityLow,
		confidence: 0.7,
		recommendations: []string{
			"Avoid hard and chewy food",
			"Consider a night guard",
			"Apply warm compresses",
		},
	},
	{
		keywords:   []string{"broken", "chipped", "cracked", "fracture"},
		diagnosis:  "Fractured tooth",
		severity:   model.SeverityMedium,
		confidence: 0.82,
		recommendations: []string{
			"Keep any fragments and see a dentist",
			"Avoid chewing on the affected side",
		},
	},
}

var fallbackDiagnosis = symptomRule{
	diagnosis:  "General dental consultation recommended",
	severity:   model.SeverityLow,
	confidence: 0.6,
	recommendations: []string{
		"Book a routine examination",
		"Maintain good oral hygiene",
	},
}

// Diagnose maps reported symptoms to a simulated diagnosis. The result
// depends only on its inputs.
func Diagnose(symptoms []string, painLevel int) model.Diagnosis {
	text := strings.ToLower(strings.Join(symptoms, " "))

	best, bestHits := fallbackDiagnosis, 0
	for _, r := range symptomRules {
		hits := 0
		for _, k := range r.keywords {
			if strings.Contains(text, k) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = r, hits
		}
	}

	d := model.Diagnosis{
		Diagnosis:       best.diagnosis,
		Confidence:      best.confidence,
		Severity:        best.severity,
		Recommendations: slices.Clone(best.recommendations),
	}
	if bestHits > 1 {
		d.Confidence = min(0.95, d.Confidence+0.05*float64(bestHits-1))
	}
	switch {
	case painLevel >= 8:
		d.Severity = model.SeverityHigh
	case painLevel >= 5 && d.Severity == model.SeverityLow:
		d.Severity = model.SeverityMedium
	}
	d.Urgent = d.Severity == model.SeverityHigh
	if d.Urgent && !slices.Contains(d.Recommendations, "Seek urgent dental care") {
		d.Recommendations = append([]string{"Seek urgent dental care"}, d.Recommendations...)
	}
	return d
}

type AnalysisService struct {
	db   *DB
	log  zerolog.Logger
	now  func() time.Time
	intN func(n int) int
}

func NewAnalysisService(db *DB, log zerolog.Logger) *AnalysisService {
	return &AnalysisService{
		db:   db,
		log:  log.With().Str("component", "ai-analysis").Logger(),
		now:  func() time.Time { return time.Now().UTC() },
		intN: rand.IntN,
	}
}

func (s *AnalysisService) AnalyzeSymptoms(ctx context.Context, req model.SymptomAnalysisRequest) (*model.Analysis, *model.Diagnosis, error) {
	symptoms := make([]string, 0, len(req.Symptoms))
	for _, sym := range req.Symptoms {
		if sym = strings.TrimSpace(sym); sym != "" {
			symptoms = append(symptoms, sym)
		}
	}
	if len(symptoms) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one symptom is required", ErrInvalidInput)
	}
	if req.PainLevel < 0 || req.PainLevel > 10 {
		return nil, nil, fmt.Errorf("%w: painLevel must be between 0 and 10", ErrInvalidInput)
	}

	started := time.Now()
	d := Diagnose(symptoms, req.PainLevel)
	elapsed := time.Since(started).Milliseconds()

	input, err := json.Marshal(map[string]any{"symptoms": symptoms, "painLevel": req.PainLevel})
	if err != nil {
		return nil, nil, err
	}
	recs, err := json.Marshal(d.Recommendations)
	if err != nil {
		return nil, nil, err
	}
	insights, err := json.Marshal(symptoms)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	a := &model.Analysis{
		AnalysisNumber:   fmt.Sprintf("AI%s%04d", now.Format("060102150405"), s.intN(10_000)),
		PatientID:        req.PatientID,
		DoctorID:         req.DoctorID,
		AnalysisType:     analysisTypeSymptoms,
		Diagnosis:        d.Diagnosis,
		ConfidenceScore:  d.Confidence,
		SeverityLevel:    d.Severity,
		Recommendations:  d.Recommendations,
		Status:           "completed",
		ProcessingTimeMS: elapsed,
		CreatedAt:        now,
	}

	err = s.db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, s.db.Rebind(`
			INSERT INTO ai_analyses (analysis_number, patient_id, doctor_id, analysis_type, input_data, diagnosis,
				confidence_score, severity_level, recommendations, status, processing_time_ms, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			a.AnalysisNumber, optionalID(a.PatientID), optionalID(a.DoctorID), a.AnalysisType, string(input), a.Diagnosis,
			a.ConfidenceScore, a.SeverityLevel, string(recs), a.Status, a.ProcessingTimeMS, now,
		).Scan(&a.ID)
		if err != nil {
			return engineErr("store analysis", err)
		}

		content := fmt.Sprintf("Reported symptoms: %s. Likely diagnosis: %s (confidence %.0f%%, severity %s).",
			strings.Join(symptoms, ", "), d.Diagnosis, d.Confidence*100, d.Severity)
		_, err = tx.ExecContext(ctx, s.db.Rebind(`
			INSERT INTO ai_analysis_reports (analysis_id, report_type, title, content, insights, urgency_indicators, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			a.ID, "detailed", "Symptom analysis "+a.AnalysisNumber, content, string(insights), d.Urgent, now,
		)
		return engineErr("store analysis report", err)
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Info().Int64("analysis_id", a.ID).Str("severity", d.Severity).Msg("symptom analysis stored")
	return a, &d, nil
}

func optionalID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func (s *AnalysisService) PatientAnalyses(ctx context.Context, patientID int64) ([]model.Analysis, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT id, analysis_number, patient_id, doctor_id, analysis_type, COALESCE(diagnosis, ''),
			COALESCE(confidence_score, 0), COALESCE(severity_level, ''), COALESCE(recommendations, '[]'),
			status, COALESCE(processing_time_ms, 0), created_at
		FROM ai_analyses WHERE patient_id = ? ORDER BY created_at DESC, id DESC`), patientID)
	if err != nil {
		return nil, engineErr("list analyses", err)
	}
	defer rows.Close()

	out := []model.Analysis{}
	for rows.Next() {
		var (
			a                  model.Analysis
			patient, doctor    sql.NullInt64
			recommendationsRaw string
		)
		if err := rows.Scan(&a.ID, &a.AnalysisNumber, &patient, &doctor, &a.AnalysisType, &a.Diagnosis,
			&a.ConfidenceScore, &a.SeverityLevel, &recommendationsRaw, &a.Status, &a.ProcessingTimeMS, &a.CreatedAt); err != nil {
			return nil, engineErr("list analyses", err)
		}
		if patient.Valid {
			a.PatientID = &patient.Int64
		}
		if doctor.Valid {
			a.DoctorID = &doctor.Int64
		}
		a.Recommendations = decodeList(recommendationsRaw)
		out = append(out, a)
	}
	return out, engineErr("list analyses", rows.Err())
}

func (s *AnalysisService) Report(ctx context.Context, analysisID int64) (*model.AnalysisReport, error) {
	r := &model.AnalysisReport{}
	var insights, diagnosis, severity sql.NullString
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT r.id, r.analysis_id, r.report_type, r.title, r.content, r.insights, r.urgency_indicators,
			r.created_at, a.diagnosis, a.severity_level
		FROM ai_analysis_reports r
		JOIN ai_analyses a ON a.id = r.analysis_id
		WHERE r.analysis_id = ?
		ORDER BY r.id DESC LIMIT 1`), analysisID,
	).Scan(&r.ID, &r.AnalysisID, &r.ReportType, &r.Title, &r.Content, &insights, &r.Urgent,
		&r.CreatedAt, &diagnosis, &severity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr("get analysis report", err)
	}
	r.Insights = decodeList(insights.String)
	r.Diagnosis, r.Severity = diagnosis.String, severity.String
	return r, nil
}

func (s *AnalysisService) Statistics(ctx context.Context) (*model.AnalysisStats, error) {
	st := &model.AnalysisStats{}
	err := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(confidence_score), 0)
		FROM ai_analyses`), startOfDay(s.now()),
	).Scan(&st.Total, &st.Today, &st.Completed, &st.AverageConfidence)
	if err != nil {
		return nil, engineErr("analysis statistics", err)
	}
	if st.ByType, err = s.countBy(ctx, "analysis_type"); err != nil {
		return nil, err
	}
	if st.BySeverity, err = s.countBy(ctx, "severity_level"); err != nil {
		return nil, err
	}
	return st, nil
}

// countBy groups ai_analyses by one of its own columns; column is never
// caller input.
func (s *AnalysisService) countBy(ctx context.Context, column string) ([]model.CountBy, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT COALESCE(%[1]s, 'unknown'), COUNT(*) FROM ai_analyses GROUP BY %[1]s ORDER BY COUNT(*) DESC`, column))
	if err != nil {
		return nil, engineErr("analysis statistics", err)
	}
	defer rows.Close()

	out := []model.CountBy{}
	for rows.Next() {
		var c model.CountBy
		if err := rows.Scan(&c.Key, &c.Count); err != nil {
			return nil, engineErr("analysis statistics", err)
		}
		out = append(out, c)
	}
	return out, engineErr("analysis statistics", rows.Err())
}

func decodeList(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{raw}
	}
	return out
}
