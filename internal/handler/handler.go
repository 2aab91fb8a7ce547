package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"clinic/backend/helper"
	"clinic/backend/internal/middleware"
	"clinic/backend/internal/model"
	"clinic/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type AuthAPI interface {
	middleware.TokenVerifier
	Register(ctx context.Context, req model.RegisterRequest, actorRole string) (*model.User, error)
	Login(ctx context.Context, req model.LoginRequest) (*model.LoginResult, error)
	SystemStatus(ctx context.Context) (*model.SystemStatus, error)
}

type BookingAPI interface {
	CreateBooking(ctx context.Context, req model.BookingRequest) (*model.BookingResult, error)
	ListBookings(ctx context.Context) ([]model.Appointment, error)
	GetBooking(ctx context.Context, id int64) (*model.Appointment, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
	FindByNumber(ctx context.Context, number string) (*model.Appointment, error)
	CleanupAppointments(ctx context.Context) (*model.AppointmentCleanupResult, error)
	ListPatients(ctx context.Context) ([]model.Patient, error)
}

type BillingAPI interface {
	CreateTransaction(ctx context.Context, req model.TransactionRequest) (*model.Transaction, error)
	ListTransactions(ctx context.Context) ([]model.Transaction, error)
	TransactionStats(ctx context.Context) (*model.TransactionStats, error)
	CreatePayment(ctx context.Context, req model.PaymentRequest) (*model.Payment, error)
	GetPayment(ctx context.Context, id int64) (*model.Payment, error)
	UpdatePayment(ctx context.Context, id int64, req model.PaymentUpdate) (*model.Payment, error)
	ListPayments(ctx context.Context, f model.PaymentFilter) (*model.PaymentPage, error)
	DeletePayment(ctx context.Context, id int64) error
	PaymentSummary(ctx context.Context) (*model.PaymentSummary, error)
}

type NotificationAPI interface {
	EmailSettings(ctx context.Context) (*model.EmailSettings, error)
	SaveEmailSettings(ctx context.Context, in model.EmailSettings) (*model.EmailSettings, error)
	SendTestEmail(ctx context.Context, to string) error
	SendAppointmentEmail(ctx context.Context, kind string, n model.BookingNotice) error
	Logs(ctx context.Context, page, limit int) ([]model.EmailLog, int64, error)
	Stats(ctx context.Context) (*model.NotificationSummary, error)
}

type AnalysisAPI interface {
	AnalyzeSymptoms(ctx context.Context, req model.SymptomAnalysisRequest) (*model.Analysis, *model.Diagnosis, error)
	PatientAnalyses(ctx context.Context, patientID int64) ([]model.Analysis, error)
	Report(ctx context.Context, analysisID int64) (*model.AnalysisReport, error)
	Statistics(ctx context.Context) (*model.AnalysisStats, error)
}

// Pinger reports database reachability for the health check.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services groups what the handlers depend on. Nil members leave their
// routes unmounted.
type Services struct {
	DB            service.DBClient
	Pinger        Pinger
	Auth          AuthAPI
	Bookings      BookingAPI
	Billing       BillingAPI
	Notifications NotificationAPI
	Analysis      AnalysisAPI
}

type Handler struct {
	svc Services
	log zerolog.Logger
}

func New(svc Services, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log.With().Str("component", "http").Logger()}
}

// respondError maps service errors onto status codes and the error envelope.
func respondError(c *gin.Context, err error) {
	c.Error(err)

	var engine *service.EngineError
	switch {
	case errors.Is(err, service.ErrInvalidTable):
		helper.SendError(c, http.StatusBadRequest, helper.CodeInvalidTable, err.Error())
	case errors.Is(err, service.ErrNoWritableFields):
		helper.SendError(c, http.StatusBadRequest, helper.CodeNoWritableFields, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		helper.SendError(c, http.StatusBadRequest, helper.CodeInvalidInput, err.Error())
	case errors.Is(err, service.ErrUnauthorized):
		helper.SendError(c, http.StatusUnauthorized, helper.CodeUnauthorized, err.Error())
	case errors.Is(err, service.ErrForbiddenStatement):
		helper.SendError(c, http.StatusForbidden, helper.CodeForbiddenStatement, err.Error())
	case errors.Is(err, service.ErrForbidden):
		helper.SendError(c, http.StatusForbidden, helper.CodeForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		helper.SendError(c, http.StatusNotFound, helper.CodeNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		helper.SendError(c, http.StatusConflict, helper.CodeConflict, err.Error())
	case errors.Is(err, service.ErrPreservedRecordMissing):
		helper.SendError(c, http.StatusInternalServerError, helper.CodePreservedMissing, err.Error())
	case errors.Is(err, service.ErrInvariantViolation):
		helper.SendError(c, http.StatusInternalServerError, helper.CodeInvariantViolation, err.Error())
	case errors.As(err, &engine):
		helper.SendError(c, http.StatusInternalServerError, helper.CodeEngineError, "database error: "+engine.Error())
	default:
		helper.SendError(c, http.StatusInternalServerError, helper.CodeInternal, "internal server error")
	}
}

func invalidRequest(c *gin.Context, msg string) {
	helper.SendError(c, http.StatusBadRequest, helper.CodeInvalidInput, msg)
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id < 1 {
		invalidRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// decodeFields reads a JSON object body, keeping numbers exact.
func decodeFields(c *gin.Context) (map[string]any, bool) {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		invalidRequest(c, "request body must be a JSON object")
		return nil, false
	}
	return fields, true
}
