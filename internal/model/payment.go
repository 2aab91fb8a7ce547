package model

import "time"

const (
	TxPending = "pending"
	TxPartial = "partial"
	TxPaid    = "paid"
)

type Transaction struct {
	ID              int64     `json:"id"`
	PatientName     string    `json:"patient_name"`
	ServiceName     string    `json:"service_name"`
	TotalAmount     float64   `json:"total_amount"`
	PaidAmount      float64   `json:"paid_amount"`
	RemainingAmount float64   `json:"remaining_amount"`
	Status          string    `json:"status"`
	Notes           *string   `json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
}

// TransactionStatus derives the billing status from the paid amount.
func TransactionStatus(total, paid float64) string {
	switch {
	case paid <= 0:
		return TxPending
	case paid >= total:
		return TxPaid
	default:
		return TxPartial
	}
}

type TransactionRequest struct {
	PatientName string  `json:"patient_name"`
	ServiceName string  `json:"service_name"`
	TotalAmount float64 `json:"total_amount"`
	Notes       string  `json:"notes"`
}

type TransactionStats struct {
	TotalRevenue      float64 `json:"total_revenue"`
	MonthlyRevenue    float64 `json:"monthly_revenue"`
	CompletedPayments int64   `json:"completed_payments"`
	PendingAmount     float64 `json:"pending_amount"`
}

type Payment struct {
	ID            int64     `json:"id"`
	PaymentNumber string    `json:"payment_number"`
	TransactionID *int64    `json:"transaction_id"`
	PatientName   string    `json:"patient_name"`
	Amount        float64   `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	ServiceName   *string   `json:"service_name"`
	Notes         *string   `json:"notes"`
	PaymentDate   time.Time `json:"payment_date"`
}

type PaymentRequest struct {
	TransactionID *int64  `json:"transaction_id"`
	PatientName   string  `json:"patient_name"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"payment_method"`
	Notes         string  `json:"notes"`
	ServiceName   string  `json:"service_name"`
}

// PaymentUpdate changes only the fields that are set.
type PaymentUpdate struct {
	Amount        *float64 `json:"amount"`
	PaymentMethod *string  `json:"payment_method"`
	Notes         *string  `json:"notes"`
}

type PaymentFilter struct {
	Page          int
	Limit         int
	PatientName   string
	Method        string
	TransactionID *int64
	DateFrom      string
	DateTo        string
}

type PaymentPage struct {
	Payments []Payment `json:"data"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Total    int64     `json:"total"`
	Pages    int64     `json:"pages"`
}

type MethodTotal struct {
	Method string  `json:"payment_method"`
	Count  int64   `json:"count"`
	Total  float64 `json:"total"`
}

type PaymentSummary struct {
	TotalPayments int64         `json:"total_payments"`
	TotalAmount   float64       `json:"total_amount"`
	TodayAmount   float64       `json:"today_amount"`
	ByMethod      []MethodTotal `json:"by_method"`
}
