package model

import "time"

const (
	NotifyConfirmation = "confirmation"
	NotifyReminder     = "reminder"
	NotifyCancellation = "cancellation"
	NotifyTest         = "test"
)

const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)

// BookingNotice carries what every channel needs to describe an appointment.
type BookingNotice struct {
	PatientName     string `json:"patientName"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	AppointmentDate string `json:"appointmentDate"`
	AppointmentTime string `json:"appointmentTime"`
	DoctorName      string `json:"doctorName"`
	Service         string `json:"service"`
	BookingNumber   string `json:"bookingNumber"`
	Notes           string `json:"notes,omitempty"`
}

type DispatchResult struct {
	SMS      bool `json:"sms"`
	WhatsApp bool `json:"whatsapp"`
	Email    bool `json:"email"`
}

type EmailSettings struct {
	ID          int64  `json:"id,omitempty"`
	Enabled     bool   `json:"enabled"`
	Service     string `json:"service"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Secure      bool   `json:"secure"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
	FromName    string `json:"from_name"`
	FromAddress string `json:"-"`
	HasPassword bool   `json:"hasPassword"`
}

type AppointmentNotificationRequest struct {
	Type            string `json:"type"`
	AppointmentID   string `json:"appointmentId"`
	PatientEmail    string `json:"patientEmail"`
	PatientName     string `json:"patientName"`
	AppointmentDate string `json:"appointmentDate"`
	AppointmentTime string `json:"appointmentTime"`
	DoctorName      string `json:"doctorName"`
	Notes           string `json:"notes"`
}

type EmailLog struct {
	ID               int64      `json:"id"`
	NotificationType string     `json:"notification_type"`
	RecipientEmail   string     `json:"recipient_email"`
	RecipientName    *string    `json:"recipient_name"`
	AppointmentID    *string    `json:"appointment_id"`
	Subject          string     `json:"subject"`
	DeliveryStatus   string     `json:"delivery_status"`
	MessageID        *string    `json:"message_id"`
	ErrorMessage     *string    `json:"error_message"`
	SentAt           *time.Time `json:"sent_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

type TypeStats struct {
	NotificationType string `json:"notification_type"`
	Total            int64  `json:"total"`
	Successful       int64  `json:"successful"`
	Failed           int64  `json:"failed"`
}

type NotificationSummary struct {
	Total      int64       `json:"total"`
	Successful int64       `json:"successful"`
	Failed     int64       `json:"failed"`
	ByType     []TypeStats `json:"byType"`
}
