package model

import "time"

const (
	StatusPending   = "pending"
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var AppointmentStatuses = []string{StatusPending, StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled}

type BookingRequest struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	Service       string `json:"service"`
	Notes         string `json:"notes"`
	BookingNumber string `json:"bookingNumber"`
	DoctorName    string `json:"doctorName"`
}

type BookingResult struct {
	ID            int64  `json:"id"`
	BookingNumber string `json:"bookingNumber"`
	PatientID     int64  `json:"patientId"`
	DoctorID      int64  `json:"doctorId"`
	ServiceID     int64  `json:"serviceId"`
}

type Appointment struct {
	ID                int64     `json:"id"`
	AppointmentNumber string    `json:"appointment_number"`
	PatientID         int64     `json:"patient_id"`
	DoctorID          *int64    `json:"doctor_id"`
	ServiceID         *int64    `json:"service_id"`
	AppointmentDate   string    `json:"appointment_date"`
	AppointmentTime   string    `json:"appointment_time"`
	Status            string    `json:"status"`
	ChiefComplaint    string    `json:"chief_complaint"`
	Notes             string    `json:"notes"`
	PatientName       string    `json:"patient_name"`
	Phone             string    `json:"phone"`
	Email             string    `json:"email"`
	ServiceName       *string   `json:"service_name"`
	DoctorName        *string   `json:"doctor_name"`
	CreatedAt         time.Time `json:"created_at"`
}

type AppointmentCleanupResult struct {
	DeletedInvalid    int64 `json:"deletedInvalid"`
	DeletedDuplicates int64 `json:"deletedDuplicates"`
	TotalAppointments int64 `json:"totalAppointments"`
}

type Patient struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	PatientNumber string    `json:"patient_number"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Address       *string   `json:"address"`
	Gender        *string   `json:"gender"`
	CreatedAt     time.Time `json:"created_at"`
}
