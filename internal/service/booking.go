package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"
	"unicode"

	"clinic/backend/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	phoneCountryCode  = "967"
	defaultDoctorName = "Clinic Doctor"
	defaultDoctorMail = "doctor@clinic.local"
)

// BookingNotifier delivers booking messages outside the request path.
type BookingNotifier interface {
	DispatchBooking(ctx context.Context, n model.BookingNotice) model.DispatchResult
	ScheduleReminder(n model.BookingNotice) bool
	SendAppointmentEmail(ctx context.Context, kind string, n model.BookingNotice) error
}

type BookingService struct {
	db     *DB
	notify BookingNotifier
	log    zerolog.Logger
	now    func() time.Time
	intN   func(n int) int
	// async runs notification work; tests replace it to run inline.
	async func(fn func())
	wg    sync.WaitGroup
}

func NewBookingService(db *DB, notify BookingNotifier, log zerolog.Logger) *BookingService {
	s := &BookingService{
		db:     db,
		notify: notify,
		log:    log.With().Str("component", "bookings").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
		intN:   rand.IntN,
	}
	s.async = func(fn func()) {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			fn()
		}()
	}
	return s
}

// Wait blocks until notification work started by the service has finished
// or ctx is done. Call it before closing the database.
func (s *BookingService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NormalizePhone keeps digits only, drops leading zeros and prefixes the
// country code when missing.
func NormalizePhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return ""
	}
	if !strings.HasPrefix(digits, phoneCountryCode) {
		digits = phoneCountryCode + digits
	}
	return digits
}

func (s *BookingService) bookingNumber() string {
	return fmt.Sprintf("APP%08d", s.intN(100_000_000))
}

func (s *BookingService) CreateBooking(ctx context.Context, req model.BookingRequest) (*model.BookingResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Phone == "" || req.Date == "" || req.Time == "" || req.Service == "" {
		return nil, fmt.Errorf("%w: name, phone, date, time and service are required", ErrInvalidInput)
	}
	if _, err := time.Parse(time.DateOnly, req.Date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	phone := NormalizePhone(req.Phone)
	if phone == "" {
		return nil, fmt.Errorf("%w: invalid phone number", ErrInvalidInput)
	}
	if req.BookingNumber == "" {
		req.BookingNumber = s.bookingNumber()
	}

	res := &model.BookingResult{BookingNumber: req.BookingNumber}
	doctorName := req.DoctorName
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if res.PatientID, err = s.resolvePatient(ctx, tx, req.Name, phone, req.Email); err != nil {
			return err
		}
		if res.ServiceID, err = s.resolveService(ctx, tx, req.Service); err != nil {
			return err
		}
		var name string
		if res.DoctorID, name, err = s.resolveDoctor(ctx, tx, req.DoctorName); err != nil {
			return err
		}
		if doctorName == "" {
			doctorName = name
		}

		now := s.now()
		err = tx.QueryRowContext(ctx, s.db.Rebind(`
			INSERT INTO appointments (appointment_number, patient_id, doctor_id, service_id,
				appointment_date, appointment_time, status, chief_complaint, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			res.BookingNumber, res.PatientID, res.DoctorID, nullID(res.ServiceID),
			req.Date, req.Time, model.StatusScheduled, req.Service, nullString(req.Notes), now, now,
		).Scan(&res.ID)
		return engineErr("create appointment", err)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("appointment_id", res.ID).Str("booking_number", res.BookingNumber).Msg("booking created")

	if s.notify != nil {
		notice := model.BookingNotice{
			PatientName:     req.Name,
			Phone:           phone,
			Email:           req.Email,
			AppointmentDate: req.Date,
			AppointmentTime: req.Time,
			DoctorName:      doctorName,
			Service:         req.Service,
			BookingNumber:   res.BookingNumber,
			Notes:           req.Notes,
		}
		s.async(func() {
			ctx := context.WithoutCancel(ctx)
			result := s.notify.DispatchBooking(ctx, notice)
			s.log.Info().Str("booking_number", notice.BookingNumber).
				Bool("sms", result.SMS).Bool("whatsapp", result.WhatsApp).Bool("email", result.Email).
				Msg("booking notifications dispatched")
			s.notify.ScheduleReminder(notice)
		})
	}
	return res, nil
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// resolvePatient finds the patient by phone or email, creating the user and
// patient records when neither matches.
func (s *BookingService) resolvePatient(ctx context.Context, tx *sql.Tx, name, phone, email string) (int64, error) {
	var patientID int64
	err := tx.QueryRowContext(ctx, s.db.Rebind(`
		SELECT p.id FROM patients p
		JOIN users u ON u.id = p.user_id
		WHERE u.phone = ? OR (? <> '' AND u.email = ?)
		ORDER BY p.id LIMIT 1`), phone, email, email,
	).Scan(&patientID)
	if err == nil {
		return patientID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, engineErr("find patient", err)
	}

	if email == "" {
		email = "patient" + phone + "@clinic.local"
	}
	var taken int64
	if err := tx.QueryRowContext(ctx, s.db.Rebind(`SELECT COUNT(*) FROM users WHERE email = ?`), email).Scan(&taken); err != nil {
		return 0, engineErr("check email", err)
	}
	if taken > 0 {
		local, domain, _ := strings.Cut(email, "@")
		email = local + "+" + phone + "@" + domain
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.MinCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	now := s.now()
	var userID int64
	err = tx.QueryRowContext(ctx, s.db.Rebind(`
		INSERT INTO users (name, email, password, phone, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		name, email, string(hash), phone, model.RolePatient, now, now,
	).Scan(&userID)
	if err != nil {
		return 0, engineErr("create patient user", err)
	}

	err = tx.QueryRowContext(ctx, s.db.Rebind(`
		INSERT INTO patients (user_id, patient_number, created_at, updated_at)
		VALUES (?, ?, ?, ?) RETURNING id`),
		userID, fmt.Sprintf("PAT%06d", userID), now, now,
	).Scan(&patientID)
	if err != nil {
		return 0, engineErr("create patient", err)
	}
	return patientID, nil
}

// resolveService matches the service by name, falling back to the first
// service. Zero means the catalogue is empty.
func (s *BookingService) resolveService(ctx context.Context, tx *sql.Tx, service string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, s.db.Rebind(
		`SELECT id FROM services WHERE name `+s.db.Dialect.LikeOperator()+` ? ORDER BY id LIMIT 1`),
		"%"+service+"%",
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowContext(ctx, `SELECT id FROM services ORDER BY id LIMIT 1`).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
	}
	if err != nil {
		return 0, engineErr("find service", err)
	}
	return id, nil
}

// resolveDoctor prefers a doctor whose name matches, then the first doctor,
// and creates the default doctor when there is none.
func (s *BookingService) resolveDoctor(ctx context.Context, tx *sql.Tx, name string) (int64, string, error) {
	const pick = `SELECT d.id, u.name FROM doctors d JOIN users u ON u.id = d.user_id`
	var (
		id     int64
		doctor string
		err    error = sql.ErrNoRows
	)
	if name = strings.TrimSpace(name); name != "" {
		err = tx.QueryRowContext(ctx, s.db.Rebind(pick+` WHERE u.name `+s.db.Dialect.LikeOperator()+` ? ORDER BY d.id LIMIT 1`),
			"%"+name+"%").Scan(&id, &doctor)
	}
	if errors.Is(err, sql.ErrNoRows) {
		err = tx.QueryRowContext(ctx, pick+` ORDER BY d.id LIMIT 1`).Scan(&id, &doctor)
	}
	if err == nil {
		return id, doctor, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, "", engineErr("find doctor", err)
	}

	now := s.now()
	var userID int64
	err = tx.QueryRowContext(ctx, s.db.Rebind(`SELECT id FROM users WHERE email = ?`), defaultDoctorMail).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		hash, herr := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.MinCost)
		if herr != nil {
			return 0, "", fmt.Errorf("hash password: %w", herr)
		}
		err = tx.QueryRowContext(ctx, s.db.Rebind(`
			INSERT INTO users (name, email, password, phone, role, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			defaultDoctorName, defaultDoctorMail, string(hash), "", model.RoleDoctor, now, now,
		).Scan(&userID)
	}
	if err != nil {
		return 0, "", engineErr("create doctor user", err)
	}
	err = tx.QueryRowContext(ctx, s.db.Rebind(`
		INSERT INTO doctors (user_id, specialization, created_at, updated_at)
		VALUES (?, ?, ?, ?) RETURNING id`),
		userID, "General Dentistry", now, now,
	).Scan(&id)
	if err != nil {
		return 0, "", engineErr("create doctor", err)
	}
	return id, defaultDoctorName, nil
}

const appointmentSelect = `
	SELECT a.id, COALESCE(a.appointment_number, ''), a.patient_id, a.doctor_id, a.service_id,
		a.appointment_date, a.appointment_time, a.status,
		COALESCE(a.chief_complaint, ''), COALESCE(a.notes, ''),
		u.name, COALESCE(u.phone, ''), u.email, s.name, du.name, a.created_at
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN users u ON u.id = p.user_id
	LEFT JOIN services s ON s.id = a.service_id
	LEFT JOIN doctors d ON d.id = a.doctor_id
	LEFT JOIN users du ON du.id = d.user_id`

func scanAppointment(row interface{ Scan(...any) error }) (*model.Appointment, error) {
	a := &model.Appointment{}
	var (
		doctorID, serviceID sql.NullInt64
		serviceName, doctor sql.NullString
	)
	err := row.Scan(&a.ID, &a.AppointmentNumber, &a.PatientID, &doctorID, &serviceID,
		&a.AppointmentDate, &a.AppointmentTime, &a.Status, &a.ChiefComplaint, &a.Notes,
		&a.PatientName, &a.Phone, &a.Email, &serviceName, &doctor, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if doctorID.Valid {
		a.DoctorID = &doctorID.Int64
	}
	if serviceID.Valid {
		a.ServiceID = &serviceID.Int64
	}
	if serviceName.Valid {
		a.ServiceName = &serviceName.String
	}
	if doctor.Valid {
		a.DoctorName = &doctor.String
	}
	return a, nil
}

func (s *BookingService) ListBookings(ctx context.Context) ([]model.Appointment, error) {
	rows, err := s.db.QueryContext(ctx, appointmentSelect+` ORDER BY a.appointment_date DESC, a.appointment_time DESC, a.id DESC`)
	if err != nil {
		return nil, engineErr("list bookings", err)
	}
	defer rows.Close()

	out := []model.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, engineErr("list bookings", err)
		}
		out = append(out, *a)
	}
	return out, engineErr("list bookings", rows.Err())
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*model.Appointment, error) {
	a, err := scanAppointment(s.db.QueryRowContext(ctx, s.db.Rebind(appointmentSelect+` WHERE a.id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr("get booking", err)
	}
	return a, nil
}

// FindByNumber returns nil without error when no appointment carries number.
func (s *BookingService) FindByNumber(ctx context.Context, number string) (*model.Appointment, error) {
	a, err := scanAppointment(s.db.QueryRowContext(ctx,
		s.db.Rebind(appointmentSelect+` WHERE a.appointment_number = ? ORDER BY a.id LIMIT 1`), number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, engineErr("find appointment", err)
	}
	return a, nil
}

func (s *BookingService) UpdateStatus(ctx context.Context, id int64, status string) error {
	if !slices.Contains(model.AppointmentStatuses, status) {
		return fmt.Errorf("%w: status must be one of %s", ErrInvalidInput, strings.Join(model.AppointmentStatuses, ", "))
	}
	res, err := s.db.ExecContext(ctx,
		s.db.Rebind(`UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?`), status, s.now(), id)
	if err != nil {
		return engineErr("update status", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return engineErr("update status", err)
	} else if n == 0 {
		return ErrNotFound
	}

	if status == model.StatusCancelled && s.notify != nil {
		a, err := s.GetBooking(ctx, id)
		if err != nil {
			return err
		}
		if a.Email != "" {
			notice := appointmentNotice(a)
			s.async(func() {
				if err := s.notify.SendAppointmentEmail(context.WithoutCancel(ctx), model.NotifyCancellation, notice); err != nil {
					s.log.Warn().Err(err).Int64("appointment_id", id).Msg("cancellation email failed")
				}
			})
		}
	}
	return nil
}

func appointmentNotice(a *model.Appointment) model.BookingNotice {
	n := model.BookingNotice{
		PatientName:     a.PatientName,
		Phone:           a.Phone,
		Email:           a.Email,
		AppointmentDate: a.AppointmentDate,
		AppointmentTime: a.AppointmentTime,
		BookingNumber:   a.AppointmentNumber,
		Notes:           a.Notes,
	}
	if a.DoctorName != nil {
		n.DoctorName = *a.DoctorName
	}
	if a.ServiceName != nil {
		n.Service = *a.ServiceName
	}
	return n
}

// CleanupAppointments removes orphaned appointments, then duplicates sharing
// an appointment number, keeping the oldest.
func (s *BookingService) CleanupAppointments(ctx context.Context) (*model.AppointmentCleanupResult, error) {
	out := &model.AppointmentCleanupResult{}
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM appointments
			WHERE patient_id IS NULL OR patient_id NOT IN (SELECT id FROM patients)`)
		if err != nil {
			return engineErr("delete orphaned appointments", err)
		}
		if out.DeletedInvalid, err = res.RowsAffected(); err != nil {
			return engineErr("delete orphaned appointments", err)
		}

		res, err = tx.ExecContext(ctx, `
			DELETE FROM appointments
			WHERE appointment_number IS NOT NULL AND id NOT IN (
				SELECT MIN(id) FROM appointments
				WHERE appointment_number IS NOT NULL
				GROUP BY appointment_number
			)`)
		if err != nil {
			return engineErr("delete duplicate appointments", err)
		}
		if out.DeletedDuplicates, err = res.RowsAffected(); err != nil {
			return engineErr("delete duplicate appointments", err)
		}

		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM appointments`).Scan(&out.TotalAppointments); err != nil {
			return engineErr("count appointments", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int64("invalid", out.DeletedInvalid).Int64("duplicates", out.DeletedDuplicates).Msg("appointments cleaned")
	return out, nil
}

func (s *BookingService) ListPatients(ctx context.Context) ([]model.Patient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.user_id, COALESCE(p.patient_number, ''), u.name, u.email, COALESCE(u.phone, ''),
			p.address, p.gender, p.created_at
		FROM patients p
		JOIN users u ON u.id = p.user_id
		ORDER BY p.id DESC`)
	if err != nil {
		return nil, engineErr("list patients", err)
	}
	defer rows.Close()

	out := []model.Patient{}
	for rows.Next() {
		var (
			p               model.Patient
			address, gender sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.PatientNumber, &p.Name, &p.Email, &p.Phone,
			&address, &gender, &p.CreatedAt); err != nil {
			return nil, engineErr("list patients", err)
		}
		if address.Valid {
			p.Address = &address.String
		}
		if gender.Valid {
			p.Gender = &gender.String
		}
		out = append(out, p)
	}
	return out, engineErr("list patients", rows.Err())
}
