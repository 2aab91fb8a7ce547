package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"math/rand/v2"
	"net/mail"
	"strings"
	"sync"
	"time"

	"clinic/backend/internal/model"

	"github.com/rs/zerolog"
)

const (
	smsSuccessRate      = 0.90
	whatsappSuccessRate = 0.95
	reminderHour        = 10
	statsWindowDays     = 30
)

type ClinicInfo struct {
	Name    string
	Phone   string
	Address string
}

type NotifierConfig struct {
	Clinic ClinicInfo
	// EnvEmail is used when no settings row has been saved.
	EnvEmail model.EmailSettings
	// ChannelLatency is the simulated SMS and WhatsApp gateway delay.
	ChannelLatency time.Duration
}

// Notifier fans messages out to SMS, WhatsApp and email, logs every email
// attempt and schedules appointment reminders.
type Notifier struct {
	db        *DB
	cfg       NotifierConfig
	log       zerolog.Logger
	newMailer func(model.EmailSettings) Mailer
	now       func() time.Time

	rndMu sync.Mutex
	rnd   func() float64

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

var _ BookingNotifier = (*Notifier)(nil)

func NewNotifier(db *DB, cfg NotifierConfig, log zerolog.Logger) *Notifier {
	return &Notifier{
		db:        db,
		cfg:       cfg,
		log:       log.With().Str("component", "notifier").Logger(),
		newMailer: NewSMTPMailer,
		now:       time.Now,
		rnd:       rand.Float64,
		timers:    make(map[string]*time.Timer),
	}
}

func (n *Notifier) roll() float64 {
	n.rndMu.Lock()
	defer n.rndMu.Unlock()
	return n.rnd()
}

// simulate stands in for an external gateway: it waits out the configured
// latency and succeeds with the given probability.
func (n *Notifier) simulate(ctx context.Context, channel, to, text string, rate float64) bool {
	if n.cfg.ChannelLatency > 0 {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(n.cfg.ChannelLatency):
		}
	}
	ok := n.roll() < rate
	n.log.Debug().Str("channel", channel).Str("to", to).Bool("delivered", ok).Str("message", text).Msg("simulated message")
	return ok
}

// DispatchBooking sends the booking confirmation on every channel.
func (n *Notifier) DispatchBooking(ctx context.Context, b model.BookingNotice) model.DispatchResult {
	return n.dispatch(ctx, model.NotifyConfirmation, b)
}

func (n *Notifier) dispatch(ctx context.Context, kind string, b model.BookingNotice) model.DispatchResult {
	var (
		res model.DispatchResult
		wg  sync.WaitGroup
	)
	text := n.shortMessage(kind, b)
	wg.Add(3)
	go func() {
		defer wg.Done()
		res.SMS = b.Phone != "" && n.simulate(ctx, "sms", b.Phone, text, smsSuccessRate)
	}()
	go func() {
		defer wg.Done()
		res.WhatsApp = b.Phone != "" && n.simulate(ctx, "whatsapp", b.Phone, text, whatsappSuccessRate)
	}()
	go func() {
		defer wg.Done()
		if b.Email == "" {
			return
		}
		if err := n.SendAppointmentEmail(ctx, kind, b); err != nil {
			n.log.Warn().Err(err).Str("kind", kind).Str("booking_number", b.BookingNumber).Msg("email not delivered")
			return
		}
		res.Email = true
	}()
	wg.Wait()
	return res
}

func (n *Notifier) shortMessage(kind string, b model.BookingNotice) string {
	switch kind {
	case model.NotifyReminder:
		return fmt.Sprintf("Reminder: %s, your appointment at %s is tomorrow %s at %s. Booking %s.",
			b.PatientName, n.cfg.Clinic.Name, b.AppointmentDate, b.AppointmentTime, b.BookingNumber)
	case model.NotifyCancellation:
		return fmt.Sprintf("%s, your appointment %s on %s at %s has been cancelled. Call %s to rebook.",
			b.PatientName, b.BookingNumber, b.AppointmentDate, b.AppointmentTime, n.cfg.Clinic.Phone)
	default:
		return fmt.Sprintf("%s, your appointment at %s is confirmed for %s at %s (%s). Booking %s.",
			b.PatientName, n.cfg.Clinic.Name, b.AppointmentDate, b.AppointmentTime, b.Service, b.BookingNumber)
	}
}

// ScheduleReminder arms a reminder for 10:00 on the day before the
// appointment. It reports false when that moment has already passed.
func (n *Notifier) ScheduleReminder(b model.BookingNotice) bool {
	day, err := time.ParseInLocation(time.DateOnly, b.AppointmentDate, time.Local)
	if err != nil {
		n.log.Warn().Err(err).Str("date", b.AppointmentDate).Msg("reminder not scheduled")
		return false
	}
	at := day.AddDate(0, 0, -1).Add(reminderHour * time.Hour)
	delay := at.Sub(n.now())
	if delay <= 0 {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stopped {
		return false
	}
	key := b.BookingNumber
	if t, ok := n.timers[key]; ok {
		t.Stop()
	}
	n.timers[key] = time.AfterFunc(delay, func() {
		n.mu.Lock()
		delete(n.timers, key)
		n.mu.Unlock()
		n.dispatch(context.Background(), model.NotifyReminder, b)
	})
	n.log.Info().Str("booking_number", key).Time("at", at).Msg("reminder scheduled")
	return true
}

func (n *Notifier) PendingReminders() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.timers)
}

// Stop cancels every pending reminder. Later schedules are refused.
func (n *Notifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stopped = true
	for key, t := range n.timers {
		t.Stop()
		delete(n.timers, key)
	}
}

// SendAppointmentEmail renders and sends one appointment email, recording
// the attempt whatever its outcome.
func (n *Notifier) SendAppointmentEmail(ctx context.Context, kind string, b model.BookingNotice) error {
	switch kind {
	case model.NotifyConfirmation, model.NotifyReminder, model.NotifyCancellation:
	default:
		return fmt.Errorf("%w: type must be confirmation, reminder or cancellation", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(b.Email); err != nil {
		return fmt.Errorf("%w: invalid patient email", ErrInvalidInput)
	}
	e := n.renderAppointmentEmail(kind, b)
	return n.send(ctx, kind, b.BookingNumber, e)
}

func (n *Notifier) SendTestEmail(ctx context.Context, to string) error {
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	subject := "Test email from " + n.cfg.Clinic.Name
	text := "Email notifications are configured correctly."
	return n.send(ctx, model.NotifyTest, "", Email{
		To:      to,
		Subject: subject,
		Text:    text,
		HTML:    "<p>" + html.EscapeString(text) + "</p>",
	})
}

func (n *Notifier) send(ctx context.Context, kind, appointmentID string, e Email) error {
	mailer, err := n.mailer(ctx)
	if err != nil {
		return err
	}
	id, sendErr := mailer.Send(ctx, e)
	n.record(ctx, kind, appointmentID, e, id, sendErr)
	if sendErr != nil {
		return fmt.Errorf("send email: %w", sendErr)
	}
	return nil
}

func (n *Notifier) mailer(ctx context.Context) (Mailer, error) {
	s, err := n.storedSettings(ctx)
	if errors.Is(err, ErrNotFound) {
		return n.newMailer(n.cfg.EnvEmail), nil
	}
	if err != nil {
		return nil, err
	}
	return n.newMailer(*s), nil
}

// record writes the email log row and bumps the daily counters. Failures
// here never fail the send.
func (n *Notifier) record(ctx context.Context, kind, appointmentID string, e Email, messageID string, sendErr error) {
	now := n.now().UTC()
	status, errMsg, okCount, failCount := model.DeliverySent, "", 1, 0
	var sentAt any = now
	if sendErr != nil {
		status, errMsg, okCount, failCount = model.DeliveryFailed, sendErr.Error(), 0, 1
		sentAt = nil
	}

	_, err := n.db.ExecContext(ctx, n.db.Rebind(`
		INSERT INTO email_notifications (notification_type, recipient_email, recipient_name, appointment_id,
			subject, delivery_status, message_id, error_message, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		kind, e.To, nullString(e.ToName), nullString(appointmentID),
		e.Subject, status, nullString(messageID), nullString(errMsg), sentAt, now,
	)
	if err != nil {
		n.log.Warn().Err(err).Msg("failed to log email notification")
		return
	}

	_, err = n.db.ExecContext(ctx, n.db.Rebind(`
		INSERT INTO notification_stats (stat_date, notification_type, total_sent, successful, failed)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT (stat_date, notification_type) DO UPDATE SET
			total_sent = notification_stats.total_sent + 1,
			successful = notification_stats.successful + excluded.successful,
			failed = notification_stats.failed + excluded.failed`),
		now.Format(time.DateOnly), kind, okCount, failCount,
	)
	if err != nil {
		n.log.Warn().Err(err).Msg("failed to update notification stats")
	}
}

func (n *Notifier) storedSettings(ctx context.Context) (*model.EmailSettings, error) {
	var (
		s                          model.EmailSettings
		host, user, pass, fromName sql.NullString
	)
	err := n.db.QueryRowContext(ctx, `
		SELECT id, enabled, service, host, port, secure, username, password, from_name
		FROM email_settings ORDER BY id DESC LIMIT 1`,
	).Scan(&s.ID, &s.Enabled, &s.Service, &host, &s.Port, &s.Secure, &user, &pass, &fromName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, engineErr("read email settings", err)
	}
	s.Host, s.Username, s.Password, s.FromName = host.String, user.String, pass.String, fromName.String
	return &s, nil
}

func sanitized(s model.EmailSettings) *model.EmailSettings {
	s.HasPassword = s.Password != ""
	s.Password = ""
	s.FromAddress = ""
	return &s
}

// EmailSettings returns the saved settings, or the environment defaults,
// without the password.
func (n *Notifier) EmailSettings(ctx context.Context) (*model.EmailSettings, error) {
	s, err := n.storedSettings(ctx)
	if errors.Is(err, ErrNotFound) {
		return sanitized(n.cfg.EnvEmail), nil
	}
	if err != nil {
		return nil, err
	}
	return sanitized(*s), nil
}

// SaveEmailSettings updates the settings row. An empty password keeps the
// stored one; the first save must carry a password.
func (n *Notifier) SaveEmailSettings(ctx context.Context, in model.EmailSettings) (*model.EmailSettings, error) {
	in.Host = strings.TrimSpace(in.Host)
	in.Username = strings.TrimSpace(in.Username)
	if in.Service == "" {
		in.Service = "smtp"
	}
	if in.Port == 0 {
		in.Port = 587
	}
	if in.Port < 1 || in.Port > 65535 {
		return nil, fmt.Errorf("%w: invalid port", ErrInvalidInput)
	}
	if in.Enabled && (in.Host == "" || in.Username == "") {
		return nil, fmt.Errorf("%w: host and username are required", ErrInvalidInput)
	}

	current, err := n.storedSettings(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	now := n.now().UTC()

	if current == nil {
		if in.Password == "" {
			return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
		}
		err = n.db.QueryRowContext(ctx, n.db.Rebind(`
			INSERT INTO email_settings (enabled, service, host, port, secure, username, password, from_name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			in.Enabled, in.Service, in.Host, in.Port, in.Secure, in.Username, in.Password, in.FromName, now, now,
		).Scan(&in.ID)
		if err != nil {
			return nil, engineErr("save email settings", err)
		}
	} else {
		if in.Password == "" {
			in.Password = current.Password
		}
		in.ID = current.ID
		_, err = n.db.ExecContext(ctx, n.db.Rebind(`
			UPDATE email_settings SET enabled = ?, service = ?, host = ?, port = ?, secure = ?,
				username = ?, password = ?, from_name = ?, updated_at = ?
			WHERE id = ?`),
			in.Enabled, in.Service, in.Host, in.Port, in.Secure, in.Username, in.Password, in.FromName, now, in.ID,
		)
		if err != nil {
			return nil, engineErr("save email settings", err)
		}
	}
	n.log.Info().Bool("enabled", in.Enabled).Str("host", in.Host).Msg("email settings saved")
	return sanitized(in), nil
}

func (n *Notifier) Logs(ctx context.Context, page, limit int) ([]model.EmailLog, int64, error) {
	var total int64
	if err := n.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM email_notifications`).Scan(&total); err != nil {
		return nil, 0, engineErr("count email logs", err)
	}

	rows, err := n.db.QueryContext(ctx, n.db.Rebind(`
		SELECT id, notification_type, recipient_email, recipient_name, appointment_id, subject,
			delivery_status, message_id, error_message, sent_at, created_at
		FROM email_notifications
		ORDER BY id DESC LIMIT ? OFFSET ?`), limit, (page-1)*limit)
	if err != nil {
		return nil, 0, engineErr("list email logs", err)
	}
	defer rows.Close()

	logs := []model.EmailLog{}
	for rows.Next() {
		var (
			l                         model.EmailLog
			name, appt, msgID, errMsg sql.NullString
			sentAt                    sql.NullTime
		)
		if err := rows.Scan(&l.ID, &l.NotificationType, &l.RecipientEmail, &name, &appt, &l.Subject,
			&l.DeliveryStatus, &msgID, &errMsg, &sentAt, &l.CreatedAt); err != nil {
			return nil, 0, engineErr("list email logs", err)
		}
		l.RecipientName = nullableString(name)
		l.AppointmentID = nullableString(appt)
		l.MessageID = nullableString(msgID)
		l.ErrorMessage = nullableString(errMsg)
		if sentAt.Valid {
			l.SentAt = &sentAt.Time
		}
		logs = append(logs, l)
	}
	return logs, total, engineErr("list email logs", rows.Err())
}

// Stats aggregates the daily counters of the last thirty days by type.
func (n *Notifier) Stats(ctx context.Context) (*model.NotificationSummary, error) {
	since := n.now().UTC().AddDate(0, 0, -statsWindowDays).Format(time.DateOnly)
	rows, err := n.db.QueryContext(ctx, n.db.Rebind(`
		SELECT notification_type, SUM(total_sent), SUM(successful), SUM(failed)
		FROM notification_stats
		WHERE stat_date >= ?
		GROUP BY notification_type
		ORDER BY notification_type`), since)
	if err != nil {
		return nil, engineErr("notification stats", err)
	}
	defer rows.Close()

	sum := &model.NotificationSummary{ByType: []model.TypeStats{}}
	for rows.Next() {
		var t model.TypeStats
		if err := rows.Scan(&t.NotificationType, &t.Total, &t.Successful, &t.Failed); err != nil {
			return nil, engineErr("notification stats", err)
		}
		sum.Total += t.Total
		sum.Successful += t.Successful
		sum.Failed += t.Failed
		sum.ByType = append(sum.ByType, t)
	}
	return sum, engineErr("notification stats", rows.Err())
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
