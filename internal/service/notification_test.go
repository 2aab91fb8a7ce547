package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"clinic/backend/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []Email
}

func (f *fakeMailer) Send(_ context.Context, e Email) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, e)
	if f.err != nil {
		return "", f.err
	}
	return "<msg-" + e.To + ">", nil
}

var testNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.Local)

func newTestNotifier(t *testing.T) (*Notifier, *fakeMailer, *DB) {
	t.Helper()
	db := newTestDB(t)
	mailer := &fakeMailer{}
	n := NewNotifier(db, NotifierConfig{
		Clinic: ClinicInfo{Name: "Smile Clinic", Phone: "+967 1", Address: "Main St"},
	}, zerolog.Nop())
	n.newMailer = func(model.EmailSettings) Mailer { return mailer }
	n.rnd = func() float64 { return 0.5 }
	n.now = func() time.Time { return testNow }
	t.Cleanup(n.Stop)
	return n, mailer, db
}

var notice = model.BookingNotice{
	PatientName:     "Sara <b>Ali</b>",
	Phone:           "967777123456",
	Email:           "sara@mail.com",
	AppointmentDate: "2026-10-20",
	AppointmentTime: "10:30",
	DoctorName:      "Dr. Omar",
	Service:         "Teeth Cleaning",
	BookingNumber:   "APP00000042",
}

func TestDispatchBooking(t *testing.T) {
	n, mailer, db := newTestNotifier(t)
	ctx := context.Background()

	res := n.DispatchBooking(ctx, notice)
	assert.Equal(t, model.DispatchResult{SMS: true, WhatsApp: true, Email: true}, res)

	require.Len(t, mailer.sent, 1)
	sent := mailer.sent[0]
	assert.Equal(t, "sara@mail.com", sent.To)
	assert.Contains(t, sent.Subject, "confirmed")
	assert.Contains(t, sent.Text, "APP00000042")
	assert.Contains(t, sent.HTML, "Sara &lt;b&gt;Ali&lt;/b&gt;")
	assert.EqualValues(t, 1, countRows(t, db, "email_notifications"))

	n.rnd = func() float64 { return 0.99 }
	noEmail := notice
	noEmail.Email = ""
	res = n.DispatchBooking(ctx, noEmail)
	assert.Equal(t, model.DispatchResult{}, res)
	assert.Len(t, mailer.sent, 1)
}

func TestSendAppointmentEmailRecordsFailures(t *testing.T) {
	n, mailer, _ := newTestNotifier(t)
	ctx := context.Background()
	mailer.err = errors.New("relay refused")

	err := n.SendAppointmentEmail(ctx, model.NotifyReminder, notice)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay refused")

	logs, total, err := n.Logs(ctx, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, logs, 1)
	assert.Equal(t, model.DeliveryFailed, logs[0].DeliveryStatus)
	assert.Equal(t, model.NotifyReminder, logs[0].NotificationType)
	require.NotNil(t, logs[0].ErrorMessage)
	assert.Equal(t, "relay refused", *logs[0].ErrorMessage)
	assert.Nil(t, logs[0].SentAt)
	assert.Nil(t, logs[0].MessageID)
	require.NotNil(t, logs[0].AppointmentID)
	assert.Equal(t, "APP00000042", *logs[0].AppointmentID)

	stats, err := n.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Failed)
	assert.EqualValues(t, 0, stats.Successful)
}

func TestSendAppointmentEmailValidation(t *testing.T) {
	n, mailer, _ := newTestNotifier(t)
	ctx := context.Background()

	assert.ErrorIs(t, n.SendAppointmentEmail(ctx, "birthday", notice), ErrInvalidInput)
	bad := notice
	bad.Email = "not-an-address"
	assert.ErrorIs(t, n.SendAppointmentEmail(ctx, model.NotifyConfirmation, bad), ErrInvalidInput)
	assert.ErrorIs(t, n.SendTestEmail(ctx, ""), ErrInvalidInput)
	assert.Empty(t, mailer.sent)
}

func TestLogsAndStats(t *testing.T) {
	n, _, db := newTestNotifier(t)
	ctx := context.Background()

	require.NoError(t, n.SendTestEmail(ctx, "a@clinic.com"))
	require.NoError(t, n.SendTestEmail(ctx, "b@clinic.com"))
	require.NoError(t, n.SendAppointmentEmail(ctx, model.NotifyCancellation, notice))

	old := testNow.UTC().AddDate(0, 0, -60).Format(time.DateOnly)
	_, err := db.ExecContext(ctx,
		`INSERT INTO notification_stats (stat_date, notification_type, total_sent, successful, failed) VALUES (?, 'test', 5, 5, 0)`, old)
	require.NoError(t, err)

	logs, total, err := n.Logs(ctx, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, logs, 2)
	assert.Equal(t, model.NotifyCancellation, logs[0].NotificationType)
	assert.Equal(t, model.DeliverySent, logs[0].DeliveryStatus)
	require.NotNil(t, logs[0].SentAt)
	require.NotNil(t, logs[0].MessageID)

	rest, _, err := n.Logs(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "a@clinic.com", rest[0].RecipientEmail)

	stats, err := n.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 3, stats.Successful)
	require.Len(t, stats.ByType, 2)
	assert.Equal(t, model.TypeStats{NotificationType: model.NotifyCancellation, Total: 1, Successful: 1}, stats.ByType[0])
	assert.Equal(t, model.TypeStats{NotificationType: model.NotifyTest, Total: 2, Successful: 2}, stats.ByType[1])
}

func TestEmailSettings(t *testing.T) {
	n, _, _ := newTestNotifier(t)
	ctx := context.Background()
	n.cfg.EnvEmail = model.EmailSettings{Enabled: true, Service: "smtp", Host: "env.smtp", Port: 25, Username: "env", Password: "envpw"}

	var used model.EmailSettings
	n.newMailer = func(s model.EmailSettings) Mailer {
		used = s
		return &fakeMailer{}
	}

	current, err := n.EmailSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "env.smtp", current.Host)
	assert.True(t, current.HasPassword)
	assert.Empty(t, current.Password)

	require.NoError(t, n.SendTestEmail(ctx, "x@clinic.com"))
	assert.Equal(t, "env.smtp", used.Host)

	_, err = n.SaveEmailSettings(ctx, model.EmailSettings{Enabled: true, Host: "smtp.test", Username: "mailer"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = n.SaveEmailSettings(ctx, model.EmailSettings{Enabled: true, Username: "mailer", Password: "pw"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = n.SaveEmailSettings(ctx, model.EmailSettings{Port: 70000, Password: "pw"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	saved, err := n.SaveEmailSettings(ctx, model.EmailSettings{
		Enabled: true, Host: " smtp.test ", Username: "mailer", Password: "pw", FromName: "Smile Clinic",
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.test", saved.Host)
	assert.Equal(t, 587, saved.Port)
	assert.Equal(t, "smtp", saved.Service)
	assert.True(t, saved.HasPassword)
	assert.Empty(t, saved.Password)

	_, err = n.SaveEmailSettings(ctx, model.EmailSettings{Enabled: true, Host: "smtp2.test", Username: "mailer", Port: 465, Secure: true})
	require.NoError(t, err)

	stored, err := n.storedSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "smtp2.test", stored.Host)
	assert.Equal(t, "pw", stored.Password)
	assert.True(t, stored.Secure)

	require.NoError(t, n.SendTestEmail(ctx, "x@clinic.com"))
	assert.Equal(t, "smtp2.test", used.Host)
	assert.Equal(t, "pw", used.Password)
}

func TestDisabledMailer(t *testing.T) {
	n, _, db := newTestNotifier(t)
	n.newMailer = NewSMTPMailer

	err := n.SendTestEmail(context.Background(), "x@clinic.com")
	assert.ErrorIs(t, err, ErrEmailDisabled)
	assert.EqualValues(t, 1, countRows(t, db, "email_notifications"))
}

func TestScheduleReminder(t *testing.T) {
	n, _, _ := newTestNotifier(t)

	assert.True(t, n.ScheduleReminder(notice))
	assert.True(t, n.ScheduleReminder(notice))
	assert.Equal(t, 1, n.PendingReminders())

	tomorrow := notice
	tomorrow.BookingNumber = "APP-TOMORROW"
	tomorrow.AppointmentDate = "2026-10-18"
	assert.True(t, n.ScheduleReminder(tomorrow))

	today := notice
	today.BookingNumber = "APP-TODAY"
	today.AppointmentDate = "2026-10-17"
	assert.False(t, n.ScheduleReminder(today))

	bad := notice
	bad.AppointmentDate = "soon"
	assert.False(t, n.ScheduleReminder(bad))
	assert.Equal(t, 2, n.PendingReminders())

	n.Stop()
	assert.Equal(t, 0, n.PendingReminders())
	assert.False(t, n.ScheduleReminder(notice))
}

func TestNewSMTPMailer(t *testing.T) {
	_, ok := NewSMTPMailer(model.EmailSettings{Host: "smtp.test"}).(disabledMailer)
	assert.True(t, ok)
	_, ok = NewSMTPMailer(model.EmailSettings{Enabled: true}).(disabledMailer)
	assert.True(t, ok)

	m, ok := NewSMTPMailer(model.EmailSettings{Enabled: true, Host: "smtp.test", Port: 587, Username: "clinic@test.com"}).(*SMTPMailer)
	require.True(t, ok)
	assert.Equal(t, "clinic@test.com", m.From)

	m = NewSMTPMailer(model.EmailSettings{Enabled: true, Host: "smtp.test", Username: "user", FromAddress: "noreply@test.com"}).(*SMTPMailer)
	assert.Equal(t, "noreply@test.com", m.From)

	_, err := m.Send(context.Background(), Email{To: "broken"})
	assert.Error(t, err)
}

func TestSMTPMailerMessage(t *testing.T) {
	m := &SMTPMailer{Host: "smtp.test", From: "noreply@test.com", FromName: "Smile Clinic"}
	msg, err := m.message("id@test", Email{
		To: "sara@mail.com", ToName: "Sara", Subject: "Hello",
		Text: "Your appointment is confirmed – see you soon", HTML: "<p>rich</p>",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	out := buf.String()

	assert.Contains(t, out, "Smile Clinic")
	assert.Contains(t, out, "<noreply@test.com>")
	assert.Contains(t, out, "<sara@mail.com>")
	assert.Contains(t, out, "<id@test>")
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "multipart/alternative")
	assert.Contains(t, out, "text/html")
	assert.Contains(t, out, "Content-Transfer-Encoding: quoted-printable")
	assert.NotContains(t, out, "–", "non-ASCII body must be encoded")

	_, err = m.message("id@test", Email{To: "not an address"})
	assert.Error(t, err)
}
