package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic/backend/internal/model"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
)

var ErrEmailDisabled = errors.New("email service disabled")

type Email struct {
	To      string
	ToName  string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers one email and returns its message id.
type Mailer interface {
	Send(ctx context.Context, e Email) (string, error)
}

type disabledMailer struct{}

func (disabledMailer) Send(context.Context, Email) (string, error) { return "", ErrEmailDisabled }

// SMTPMailer delivers through an SMTP relay: implicit TLS when Secure is set,
// opportunistic STARTTLS otherwise.
type SMTPMailer struct {
	Host     string
	Port     int
	Secure   bool
	Username string
	Password string
	From     string
	FromName string
	Timeout  time.Duration
}

func NewSMTPMailer(s model.EmailSettings) Mailer {
	if !s.Enabled || s.Host == "" {
		return disabledMailer{}
	}
	from := s.FromAddress
	if from == "" {
		from = s.Username
	}
	return &SMTPMailer{
		Host:     s.Host,
		Port:     s.Port,
		Secure:   s.Secure,
		Username: s.Username,
		Password: s.Password,
		From:     from,
		FromName: s.FromName,
		Timeout:  30 * time.Second,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, e Email) (string, error) {
	id := uuid.NewString() + "@" + m.Host
	msg, err := m.message(id, e)
	if err != nil {
		return "", err
	}
	client, err := m.client()
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}
	return "<" + id + ">", nil
}

func (m *SMTPMailer) client() (*gomail.Client, error) {
	opts := []gomail.Option{gomail.WithTimeout(m.Timeout)}
	if m.Port > 0 {
		opts = append(opts, gomail.WithPort(m.Port))
	}
	if m.Secure {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if m.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthAutoDiscover),
			gomail.WithUsername(m.Username),
			gomail.WithPassword(m.Password),
		)
	}
	return gomail.NewClient(m.Host, opts...)
}

// message builds a multipart/alternative mail; bodies are quoted-printable.
func (m *SMTPMailer) message(id string, e Email) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(m.FromName, m.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.From, err)
	}
	if err := msg.AddToFormat(e.ToName, e.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", e.To, err)
	}
	msg.Subject(e.Subject)
	msg.SetMessageIDWithValue(id)
	msg.SetDate()
	msg.SetBodyString(gomail.TypeTextPlain, e.Text)
	if e.HTML != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, e.HTML)
	}
	return msg, nil
}
