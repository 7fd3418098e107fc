package utils

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/mailersend/mailersend-go"

	"github.com/Zacison/natours-backend/config"
	"github.com/Zacison/natours-backend/logger"
)

// Email is a plain-text message to a single recipient.
type Email struct {
	To      string
	Subject string
	Text    string
}

// Mailer delivers outbound email.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// NewMailer picks the transport named by cfg.Provider.
func NewMailer(cfg config.EmailConfig) (Mailer, error) {
	switch cfg.Provider {
	case "smtp":
		if cfg.Host == "" || cfg.Port == "" {
			return nil, errors.New("smtp mailer needs EMAIL_HOST and EMAIL_PORT")
		}
		return &SMTPMailer{Host: cfg.Host, Port: cfg.Port, User: cfg.User, Pass: cfg.Pass, FromName: cfg.FromName, From: cfg.FromAddress}, nil
	case "mailersend":
		if cfg.MailerSendKey == "" {
			return nil, errors.New("mailersend mailer needs MAILERSEND_API_KEY")
		}
		return NewMailerSendMailer(cfg.MailerSendKey, cfg.FromName, cfg.FromAddress), nil
	case "log":
		return LogMailer{}, nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// SMTPMailer sends through a plain SMTP relay with PLAIN auth.
type SMTPMailer struct {
	Host     string
	Port     string
	User     string
	Pass     string
	FromName string
	From     string
}

func (m *SMTPMailer) Send(ctx context.Context, msg Email) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return errors.New("empty recipient")
	}

	from := m.From
	if m.FromName != "" {
		from = fmt.Sprintf("%s <%s>", m.FromName, m.From)
	}
	body := "From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + msg.Subject + "\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n" +
		msg.Text + "\r\n"

	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Pass, m.Host)
	}

	// net/smtp has no context support; run it aside and honour cancellation.
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(m.Host+":"+m.Port, auth, m.From, []string{to}, []byte(body))
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MailerSendMailer sends through the MailerSend HTTP API.
type MailerSendMailer struct {
	client *mailersend.Mailersend
	from   mailersend.From
}

func NewMailerSendMailer(apiKey, fromName, fromEmail string) *MailerSendMailer {
	return &MailerSendMailer{
		client: mailersend.NewMailersend(apiKey),
		from:   mailersend.From{Name: fromName, Email: fromEmail},
	}
}

func (m *MailerSendMailer) Send(ctx context.Context, msg Email) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	message := m.client.Email.NewMessage()
	message.SetFrom(m.from)
	message.SetRecipients([]mailersend.Recipient{{Email: msg.To}})
	message.SetSubject(msg.Subject)
	message.SetText(msg.Text)

	if _, err := m.client.Email.Send(ctx, message); err != nil {
		return fmt.Errorf("mailersend: %w", err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Email) error {
	logger.InfoContext(ctx, "dev mail", "to", msg.To, "subject", msg.Subject, "text", msg.Text)
	return nil
}
