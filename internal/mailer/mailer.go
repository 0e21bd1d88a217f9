// Package mailer sends the monthly declaration to its fixed recipient.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wneessen/go-mail"
)

// Attachment is one file attached to a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is an outgoing email. The recipient is set by the sender.
type Message struct {
	Subject     string
	Body        string
	Attachments []Attachment
}

// Sender delivers messages to a configured recipient.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Recipient() string
}

// SMTPConfig holds the SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// SMTP sends messages through an SMTP server.
type SMTP struct {
	cfg SMTPConfig
}

// NewSMTP validates the configuration and returns an SMTP sender
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.From == "" || cfg.To == "" {
		return nil, fmt.Errorf("mail from and mail to are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTP{cfg: cfg}, nil
}

// Recipient returns the fixed recipient address
func (s *SMTP) Recipient() string {
	return s.cfg.To
}

// Send builds the message and delivers it
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	m, err := buildMessage(s.cfg.From, s.cfg.To, msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(30 * time.Second),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("sending mail: %w", err)
	}

	slog.Info("mail sent", "to", s.cfg.To, "subject", msg.Subject, "attachments", len(msg.Attachments))
	return nil
}

// buildMessage assembles a go-mail message
func buildMessage(from, to string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("setting from address: %w", err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("setting to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	for _, a := range msg.Attachments {
		var opts []mail.FileOption
		if a.ContentType != "" {
			opts = append(opts, mail.WithFileContentType(mail.ContentType(a.ContentType)))
		}
		if err := m.AttachReader(a.Name, bytes.NewReader(a.Data), opts...); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", a.Name, err)
		}
	}
	return m, nil
}

// Discard logs messages instead of sending them. It is used when no SMTP
// server is configured.
type Discard struct {
	To string
}

// Recipient returns the configured recipient
func (d Discard) Recipient() string {
	return d.To
}

// Send logs the message
func (d Discard) Send(_ context.Context, msg Message) error {
	slog.Warn("SMTP not configured, mail not sent", "to", d.To, "subject", msg.Subject, "attachments", len(msg.Attachments))
	return nil
}
