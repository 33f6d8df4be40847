// Package mailer delivers one-time codes. Delivery is best-effort: callers log a
// failed Send and carry on.
package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"attendsheets/internal/queue"
)

// MessageType tags mail jobs on the queue.
const MessageType = "mail"

// Mailer sends a single plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Envelope is one outgoing message.
type Envelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// SMTPConfig holds server settings for SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPMailer sends synchronously over SMTP.
type SMTPMailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP creates an SMTPMailer.
func NewSMTP(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.cfg.From, to, subject, body)
	addr := m.cfg.Host + ":" + m.cfg.Port

	var a smtp.Auth
	if m.cfg.Username != "" {
		a = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return m.send(addr, a, m.cfg.From, []string{to}, []byte(msg))
}

// QueueMailer hands messages to the worker through a queue. A nil error means the
// job was enqueued, not that it reached the inbox.
type QueueMailer struct {
	q queue.Queue
}

// NewQueued creates a QueueMailer publishing to q.
func NewQueued(q queue.Queue) *QueueMailer {
	return &QueueMailer{q: q}
}

func (m *QueueMailer) Send(ctx context.Context, to, subject, body string) error {
	raw, err := json.Marshal(Envelope{To: to, Subject: subject, Body: body})
	if err != nil {
		return err
	}
	return m.q.Publish(ctx, queue.Message{Type: MessageType, Body: raw})
}

// LogMailer writes messages to the log instead of sending them. Used in development.
type LogMailer struct {
	log *zap.Logger
}

// NewLog creates a LogMailer.
func NewLog(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.log.Info("mail (not sent)", zap.String("to", to), zap.String("subject", subject), zap.String("body", body))
	return nil
}

// Decode parses a queued mail job.
func Decode(msg queue.Message) (Envelope, error) {
	if msg.Type != MessageType {
		return Envelope{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	var env Envelope
	if err := json.Unmarshal(msg.Body, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode mail job: %w", err)
	}
	return env, nil
}
