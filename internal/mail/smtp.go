package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"time"

	"go.uber.org/zap"

	"github.com/pharmaprep/platform-api/internal/config"
)

// SMTPMailer delivers mail over SMTP with STARTTLS (or implicit TLS on 465).
type SMTPMailer struct {
	cfg    config.MailConfig
	auth   smtp.Auth
	logger *zap.Logger
}

// NewSMTPMailer constructs the mailer.
func NewSMTPMailer(cfg config.MailConfig, logger *zap.Logger) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPHost)
	}
	return &SMTPMailer{cfg: cfg, auth: auth, logger: logger}
}

// Send delivers a multipart/alternative message to a single recipient.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	msg := m.buildMessage(to, subject, htmlBody, textBody)
	address := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)

	deadline := m.cfg.Timeout()
	if remaining, ok := ctx.Deadline(); ok {
		if d := time.Until(remaining); d < deadline {
			deadline = d
		}
	}

	// Port 465 = implicit TLS, otherwise STARTTLS.
	if m.cfg.SMTPPort == 465 {
		return m.sendImplicitTLS(address, to, msg, deadline)
	}
	return m.sendSTARTTLS(address, to, msg, deadline)
}

func (m *SMTPMailer) sendImplicitTLS(address, to string, msg []byte, timeout time.Duration) error {
	tlsConfig := &tls.Config{ServerName: m.cfg.SMTPHost}

	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: timeout}, "tcp", address, tlsConfig)
	if err != nil {
		return fmt.Errorf("dial smtp (implicit tls): %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	return m.sendViaClient(client, to, msg)
}

func (m *SMTPMailer) sendSTARTTLS(address, to string, msg []byte, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.SMTPHost)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: m.cfg.SMTPHost}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}

	return m.sendViaClient(client, to, msg)
}

func (m *SMTPMailer) sendViaClient(client *smtp.Client, to string, msg []byte) error {
	if m.auth != nil {
		if err := client.Auth(m.auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return client.Quit()
}

const mimeBoundary = "np-alt-boundary"

func (m *SMTPMailer) buildMessage(to, subject, htmlBody, textBody string) []byte {
	encodedSubject := mime.QEncoding.Encode("utf-8", subject)
	encodedSender := mime.QEncoding.Encode("utf-8", m.cfg.SenderName)
	date := time.Now().Format(time.RFC1123Z)

	return fmt.Appendf(nil,
		"Date: %s\r\n"+
			"To: %s\r\n"+
			"From: %s <%s>\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: multipart/alternative; boundary=\"%s\"\r\n"+
			"\r\n"+
			"--%s\r\n"+
			"Content-Type: text/plain; charset=\"utf-8\"\r\n"+
			"\r\n"+
			"%s\r\n"+
			"--%s\r\n"+
			"Content-Type: text/html; charset=\"utf-8\"\r\n"+
			"\r\n"+
			"%s\r\n"+
			"--%s--\r\n",
		date, to, encodedSender, m.cfg.From, encodedSubject, mimeBoundary,
		mimeBoundary, textBody, mimeBoundary, htmlBody, mimeBoundary,
	)
}
