package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/elevare/server/internal/port/outbound"
)

// SMTPConfig holds SMTP configuration.
type SMTPConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	FromAddress string
	FromName    string
	// ImplicitTLS dials TLS directly (port 465) instead of STARTTLS.
	ImplicitTLS bool
}

// SMTPSender sends emails via SMTP.
type SMTPSender struct {
	config *SMTPConfig
	logger *zap.Logger
}

// NewSMTPSender creates a new SMTP email sender.
func NewSMTPSender(config *SMTPConfig, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{config: config, logger: logger}
}

// Send delivers one HTML message.
func (s *SMTPSender) Send(ctx context.Context, msg *outbound.EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.ContainsAny(msg.To, "\r\n") {
		return fmt.Errorf("invalid recipient %q", msg.To)
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	data := buildMessage(s.from(), msg)

	var auth smtp.Auth
	if s.config.User != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}

	var err error
	if s.config.ImplicitTLS {
		err = s.sendTLS(ctx, addr, auth, msg.To, data)
	} else {
		err = smtp.SendMail(addr, auth, s.config.FromAddress, []string{msg.To}, data)
	}
	if err != nil {
		s.logger.Error("failed to send email",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

func (s *SMTPSender) sendTLS(ctx context.Context, addr string, auth smtp.Auth, to string, data []byte) error {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: s.config.Host, MinVersion: tls.VersionTLS12}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer client.Quit()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}
	if err := client.Mail(s.config.FromAddress); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return w.Close()
}

func (s *SMTPSender) from() string {
	if s.config.FromName == "" {
		return s.config.FromAddress
	}
	return fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.config.FromName), s.config.FromAddress)
}

func buildMessage(from string, msg *outbound.EmailMessage) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTMLBody)
	return []byte(b.String())
}

// NoopSender logs messages instead of sending them. Used when SMTP is not
// configured.
type NoopSender struct {
	logger *zap.Logger
}

// NewNoopSender creates a sender that only logs.
func NewNoopSender(logger *zap.Logger) *NoopSender {
	return &NoopSender{logger: logger}
}

// Send logs the message.
func (s *NoopSender) Send(ctx context.Context, msg *outbound.EmailMessage) error {
	s.logger.Info("email not sent, smtp disabled",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// Compile-time checks
var (
	_ outbound.EmailSenderPort = (*SMTPSender)(nil)
	_ outbound.EmailSenderPort = (*NoopSender)(nil)
)
