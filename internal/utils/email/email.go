package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"go.uber.org/zap"

	"github.com/todoapp/auth-service/internal/config"
)

// Mailer delivers transactional mail. The auth flows only need the two
// token mails; templating beyond simple substitution lives with the caller.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// smtpDialTimeout caps connection establishment when the caller's context
// carries no deadline of its own.
const smtpDialTimeout = 10 * time.Second

// Client sends mail over SMTP with implicit TLS.
type Client struct {
	config config.SMTPConfig
	logger *zap.Logger
}

func NewClient(cfg config.SMTPConfig, logger *zap.Logger) *Client {
	return &Client{config: cfg, logger: logger}
}

func (c *Client) SendVerificationEmail(ctx context.Context, to, token string) error {
	body := fmt.Sprintf(
		"<p>Welcome! Please confirm your email address.</p>"+
			"<p>Your verification token: <b>%s</b></p>"+
			"<p>The token expires in 24 hours.</p>", token)
	return c.send(ctx, to, "Verify your email address", body)
}

func (c *Client) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	body := fmt.Sprintf(
		"<p>A password reset was requested for your account.</p>"+
			"<p>Your reset token: <b>%s</b></p>"+
			"<p>The token expires in 1 hour. If you did not request this, ignore this message.</p>", token)
	return c.send(ctx, to, "Reset your password", body)
}

func (c *Client) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", c.config.FromName, c.config.FromEmail),
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=UTF-8",
		"Date":         time.Now().Format(time.RFC1123Z),
	}

	var message bytes.Buffer
	for k, v := range headers {
		fmt.Fprintf(&message, "%s: %s\r\n", k, v)
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	auth := smtp.PlainAuth("", c.config.Username, c.config.Password, c.config.Host)
	tlsConfig := &tls.Config{ServerName: c.config.Host}

	dialer := &net.Dialer{Timeout: smtpDialTimeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	conn, err := tls.DialWithDialer(dialer, "tcp", fmt.Sprintf("%s:%d", c.config.Host, c.config.Port), tlsConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		// The deadline covers the whole SMTP session, not just the dial.
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, c.config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}
	if err := client.Mail(c.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(message.Bytes()); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err = client.Quit(); err != nil {
		return fmt.Errorf("failed to quit SMTP session: %w", err)
	}

	c.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

// NoopMailer logs instead of sending. Used when SMTP is not configured, so
// development environments can read tokens from the log.
type NoopMailer struct {
	Logger *zap.Logger
}

func (m NoopMailer) SendVerificationEmail(_ context.Context, to, token string) error {
	m.Logger.Info("smtp disabled, verification token not mailed",
		zap.String("to", to), zap.String("token", token))
	return nil
}

func (m NoopMailer) SendPasswordResetEmail(_ context.Context, to, token string) error {
	m.Logger.Info("smtp disabled, reset token not mailed",
		zap.String("to", to), zap.String("token", token))
	return nil
}

var (
	_ Mailer = (*Client)(nil)
	_ Mailer = NoopMailer{}
)
