// Package email sends owner notifications over SMTP.
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/evcraddock/propdesk/internal/auth"
)

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// IsConfigured returns true if SMTP settings are present.
func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

// UserLookup resolves a user ID to an account.
type UserLookup interface {
	GetByID(id string) (*auth.User, error)
}

// Notifier emails owners when a handover, snagging report or request changes.
// In dev mode, or when SMTP is not configured, messages are logged instead.
type Notifier struct {
	smtp    SMTPConfig
	users   UserLookup
	baseURL string
	devMode bool
	send    func(cfg SMTPConfig, to []string, subject, body string) error
}

// NewNotifier creates an owner notifier.
func NewNotifier(cfg SMTPConfig, users UserLookup, baseURL string, devMode bool) *Notifier {
	return &Notifier{smtp: cfg, users: users, baseURL: baseURL, devMode: devMode, send: Send}
}

// NotifyOwner sends subject and body to the owner's email address.
func (n *Notifier) NotifyOwner(ownerID, subject, body string) error {
	if ownerID == "" {
		return nil
	}
	u, err := n.users.GetByID(ownerID)
	if err != nil {
		return fmt.Errorf("looking up owner: %w", err)
	}

	text := FormatNotification(u.Name, body, n.baseURL)
	if n.devMode || !n.smtp.IsConfigured() {
		slog.Info("owner notification", "to", u.Email, "subject", subject, "body", text)
		return nil
	}
	return n.send(n.smtp, []string{u.Email}, "propdesk: "+subject, text)
}

// FormatNotification builds the plain-text body of an owner notification.
func FormatNotification(name, body, baseURL string) string {
	var buf bytes.Buffer

	if name == "" {
		fmt.Fprintf(&buf, "Hi,\n\n")
	} else {
		fmt.Fprintf(&buf, "Hi %s,\n\n", name)
	}
	fmt.Fprintf(&buf, "%s\n", strings.TrimSpace(body))
	if baseURL != "" {
		fmt.Fprintf(&buf, "\nSign in to review: %s\n", strings.TrimRight(baseURL, "/"))
	}
	fmt.Fprintf(&buf, "\nThanks!\n")

	return buf.String()
}

// Send sends an email via SMTP.
// Supports both port 465 (implicit TLS) and port 587 (STARTTLS).
func Send(cfg SMTPConfig, to []string, subject, body string) error {
	if !cfg.IsConfigured() {
		return fmt.Errorf("SMTP not configured")
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		cfg.From,
		strings.Join(to, ", "),
		subject,
		body,
	)

	addr := cfg.Host + ":" + cfg.Port

	if cfg.Port == "465" {
		return sendImplicitTLS(cfg, addr, to, msg)
	}
	return sendSTARTTLS(cfg, addr, to, msg)
}

// sendImplicitTLS connects over TLS directly (port 465/SMTPS).
func sendImplicitTLS(cfg SMTPConfig, addr string, to []string, msg string) error {
	tlsCfg := &tls.Config{ServerName: cfg.Host}
	conn, err := tls.Dial("tcp", addr, tlsCfg)
	if err != nil {
		return fmt.Errorf("TLS dial: %w", err)
	}

	c, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer func() {
		if quitErr := c.Quit(); quitErr != nil {
			err = fmt.Errorf("quit: %w", quitErr)
		}
	}()

	if cfg.User != "" {
		auth := smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.Mail(cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("rcpt to %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write([]byte(msg)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close data: %w", err)
	}

	return nil
}

// sendSTARTTLS connects plain then upgrades to TLS (port 587).
func sendSTARTTLS(cfg SMTPConfig, addr string, to []string, msg string) error {
	var auth smtp.Auth
	if cfg.User != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Pass, cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, cfg.From, to, []byte(msg)); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}
