// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/mail"
	"net/smtp"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/simscript/internal/core"
)

// Mail limits.
const (
	MaxMailBytes = 4096
)

// Mail is one outbound message.
type Mail struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers mail.
type Mailer interface {
	Send(ctx context.Context, m Mail) error
}

// ValidateAddress checks a script-supplied recipient.
func ValidateAddress(addr string) error {
	if _, err := mail.ParseAddress(addr); err != nil {
		return oops.Code(core.CodeInvalidArgument).With("address", addr).Wrapf(err, "invalid address")
	}
	return nil
}

// SMTPConfig configures an SMTPMailer.
type SMTPConfig struct {
	Addr     string
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPMailer delivers through an SMTP relay.
type SMTPMailer struct {
	addr    string
	host    string
	auth    smtp.Auth
	timeout time.Duration
}

var _ Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer creates a mailer for the relay at cfg.Addr (host:port).
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, oops.Code(core.CodeInvalidArgument).With("addr", cfg.Addr).Wrapf(err, "invalid SMTP address")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	m := &SMTPMailer{addr: cfg.Addr, host: host, timeout: timeout}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return m, nil
}

// Send implements Mailer.
func (s *SMTPMailer) Send(ctx context.Context, m Mail) error {
	if err := ValidateAddress(m.To); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return core.ErrCollaboratorUnavailable("smtp", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline) //nolint:errcheck // fresh connection
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return core.ErrCollaboratorUnavailable("smtp", err)
	}
	defer c.Close()

	if err := s.deliver(c, m); err != nil {
		return core.ErrCollaboratorUnavailable("smtp", oops.With("to", m.To).Wrap(err))
	}
	return nil
}

func (s *SMTPMailer) deliver(c *smtp.Client, m Mail) error {
	if ok, _ := c.Extension("STARTTLS"); ok && s.auth != nil {
		if err := c.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
			return err
		}
	}
	if s.auth != nil {
		if err := c.Auth(s.auth); err != nil {
			return err
		}
	}
	if err := c.Mail(m.From); err != nil {
		return err
	}
	if err := c.Rcpt(m.To); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(Render(m)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// Render formats m as an RFC 5322 message, truncating the body so the whole
// message fits MaxMailBytes.
func Render(m Mail) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", stripNewlines(m.Subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")

	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")
	if room := MaxMailBytes - b.Len(); len(body) > room {
		body = body[:max(room, 0)]
	}
	b.WriteString(body)
	return []byte(b.String())
}

func stripNewlines(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// LogMailer logs mail instead of sending it. It is used when no relay is
// configured.
type LogMailer struct {
	logger *slog.Logger
}

var _ Mailer = (*LogMailer)(nil)

// NewLogMailer creates a mailer that writes to logger, or slog.Default if nil.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send implements Mailer.
func (l *LogMailer) Send(ctx context.Context, m Mail) error {
	if err := ValidateAddress(m.To); err != nil {
		return err
	}
	l.logger.InfoContext(ctx, "mail not sent: no relay configured",
		"from", m.From,
		"to", m.To,
		"subject", m.Subject,
		"bytes", len(m.Body))
	return nil
}
