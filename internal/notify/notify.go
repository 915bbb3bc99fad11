package notify

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/forumdigest/internal/config"
	"github.com/TobiSchelling/forumdigest/internal/report"
)

// Notifier delivers a rendered report.
type Notifier interface {
	Send(ctx context.Context, msg *report.Message) error
}

// Mailer submits mail over SMTP with password authentication. TLSMode
// "implicit" dials TLS directly (port 465); "starttls" upgrades a plain
// connection (port 587).
type Mailer struct {
	Host     string
	Port     int
	TLSMode  string
	Username string
	Password string
	From     string
	To       []string

	// TLSConfig overrides the TLS client configuration.
	TLSConfig *tls.Config
	Timeout   time.Duration
}

// NewMailer creates a Mailer from the email settings and mail secrets.
func NewMailer(e config.Email, s *config.Secrets) *Mailer {
	return &Mailer{
		Host:     e.Host,
		Port:     e.Port,
		TLSMode:  e.TLSMode,
		Username: s.SMTPUsername,
		Password: s.SMTPPassword,
		From:     s.MailFrom,
		To:       s.Recipients(),
	}
}

// Send opens one session, authenticates, sends msg and closes. It does not
// retry.
func (m *Mailer) Send(ctx context.Context, msg *report.Message) error {
	if len(m.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	timeout := m.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	tlsConfig := m.tlsConfig()

	var conn net.Conn
	var err error
	if m.TLSMode == "starttls" {
		conn, err = (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = (&tls.Dialer{Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if m.TLSMode == "starttls" {
		if err := c.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if err := c.Auth(smtp.PlainAuth("", m.Username, m.Password, m.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}

	if err := c.Mail(m.From); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	for _, rcpt := range m.To {
		if err := c.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp RCPT TO %s: %w", rcpt, err)
		}
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(BuildMessage(m.From, m.To, msg, time.Now())); err != nil {
		w.Close()
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing message: %w", err)
	}

	return c.Quit()
}

func (m *Mailer) tlsConfig() *tls.Config {
	if m.TLSConfig != nil {
		cfg := m.TLSConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = m.Host
		}
		return cfg
	}
	return &tls.Config{ServerName: m.Host, MinVersion: tls.VersionTLS12}
}

// BuildMessage renders an RFC 5322 message. Reports with an HTML body are
// sent as multipart/alternative with the plain text first.
func BuildMessage(from string, to []string, msg *report.Message, now time.Time) []byte {
	var buf bytes.Buffer

	writeHeader(&buf, "From", from)
	writeHeader(&buf, "To", strings.Join(to, ", "))
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&buf, "Date", now.Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", messageID(from, now))
	writeHeader(&buf, "MIME-Version", "1.0")

	if msg.HTML == "" {
		writeHeader(&buf, "Content-Type", "text/plain; charset=UTF-8")
		writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		writeQuotedPrintable(&buf, msg.Plain)
		return buf.Bytes()
	}

	mw := multipart.NewWriter(&buf)
	writeHeader(&buf, "Content-Type", "multipart/alternative; boundary="+mw.Boundary())
	buf.WriteString("\r\n")

	for _, part := range []struct{ contentType, body string }{
		{"text/plain; charset=UTF-8", msg.Plain},
		{"text/html; charset=UTF-8", msg.HTML},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			continue
		}
		qp := quotedprintable.NewWriter(pw)
		qp.Write([]byte(part.body))
		qp.Close()
	}
	mw.Close()
	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

func writeQuotedPrintable(buf *bytes.Buffer, body string) {
	qp := quotedprintable.NewWriter(buf)
	qp.Write([]byte(body))
	qp.Close()
}

func messageID(from string, now time.Time) string {
	domain := "localhost"
	if at := strings.LastIndex(from, "@"); at >= 0 && at < len(from)-1 {
		domain = strings.Trim(from[at+1:], "> ")
	}
	var nonce [8]byte
	rand.Read(nonce[:])
	return fmt.Sprintf("<%d.%s@%s>", now.UnixNano(), hex.EncodeToString(nonce[:]), domain)
}
