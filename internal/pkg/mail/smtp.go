package mail

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"strings"
	"time"
)

var (
	// ErrSMTPHostPortRequired is returned when Host/Port are missing.
	ErrSMTPHostPortRequired = errors.New("smtp host and port are required")
	// ErrSMTPStartTLSUnsupported is returned when the server cannot upgrade to TLS.
	ErrSMTPStartTLSUnsupported = errors.New("smtp server does not support STARTTLS")
)

// SMTP is a Mail implementation backed by net/smtp.
//
// Every Send opens its own session: dial, STARTTLS, AUTH, MAIL/RCPT/DATA, QUIT.
type SMTP struct {
	addr          string
	host          string
	defaultFrom   string
	auth          smtp.Auth
	timeout       time.Duration
	allowInsecure bool
	tlsConfig     *tls.Config
}

// SMTPConfig configures the SMTP implementation.
type SMTPConfig struct {
	// Host is the SMTP server hostname.
	Host string
	// Port is the SMTP server port, usually 587 for submission.
	Port int
	// Username is the SMTP authentication username.
	Username string
	// Password is the SMTP authentication password.
	Password string
	// From is the default sender when Message.From is empty.
	From string
	// Timeout bounds dialing and the whole session when the context has no deadline.
	Timeout time.Duration
	// AllowInsecure skips STARTTLS when the server does not offer it.
	AllowInsecure bool
}

// NewSMTP constructs an SMTP mail sender.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, ErrSMTPHostPortRequired
	}

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SMTP{
		addr:          net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		host:          cfg.Host,
		defaultFrom:   cfg.From,
		auth:          auth,
		timeout:       timeout,
		allowInsecure: cfg.AllowInsecure,
		tlsConfig:     &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
	}, nil
}

// Send delivers a message over SMTP.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	from, err := senderOf(msg, s.defaultFrom)
	if err != nil {
		return err
	}

	raw, err := buildMessage(from, msg)
	if err != nil {
		return err
	}

	dialer := &net.Dialer{Timeout: s.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return err
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer func() { _ = client.Close() }()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(s.tlsConfig); err != nil {
			return err
		}
	} else if !s.allowInsecure {
		return ErrSMTPStartTLSUnsupported
	}

	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return err
		}
	}

	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range msg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return client.Quit()
}

// Close implements io.Closer for interface compatibility.
func (s *SMTP) Close() error {
	return nil
}

func buildMessage(from string, msg Message) ([]byte, error) {
	var sb strings.Builder

	header := textproto.MIMEHeader{}
	header.Set("From", from)
	header.Set("To", strings.Join(msg.To, ", "))
	header.Set("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header.Set("MIME-Version", "1.0")

	if len(msg.Attachments) == 0 {
		body, contentType, err := buildBody(msg)
		if err != nil {
			return nil, err
		}
		header.Set("Content-Type", contentType)
		if !strings.HasPrefix(contentType, "multipart/") {
			header.Set("Content-Transfer-Encoding", "quoted-printable")
		}
		writeHeader(&sb, header)
		sb.WriteString(body)
		return []byte(sb.String()), nil
	}

	var parts strings.Builder
	mw := multipart.NewWriter(&parts)
	if err := mw.SetBoundary(multipartBoundary()); err != nil {
		return nil, err
	}

	body, contentType, err := buildBody(msg)
	if err != nil {
		return nil, err
	}
	bodyHeader := textproto.MIMEHeader{}
	bodyHeader.Set("Content-Type", contentType)
	if !strings.HasPrefix(contentType, "multipart/") {
		bodyHeader.Set("Content-Transfer-Encoding", "quoted-printable")
	}
	pw, err := mw.CreatePart(bodyHeader)
	if err != nil {
		return nil, err
	}
	if _, err := pw.Write([]byte(body)); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		ah := textproto.MIMEHeader{}
		ah.Set("Content-Type", mime.FormatMediaType(a.ContentType, map[string]string{"name": a.Filename}))
		ah.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename}))
		ah.Set("Content-Transfer-Encoding", "base64")
		aw, err := mw.CreatePart(ah)
		if err != nil {
			return nil, err
		}
		if _, err := aw.Write(wrapBase64(a.Content)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	header.Set("Content-Type", "multipart/mixed; boundary="+mw.Boundary())
	writeHeader(&sb, header)
	sb.WriteString(parts.String())

	return []byte(sb.String()), nil
}

// buildBody returns the encoded body and its content type. Single parts are
// quoted-printable; text plus HTML becomes multipart/alternative.
func buildBody(msg Message) (body string, contentType string, err error) {
	if msg.HTMLBody != "" && msg.TextBody != "" {
		var sb strings.Builder
		mw := multipart.NewWriter(&sb)
		if err := mw.SetBoundary(multipartBoundary()); err != nil {
			return "", "", err
		}
		for _, p := range []struct{ ct, content string }{
			{"text/plain; charset=UTF-8", msg.TextBody},
			{"text/html; charset=UTF-8", msg.HTMLBody},
		} {
			h := textproto.MIMEHeader{}
			h.Set("Content-Type", p.ct)
			h.Set("Content-Transfer-Encoding", "quoted-printable")
			w, err := mw.CreatePart(h)
			if err != nil {
				return "", "", err
			}
			if _, err := w.Write([]byte(quotedPrintable(p.content))); err != nil {
				return "", "", err
			}
		}
		if err := mw.Close(); err != nil {
			return "", "", err
		}
		return sb.String(), "multipart/alternative; boundary=" + mw.Boundary(), nil
	}

	if msg.HTMLBody != "" {
		return quotedPrintable(msg.HTMLBody), "text/html; charset=UTF-8", nil
	}

	return quotedPrintable(msg.TextBody), "text/plain; charset=UTF-8", nil
}

func writeHeader(sb *strings.Builder, h textproto.MIMEHeader) {
	for _, k := range []string{"From", "To", "Subject", "MIME-Version", "Content-Type"} {
		if v := h.Get(k); v != "" {
			fmt.Fprintf(sb, "%s: %s\r\n", k, v)
		}
	}
	if v := h.Get("Content-Transfer-Encoding"); v != "" {
		fmt.Fprintf(sb, "Content-Transfer-Encoding: %s\r\n", v)
	}
	sb.WriteString("\r\n")
}

func quotedPrintable(s string) string {
	var sb strings.Builder
	w := quotedprintable.NewWriter(&sb)
	_, _ = w.Write([]byte(s))
	_ = w.Close()
	return sb.String()
}

func wrapBase64(data []byte) []byte {
	const lineLen = 76
	enc := base64.StdEncoding.EncodeToString(data)
	out := make([]byte, 0, len(enc)+len(enc)/lineLen*2+2)
	for len(enc) > lineLen {
		out = append(out, enc[:lineLen]...)
		out = append(out, '\r', '\n')
		enc = enc[lineLen:]
	}
	out = append(out, enc...)
	return append(out, '\r', '\n')
}

func multipartBoundary() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "certsend-boundary-fallback"
	}
	return "certsend-boundary-" + hex.EncodeToString(b[:])
}
