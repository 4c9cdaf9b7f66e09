package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net"
	netmail "net/mail"
	"net/textproto"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSMTP accepts a single session without TLS and records the DATA payload.
type fakeSMTP struct {
	addr     string
	authCode int
	data     chan string
}

func startFakeSMTP(t *testing.T, authCode int) *fakeSMTP {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	f := &fakeSMTP{addr: ln.Addr().String(), authCode: authCode, data: make(chan string, 1)}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		f.serve(textproto.NewConn(conn))
	}()

	return f
}

func (f *fakeSMTP) serve(c *textproto.Conn) {
	_ = c.PrintfLine("220 localhost ESMTP")
	for {
		line, err := c.ReadLine()
		if err != nil {
			return
		}
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch verb {
		case "EHLO", "HELO":
			_ = c.PrintfLine("250-localhost")
			_ = c.PrintfLine("250 AUTH PLAIN")
		case "AUTH":
			if f.authCode == 235 {
				_ = c.PrintfLine("235 2.7.0 Authentication successful")
			} else {
				_ = c.PrintfLine("%d 5.7.8 Username and Password not accepted", f.authCode)
			}
		case "MAIL", "RCPT":
			_ = c.PrintfLine("250 OK")
		case "DATA":
			_ = c.PrintfLine("354 Go ahead")
			b, _ := io.ReadAll(c.DotReader())
			f.data <- string(b)
			_ = c.PrintfLine("250 Queued")
		case "QUIT":
			_ = c.PrintfLine("221 Bye")
			return
		default:
			_ = c.PrintfLine("502 Not implemented")
		}
	}
}

func newTestSMTP(t *testing.T, addr string) *SMTP {
	t.Helper()

	host, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	s, err := NewSMTP(SMTPConfig{
		Host: host, Port: p, Username: "certs@example.com", Password: "pw",
		From: "certs@example.com", Timeout: 2 * time.Second, AllowInsecure: true,
	})
	require.NoError(t, err)
	return s
}

func TestSMTP_SendWithAttachment(t *testing.T) {
	t.Parallel()

	srv := startFakeSMTP(t, 235)
	s := newTestSMTP(t, srv.addr)

	err := s.Send(context.Background(), Message{
		To:          []string{"ada@example.com"},
		Subject:     "Certificate of Achievement",
		HTMLBody:    "<p>Hello Ada Lovelace, congratulations!</p>",
		Attachments: []Attachment{{Filename: "Ada Lovelace_Certificate.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3 fake")}},
	})
	require.NoError(t, err)

	raw := <-srv.data
	msg, err := netmail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "certs@example.com", msg.Header.Get("From"))
	assert.Equal(t, "ada@example.com", msg.Header.Get("To"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	mr := multipart.NewReader(msg.Body, params["boundary"])
	body, err := mr.NextPart()
	require.NoError(t, err)
	assert.Contains(t, body.Header.Get("Content-Type"), "text/html")
	html, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Hello Ada Lovelace")

	att, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace_Certificate.pdf", att.FileName())
	encoded, err := io.ReadAll(att)
	require.NoError(t, err)
	content, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(string(encoded)), ""))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.3 fake"), content)

	_, err = mr.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSMTP_AuthFailure(t *testing.T) {
	t.Parallel()

	srv := startFakeSMTP(t, 535)
	s := newTestSMTP(t, srv.addr)

	err := s.Send(context.Background(), Message{To: []string{"ada@example.com"}, Subject: "s", HTMLBody: "b"})

	var tpe *textproto.Error
	require.ErrorAs(t, err, &tpe)
	assert.Equal(t, 535, tpe.Code)
	assert.False(t, IsTransient(err))
}

func TestSMTP_RequiresStartTLS(t *testing.T) {
	t.Parallel()

	srv := startFakeSMTP(t, 235)
	s := newTestSMTP(t, srv.addr)
	s.allowInsecure = false

	err := s.Send(context.Background(), Message{To: []string{"ada@example.com"}, Subject: "s", TextBody: "b"})
	require.ErrorIs(t, err, ErrSMTPStartTLSUnsupported)
}

func TestBuildMessage_Alternative(t *testing.T) {
	t.Parallel()

	raw, err := buildMessage("a@example.com", Message{To: []string{"b@example.com"}, Subject: "Zertifikat für Ada", TextBody: "plain", HTMLBody: "<b>html</b>"})
	require.NoError(t, err)

	msg, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	subject, err := new(mime.WordDecoder).DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Zertifikat für Ada", subject)

	mediaType, _, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)
}

func TestNewSMTP_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewSMTP(SMTPConfig{})
	require.ErrorIs(t, err, ErrSMTPHostPortRequired)
}
