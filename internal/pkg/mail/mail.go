package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"syscall"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	// Filename is the display name of the attachment.
	Filename string
	// ContentType is the MIME type, e.g. "application/pdf".
	ContentType string
	// Content is the raw file content.
	Content []byte
}

// Message represents an email payload.
//
// Fields are provider-agnostic so they can be sent using SMTP or HTTP APIs.
type Message struct {
	// From is an optional explicit sender; fallback depends on implementation.
	From string
	// To lists required recipients.
	To []string
	// Subject is the email subject line.
	Subject string
	// TextBody is the plain-text body; preferred when HTMLBody is empty.
	TextBody string
	// HTMLBody is the optional HTML body.
	HTMLBody string
	// Attachments are sent as separate MIME parts.
	Attachments []Attachment
}

// Mail abstracts an email provider (SMTP, third-party API, etc).
type Mail interface {
	io.Closer
	// Send dispatches the given message using the underlying provider.
	// A message is either accepted as a whole or not at all.
	Send(ctx context.Context, msg Message) error
}

var (
	// ErrNoRecipients is returned when To is empty.
	ErrNoRecipients = errors.New("no recipients provided")
	// ErrNoSender is returned when both Message.From and the configured default From are empty.
	ErrNoSender = errors.New("no sender provided")
)

// StatusError is returned by HTTP providers when the API answers with an
// unexpected status. Body holds the response body verbatim.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// IsTransient reports whether a failed send may succeed when attempted again:
// network timeouts, refused or reset connections, HTTP 429/5xx answers and
// SMTP 4xx replies. Other transport failures such as certificate errors or
// malformed URLs are permanent.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == 429 || se.StatusCode >= 500
	}

	var tpe *textproto.Error
	if errors.As(err, &tpe) {
		return tpe.Code >= 400 && tpe.Code < 500
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, context.DeadlineExceeded)
}

func senderOf(msg Message, defaultFrom string) (string, error) {
	if len(msg.To) == 0 {
		return "", ErrNoRecipients
	}

	from := msg.From
	if from == "" {
		from = defaultFrom
	}
	if from == "" {
		return "", ErrNoSender
	}

	return from, nil
}
