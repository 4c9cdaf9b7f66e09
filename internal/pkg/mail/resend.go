package mail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v3"
)

// ErrResendAPIKeyRequired is returned when no API key is configured.
var ErrResendAPIKeyRequired = errors.New("resend api key is required")

// ResendConfig configures the Resend implementation.
type ResendConfig struct {
	// APIKey authenticates against the Resend API.
	APIKey string
	// From is the default sender when Message.From is empty.
	From string
	// BaseURL overrides the API root; mostly for tests.
	BaseURL string
	// Timeout bounds a whole request.
	Timeout time.Duration
}

// Resend is a Mail implementation backed by github.com/resend/resend-go.
type Resend struct {
	client      *resend.Client
	defaultFrom string
}

// NewResend constructs a Resend mail sender.
func NewResend(cfg ResendConfig) (*Resend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrResendAPIKeyRequired
	}

	client := resend.NewCustomClient(&http.Client{Timeout: cfg.Timeout}, cfg.APIKey)
	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("resend base url: %w", err)
		}
		client.BaseURL = u
	}

	return &Resend{client: client, defaultFrom: cfg.From}, nil
}

// Send implements Mail.
func (r *Resend) Send(ctx context.Context, msg Message) error {
	req, err := r.request(msg)
	if err != nil {
		return err
	}

	if _, err := r.client.Emails.SendWithContext(ctx, req); err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}

	return nil
}

func (r *Resend) request(msg Message) (*resend.SendEmailRequest, error) {
	from, err := senderOf(msg, r.defaultFrom)
	if err != nil {
		return nil, err
	}

	req := &resend.SendEmailRequest{
		From:    from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTMLBody,
		Text:    msg.TextBody,
	}
	for _, a := range msg.Attachments {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.ContentType,
		})
	}

	return req, nil
}

// Close implements io.Closer for interface compatibility.
func (r *Resend) Close() error {
	return nil
}
