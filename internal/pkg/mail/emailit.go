package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrEmailItAPIKeyRequired is returned when no API key is configured.
var ErrEmailItAPIKeyRequired = errors.New("emailit api key is required")

const defaultEmailItBaseURL = "https://api.emailit.com"

// maxErrorBody caps how much of a rejected response is kept for diagnosis.
const maxErrorBody = 64 << 10

// EmailItConfig configures the EmailIt implementation.
type EmailItConfig struct {
	// BaseURL is the API root; defaults to https://api.emailit.com.
	BaseURL string
	// APIKey is sent as a bearer token.
	APIKey string
	// From is the default sender when Message.From is empty.
	From string
	// Timeout bounds a whole request, including reading the response.
	Timeout time.Duration
	// HTTPClient overrides the client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// EmailIt is a Mail implementation backed by the EmailIt REST API.
type EmailIt struct {
	endpoint    string
	apiKey      string
	defaultFrom string
	http        *http.Client
}

type emailItAttachment struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

type emailItPayload struct {
	From        string              `json:"from"`
	To          string              `json:"to"`
	Subject     string              `json:"subject"`
	HTML        string              `json:"html,omitempty"`
	Text        string              `json:"text,omitempty"`
	Attachments []emailItAttachment `json:"attachments,omitempty"`
}

// NewEmailIt constructs an EmailIt mail sender.
func NewEmailIt(cfg EmailItConfig) (*EmailIt, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrEmailItAPIKeyRequired
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultEmailItBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &EmailIt{
		endpoint:    base + "/v1/emails",
		apiKey:      cfg.APIKey,
		defaultFrom: cfg.From,
		http:        client,
	}, nil
}

// Send posts the message to /v1/emails. Only HTTP 200 counts as accepted; any
// other status yields a *StatusError carrying the response body.
func (e *EmailIt) Send(ctx context.Context, msg Message) error {
	from, err := senderOf(msg, e.defaultFrom)
	if err != nil {
		return err
	}

	payload := emailItPayload{
		From:    from,
		To:      strings.Join(msg.To, ", "),
		Subject: msg.Subject,
		HTML:    msg.HTMLBody,
		Text:    msg.TextBody,
	}
	for _, a := range msg.Attachments {
		payload.Attachments = append(payload.Attachments, emailItAttachment{
			Filename:    a.Filename,
			Content:     base64.StdEncoding.EncodeToString(a.Content),
			ContentType: "base64",
		})
	}

	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Provider: DriverEmailIt, StatusCode: resp.StatusCode, Body: string(body)}
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// Close releases idle connections.
func (e *EmailIt) Close() error {
	e.http.CloseIdleConnections()
	return nil
}
