package email

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/goerror"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"github.com/shandysiswandi/certsend/internal/pkg/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedMail struct {
	mu    sync.Mutex
	errs  []error
	calls []mail.Message
}

func (s *scriptedMail) Send(_ context.Context, msg mail.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, msg)
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

func (s *scriptedMail) Close() error { return nil }

func testConfig() Config {
	return Config{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, AttemptTimeout: time.Second}
}

func testInput() entity.Delivery {
	return entity.Delivery{
		Recipient: entity.Recipient{FullName: "Ada Lovelace", Email: "ada@example.com"},
		Subject:   "Your certificate",
		Body:      "<p>Hello Ada Lovelace, congratulations!</p>",
		Document:  &entity.Document{Data: []byte("%PDF-1.3")},
	}
}

func TestDeliverer_BuildsAttachment(t *testing.T) {
	t.Parallel()

	m := &scriptedMail{}
	require.NoError(t, NewDeliverer(m, testConfig(), instrument.NewNoop()).Deliver(context.Background(), testInput()))

	require.Len(t, m.calls, 1)
	msg := m.calls[0]
	assert.Equal(t, []string{"ada@example.com"}, msg.To)
	assert.Equal(t, "Your certificate", msg.Subject)
	assert.Equal(t, []mail.Attachment{{Filename: "Ada Lovelace_Certificate.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3")}}, msg.Attachments)
}

func TestDeliverer_RetriesTransient(t *testing.T) {
	t.Parallel()

	m := &scriptedMail{errs: []error{
		&mail.StatusError{Provider: "emailit", StatusCode: 503, Body: "busy"},
		&mail.StatusError{Provider: "emailit", StatusCode: 429, Body: "slow down"},
	}}

	require.NoError(t, NewDeliverer(m, testConfig(), instrument.NewNoop()).Deliver(context.Background(), testInput()))
	assert.Len(t, m.calls, 3)
}

func TestDeliverer_StopsAfterMaxRetries(t *testing.T) {
	t.Parallel()

	busy := &mail.StatusError{Provider: "emailit", StatusCode: 502, Body: "bad gateway"}
	m := &scriptedMail{errs: []error{busy, busy, busy, busy}}

	err := NewDeliverer(m, testConfig(), instrument.NewNoop()).Deliver(context.Background(), testInput())
	require.ErrorIs(t, err, goerror.ErrDelivery)
	assert.Len(t, m.calls, 3)
}

func TestDeliverer_PermanentFailureIsNotRetried(t *testing.T) {
	t.Parallel()

	m := &scriptedMail{errs: []error{&mail.StatusError{Provider: "emailit", StatusCode: 401, Body: `{"error":"invalid api key"}`}}}

	err := NewDeliverer(m, testConfig(), instrument.NewNoop()).Deliver(context.Background(), testInput())
	require.ErrorIs(t, err, goerror.ErrDelivery)
	assert.Contains(t, err.Error(), `{"error":"invalid api key"}`)
	assert.Len(t, m.calls, 1)
}

func TestDeliverer_MissingDocument(t *testing.T) {
	t.Parallel()

	m := &scriptedMail{}
	in := testInput()
	in.Document = nil

	err := NewDeliverer(m, testConfig(), instrument.NewNoop()).Deliver(context.Background(), in)
	require.ErrorIs(t, err, ErrNoDocument)
	assert.Empty(t, m.calls)
}

func TestDeliverer_EmailItPayload(t *testing.T) {
	t.Parallel()

	var payload struct {
		From        string `json:"from"`
		To          string `json:"to"`
		Subject     string `json:"subject"`
		HTML        string `json:"html"`
		Attachments []struct {
			Filename    string `json:"filename"`
			Content     string `json:"content"`
			ContentType string `json:"content_type"`
		} `json:"attachments"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/emails", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, err := mail.NewEmailIt(mail.EmailItConfig{BaseURL: srv.URL, APIKey: "key-1", From: "certs@example.com"})
	require.NoError(t, err)

	require.NoError(t, NewDeliverer(m, testConfig(), instrument.NewNoop()).Deliver(context.Background(), testInput()))

	assert.Equal(t, "certs@example.com", payload.From)
	assert.Equal(t, "ada@example.com", payload.To)
	assert.Equal(t, "<p>Hello Ada Lovelace, congratulations!</p>", payload.HTML)
	require.Len(t, payload.Attachments, 1)
	assert.Equal(t, "Ada Lovelace_Certificate.pdf", payload.Attachments[0].Filename)
	assert.Equal(t, "base64", payload.Attachments[0].ContentType)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.3")), payload.Attachments[0].Content)
}
