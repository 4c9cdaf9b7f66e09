package mail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailIt_Send(t *testing.T) {
	t.Parallel()

	var got emailItPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/emails", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	m, err := NewEmailIt(EmailItConfig{BaseURL: srv.URL + "/", APIKey: "secret", From: "certs@example.com", Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	err = m.Send(context.Background(), Message{
		To:          []string{"ada@example.com"},
		Subject:     "Certificate of Achievement",
		HTMLBody:    "<p>Hello Ada</p>",
		Attachments: []Attachment{{Filename: "Ada Lovelace_Certificate.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3")}},
	})
	require.NoError(t, err)

	assert.Equal(t, "certs@example.com", got.From)
	assert.Equal(t, "ada@example.com", got.To)
	assert.Equal(t, "<p>Hello Ada</p>", got.HTML)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "Ada Lovelace_Certificate.pdf", got.Attachments[0].Filename)
	assert.Equal(t, "base64", got.Attachments[0].ContentType)
	decoded, err := base64.StdEncoding.DecodeString(got.Attachments[0].Content)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.3"), decoded)
}

func TestEmailIt_NonOKStatus(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusCreated, http.StatusUnprocessableEntity, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"domain not verified"}`))
		}))

		m, err := NewEmailIt(EmailItConfig{BaseURL: srv.URL, APIKey: "k", From: "a@example.com"})
		require.NoError(t, err)

		err = m.Send(context.Background(), Message{To: []string{"b@example.com"}, Subject: "s"})
		srv.Close()

		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, status, se.StatusCode)
		assert.Equal(t, `{"error":"domain not verified"}`, se.Body)
		assert.Contains(t, err.Error(), `{"error":"domain not verified"}`)
	}
}

func TestEmailIt_RequiresSender(t *testing.T) {
	t.Parallel()

	m, err := NewEmailIt(EmailItConfig{APIKey: "k"})
	require.NoError(t, err)

	require.ErrorIs(t, m.Send(context.Background(), Message{To: []string{"b@example.com"}}), ErrNoSender)
	require.ErrorIs(t, m.Send(context.Background(), Message{}), ErrNoRecipients)
}
