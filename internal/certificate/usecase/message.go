package usecase

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/shandysiswandi/certsend/internal/certificate/entity"
)

const (
	DefaultSubject = "Certificate of Achievement"
	DefaultBody    = "Hello {{.FullName}}, congratulations!"
)

// message holds the parsed subject and body templates of one batch.
type message struct {
	subject *texttemplate.Template
	body    *htmltemplate.Template
}

func parseMessage(subject, body string) (*message, error) {
	if strings.TrimSpace(subject) == "" {
		subject = DefaultSubject
	}
	if strings.TrimSpace(body) == "" {
		body = DefaultBody
	}

	st, err := texttemplate.New("subject").Option("missingkey=error").Parse(subject)
	if err != nil {
		return nil, err
	}

	bt, err := htmltemplate.New("body").Option("missingkey=error").Parse(body)
	if err != nil {
		return nil, err
	}

	return &message{subject: st, body: bt}, nil
}

// render personalizes the message for r. The body is HTML-escaped.
func (m *message) render(r entity.Recipient) (subject, body string, err error) {
	var sb strings.Builder
	if err := m.subject.Execute(&sb, r); err != nil {
		return "", "", err
	}
	subject = sb.String()

	sb.Reset()
	if err := m.body.Execute(&sb, r); err != nil {
		return "", "", err
	}

	return subject, sb.String(), nil
}
