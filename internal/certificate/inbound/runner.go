package inbound

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/certificate/usecase"
)

const (
	ModePreview = "preview"
	ModeSend    = "send"

	previewLinkExpiry = 24 * time.Hour
)

var (
	ErrUnknownMode   = errors.New("unknown run mode")
	ErrNoRecipients  = errors.New("no recipient to preview")
	ErrNoTemplateRef = errors.New("template reference is required")
)

type uc interface {
	Preview(ctx context.Context, in usecase.PreviewInput) (*entity.Artifact, error)
	ProcessBatch(ctx context.Context, in usecase.BatchInput) (*entity.Report, error)
}

type files interface {
	ReadFile(ctx context.Context, ref string) ([]byte, error)
	WriteFile(ctx context.Context, ref, contentType string, data []byte) (string, error)
}

// RunConfig describes a single run.
type RunConfig struct {
	Mode           string
	RecipientsPath string
	// TemplateRef is a file path or storage:// URI for the local renderer and
	// a presentation id for the remote one.
	TemplateRef    string
	RemoteTemplate bool
	Overlay        entity.Overlay
	Subject        string
	Body           string
	PreviewName    string
	PreviewOutput  string
}

// Runner drives one preview or send run from configuration.
type Runner struct {
	uc    uc
	files files
	cfg   RunConfig
}

func NewRunner(uc uc, f files, cfg RunConfig) *Runner {
	if cfg.Mode == "" {
		cfg.Mode = ModeSend
	}
	return &Runner{uc: uc, files: f, cfg: cfg}
}

// Run executes the configured mode. Per-recipient failures are reported in
// the log; an error means the run could not start.
func (r *Runner) Run(ctx context.Context) error {
	switch r.cfg.Mode {
	case ModePreview:
		return r.preview(ctx)
	case ModeSend:
		_, err := r.send(ctx)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, r.cfg.Mode)
	}
}

func (r *Runner) preview(ctx context.Context) error {
	tpl, err := r.template(ctx)
	if err != nil {
		return err
	}

	name := r.cfg.PreviewName
	if name == "" {
		recipients, err := r.recipients(ctx)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			return ErrNoRecipients
		}
		name = recipients[0].FullName
	}

	art, err := r.uc.Preview(ctx, usecase.PreviewInput{Template: tpl, FullName: name, Overlay: r.cfg.Overlay})
	if err != nil {
		return fmt.Errorf("preview %q: %w", name, err)
	}

	output := r.cfg.PreviewOutput
	if output == "" {
		output = "preview" + extensionOf(art.ContentType)
	}

	link, err := r.files.WriteFile(ctx, output, art.ContentType, art.Data)
	if err != nil {
		slog.ErrorContext(ctx, "failed to write preview", "output", output, "error", err)
		return err
	}

	slog.InfoContext(ctx, "preview written", "full_name", name, "output", output, "link", link,
		"width", art.Width, "height", art.Height)

	return nil
}

func (r *Runner) send(ctx context.Context) (*entity.Report, error) {
	tpl, err := r.template(ctx)
	if err != nil {
		return nil, err
	}

	recipients, err := r.recipients(ctx)
	if err != nil {
		return nil, err
	}

	report, err := r.uc.ProcessBatch(ctx, usecase.BatchInput{
		Template:   tpl,
		Overlay:    r.cfg.Overlay,
		Recipients: recipients,
		Subject:    r.cfg.Subject,
		Body:       r.cfg.Body,
	})
	if err != nil {
		return nil, err
	}

	for _, o := range report.Outcomes {
		switch o.Status {
		case entity.StatusSuccess:
			slog.InfoContext(ctx, o.Detail)
		case entity.StatusSkipped:
			slog.WarnContext(ctx, o.Detail, "email", o.Recipient.Email)
		default:
			slog.ErrorContext(ctx, o.Detail, "email", o.Recipient.Email, "stage", o.Stage.String())
		}
	}

	return report, nil
}

func (r *Runner) template(ctx context.Context) (entity.Template, error) {
	if r.cfg.TemplateRef == "" {
		return entity.Template{}, ErrNoTemplateRef
	}

	if r.cfg.RemoteTemplate {
		return entity.Template{DocumentID: r.cfg.TemplateRef}, nil
	}

	data, err := r.files.ReadFile(ctx, r.cfg.TemplateRef)
	if err != nil {
		return entity.Template{}, fmt.Errorf("load template: %w", err)
	}

	return entity.Template{Image: data}, nil
}

func (r *Runner) recipients(ctx context.Context) ([]entity.Recipient, error) {
	data, err := r.files.ReadFile(ctx, r.cfg.RecipientsPath)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}

	return ReadRecipients(bytes.NewReader(data))
}

// extensionOf maps a rendered image content type to a file extension.
func extensionOf(contentType string) string {
	switch sub, _ := strings.CutPrefix(contentType, "image/"); sub {
	case "jpeg", "":
		return ".jpg"
	default:
		return "." + sub
	}
}
