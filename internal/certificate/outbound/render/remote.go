package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/goerror"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"github.com/shandysiswandi/certsend/internal/pkg/uid"
)

var ErrNoDocument = errors.New("render: template document id is empty")

const (
	defaultPlaceholder   = "{{NAME}}"
	defaultRemoteTimeout = 60 * time.Second
	cleanupTimeout       = 30 * time.Second
)

// TemplateService is the remote document API used by Remote.
type TemplateService interface {
	Duplicate(ctx context.Context, templateID, name string) (string, error)
	ReplaceAllText(ctx context.Context, documentID, token, replacement string) (int64, error)
	ExportFirstPage(ctx context.Context, documentID string) ([]byte, error)
	Delete(ctx context.Context, documentID string) error
}

// RemoteConfig configures the slide template renderer.
type RemoteConfig struct {
	// Placeholder is the exact, case-sensitive token replaced by the name.
	Placeholder string
	// Timeout bounds one render, cleanup excluded.
	Timeout time.Duration
	// IDs names the clones; random UUIDs when nil.
	IDs uid.StringID
}

// Remote renders a throwaway copy of a slide template per recipient.
type Remote struct {
	svc         TemplateService
	placeholder string
	timeout     time.Duration
	ids         uid.StringID
	ins         instrument.Instrumentation
}

func NewRemote(svc TemplateService, cfg RemoteConfig, ins instrument.Instrumentation) *Remote {
	r := &Remote{
		svc:         svc,
		placeholder: cfg.Placeholder,
		timeout:     cfg.Timeout,
		ids:         cfg.IDs,
		ins:         ins,
	}
	if r.placeholder == "" {
		r.placeholder = defaultPlaceholder
	}
	if r.timeout <= 0 {
		r.timeout = defaultRemoteTimeout
	}
	if r.ids == nil {
		r.ids = uid.NewUUID()
	}

	return r
}

func (r *Remote) Render(ctx context.Context, in entity.RenderInput) (art *entity.Artifact, err error) {
	ctx, span := startSpan(ctx, r.ins, "Remote.Render")
	defer func() {
		if err != nil {
			slog.ErrorContext(ctx, "failed to render certificate", "full_name", in.FullName, "error", err)
		}
		endSpan(span, err)
	}()

	if in.Template.DocumentID == "" {
		return nil, goerror.NewRender("duplicate template", ErrNoDocument)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cloneID, err := r.svc.Duplicate(callCtx, in.Template.DocumentID, "certificate-"+r.ids.Generate())
	if err != nil {
		return nil, goerror.NewRender("duplicate template", err)
	}
	defer r.release(ctx, cloneID, in.FullName)

	changed, err := r.svc.ReplaceAllText(callCtx, cloneID, r.placeholder, in.FullName)
	if err != nil {
		return nil, goerror.NewRender("replace placeholder", err)
	}
	if changed == 0 {
		slog.WarnContext(ctx, "placeholder not found in template", "full_name", in.FullName, "placeholder", r.placeholder)
	}

	data, err := r.svc.ExportFirstPage(callCtx, cloneID)
	if err != nil {
		return nil, goerror.NewRender("export first page", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, goerror.NewRender("read exported page", err)
	}

	return &entity.Artifact{
		Data:        data,
		ContentType: "image/" + format,
		Width:       cfg.Width,
		Height:      cfg.Height,
	}, nil
}

// release deletes the clone even when ctx is already done. A failure is
// logged and never changes the render result.
func (r *Remote) release(ctx context.Context, cloneID, fullName string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := r.svc.Delete(ctx, cloneID); err != nil {
		slog.ErrorContext(ctx, "failed to delete template clone",
			"clone_id", cloneID, "full_name", fullName, "error", goerror.NewCleanup(err))
	}
}
