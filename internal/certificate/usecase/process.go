package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/goerror"
	"github.com/shandysiswandi/certsend/internal/pkg/stacktrace"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrPanic        = errors.New("panic while processing recipient")
	ErrAlreadySent  = errors.New("certificate already sent in this campaign")
	ErrInProgress   = errors.New("certificate is being sent by another run")
	ErrBlankRecord  = errors.New("full name and email are required")
	ErrNotProcessed = errors.New("recipient not processed")
)

type ProcessInput struct {
	Template  entity.Template
	Overlay   entity.Overlay
	Recipient entity.Recipient
	Subject   string
	Body      string
}

// Process runs render, package and deliver for one recipient and always
// returns exactly one outcome.
func (s *Usecase) Process(ctx context.Context, in ProcessInput) entity.Outcome {
	msg, err := parseMessage(in.Subject, in.Body)
	if err != nil {
		r := in.Recipient.Normalize()
		slog.ErrorContext(ctx, "failed to parse message template", "full_name", r.FullName, "email", r.Email, "error", err)
		return entity.FailureOutcome(r, entity.StagePending, goerror.NewInvalidInput(err))
	}

	return s.process(ctx, in.Template, in.Overlay, in.Recipient, msg)
}

func (s *Usecase) process(ctx context.Context, tmpl entity.Template, overlay entity.Overlay,
	rec entity.Recipient, msg *message,
) (out entity.Outcome) {
	ctx, span := s.startSpan(ctx, "Process")
	start := s.clock.Now()
	r := rec.Normalize()
	stage := entity.StagePending

	defer func() {
		if rvr := recover(); rvr != nil {
			slog.ErrorContext(ctx, "panic while processing recipient",
				"full_name", r.FullName, "email", r.Email, "panic", rvr, "stack", stacktrace.InternalPaths(debug.Stack()))
			out = entity.FailureOutcome(r, failedAt(stage), fmt.Errorf("%w: %v", ErrPanic, rvr))
		}

		attrs := metric.WithAttributes(
			attribute.String("status", out.Status.String()),
			attribute.String("stage", out.Stage.String()),
		)
		s.outcomes.Add(ctx, 1, attrs)
		s.duration.Record(ctx, s.clock.Now().Sub(start).Seconds(), attrs)
		span.SetAttributes(attribute.String("status", out.Status.String()), attribute.String("stage", out.Stage.String()))
		span.End()
	}()

	if err := s.validator.Validate(r); err != nil {
		slog.WarnContext(ctx, "invalid recipient record", "full_name", r.FullName, "email", r.Email, "error", err)
		return entity.FailureOutcome(r, stage, goerror.NewInvalidInput(err))
	}

	if ctx.Err() != nil {
		return entity.FailureOutcome(r, stage, context.Cause(ctx))
	}

	subject, body, err := msg.render(r)
	if err != nil {
		slog.ErrorContext(ctx, "failed to personalize message", "full_name", r.FullName, "email", r.Email, "error", err)
		return entity.FailureOutcome(r, stage, err)
	}

	if skipped, ok := s.reserve(ctx, r); !ok {
		return skipped
	}
	sent := false
	defer func() { s.settle(ctx, r, sent) }()

	stage = entity.StageRendering
	art, err := s.renderer.Render(ctx, entity.RenderInput{Template: tmpl, FullName: r.FullName, Overlay: overlay})
	if err != nil {
		return entity.FailureOutcome(r, entity.StageRenderFailed, err)
	}

	stage = entity.StagePackaging
	doc, err := s.packager.Package(ctx, art)
	if err != nil {
		slog.ErrorContext(ctx, "failed to package certificate", "full_name", r.FullName, "email", r.Email, "error", err)
		return entity.FailureOutcome(r, entity.StagePackageFailed, err)
	}

	stage = entity.StageSending
	if err := s.deliverer.Deliver(ctx, entity.Delivery{Recipient: r, Subject: subject, Body: body, Document: doc}); err != nil {
		return entity.FailureOutcome(r, entity.StageSendFailed, err)
	}

	sent = true
	slog.InfoContext(ctx, "certificate sent", "full_name", r.FullName, "email", r.Email)

	return entity.SuccessOutcome(r)
}

// reserve consults the ledger. It returns ok=false with a Skipped outcome
// when the recipient was already handled in this campaign. Ledger errors are
// logged and do not block delivery.
func (s *Usecase) reserve(ctx context.Context, r entity.Recipient) (entity.Outcome, bool) {
	if s.ledger == nil {
		return entity.Outcome{}, true
	}

	state, err := s.ledger.Acquire(ctx, r.Key())
	if err != nil {
		slog.WarnContext(ctx, "failed to acquire ledger entry", "email", r.Email, "error", err)
		return entity.Outcome{}, true
	}

	switch state {
	case entity.DeliveryStateSent:
		slog.InfoContext(ctx, "skipping recipient", "email", r.Email, "reason", ErrAlreadySent.Error())
		return entity.SkippedOutcome(r, ErrAlreadySent.Error()), false
	case entity.DeliveryStateInProgress:
		slog.InfoContext(ctx, "skipping recipient", "email", r.Email, "reason", ErrInProgress.Error())
		return entity.SkippedOutcome(r, ErrInProgress.Error()), false
	default:
		return entity.Outcome{}, true
	}
}

func (s *Usecase) settle(ctx context.Context, r entity.Recipient, sent bool) {
	if s.ledger == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)
	if sent {
		if err := s.ledger.MarkSent(ctx, r.Key()); err != nil {
			slog.WarnContext(ctx, "failed to mark recipient as sent", "email", r.Email, "error", err)
		}
		return
	}

	if err := s.ledger.Release(ctx, r.Key()); err != nil {
		slog.WarnContext(ctx, "failed to release ledger entry", "email", r.Email, "error", err)
	}
}

// failedAt maps an in-flight stage to the terminal stage reached when it fails.
func failedAt(stage entity.Stage) entity.Stage {
	switch stage {
	case entity.StageRendering:
		return entity.StageRenderFailed
	case entity.StagePackaging:
		return entity.StagePackageFailed
	case entity.StageSending:
		return entity.StageSendFailed
	default:
		return stage
	}
}
