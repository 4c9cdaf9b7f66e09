package email

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/goerror"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"github.com/shandysiswandi/certsend/internal/pkg/mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ContentTypePDF is the MIME type of every certificate attachment.
const ContentTypePDF = "application/pdf"

var ErrNoDocument = errors.New("email: document is empty")

// Config bounds delivery attempts.
type Config struct {
	// MaxRetries is the number of extra attempts after a transient failure.
	MaxRetries uint64
	// BaseDelay is the first backoff delay, doubled per retry.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff delay.
	MaxDelay time.Duration
	// AttemptTimeout bounds one send attempt.
	AttemptTimeout time.Duration
}

// Deliverer sends certificates through a mail driver, retrying transient
// failures with capped exponential backoff.
type Deliverer struct {
	mail mail.Mail
	cfg  Config
	ins  instrument.Instrumentation
}

func NewDeliverer(m mail.Mail, cfg Config, ins instrument.Instrumentation) *Deliverer {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}

	return &Deliverer{mail: m, cfg: cfg, ins: ins}
}

func (d *Deliverer) Deliver(ctx context.Context, in entity.Delivery) (err error) {
	ctx, span := d.ins.Tracer("certificate.outbound.email").Start(ctx, "Deliverer.Deliver")
	attempts := 0
	defer func() {
		span.SetAttributes(attribute.Int("attempts", attempts))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if in.Document == nil || len(in.Document.Data) == 0 {
		return goerror.NewDelivery(ErrNoDocument)
	}

	msg := mail.Message{
		To:       []string{in.Recipient.Email},
		Subject:  in.Subject,
		HTMLBody: in.Body,
		Attachments: []mail.Attachment{{
			Filename:    in.Recipient.AttachmentName(),
			ContentType: ContentTypePDF,
			Content:     in.Document.Data,
		}},
	}

	b := retry.NewExponential(d.cfg.BaseDelay)
	b = retry.WithJitterPercent(10, b)
	b = retry.WithCappedDuration(d.cfg.MaxDelay, b)
	b = retry.WithMaxRetries(d.cfg.MaxRetries, b)

	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++

		attemptCtx, cancel := context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		defer cancel()

		if err := d.mail.Send(attemptCtx, msg); err != nil {
			if mail.IsTransient(err) {
				slog.WarnContext(ctx, "transient delivery failure",
					"full_name", in.Recipient.FullName, "email", in.Recipient.Email, "attempt", attempts, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}

		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to deliver certificate",
			"full_name", in.Recipient.FullName, "email", in.Recipient.Email, "attempts", attempts, "error", err)
		return goerror.NewDelivery(err)
	}

	return nil
}
