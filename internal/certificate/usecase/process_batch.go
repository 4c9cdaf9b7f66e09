package usecase

import (
	"context"
	"log/slog"

	"github.com/samber/lo"
	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/goerror"
	"github.com/shandysiswandi/certsend/internal/pkg/goroutine"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
)

type BatchInput struct {
	Template   entity.Template
	Overlay    entity.Overlay
	Recipients []entity.Recipient
	Subject    string
	Body       string
}

// ProcessBatch processes every recipient independently and returns their
// outcomes in input order. It only fails when the batch cannot start.
func (s *Usecase) ProcessBatch(ctx context.Context, in BatchInput) (*entity.Report, error) {
	batchID := s.uuid.Generate()
	ctx = instrument.WithBatchID(ctx, batchID)

	ctx, span := s.startSpan(ctx, "ProcessBatch")
	defer span.End()
	span.SetAttributes(attribute.String("batch_id", batchID), attribute.Int("recipients", len(in.Recipients)))

	msg, err := parseMessage(in.Subject, in.Body)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse message template", "error", err)
		return nil, goerror.NewInvalidInput(err)
	}

	report := &entity.Report{BatchID: batchID, StartedAt: s.clock.Now()}
	slog.InfoContext(ctx, "batch started", "recipients", len(in.Recipients), "workers", s.workers)

	results := make([]*entity.Outcome, len(in.Recipients))
	run := func(ctx context.Context, i int) {
		o := s.process(ctx, in.Template, in.Overlay, in.Recipients[i], msg)
		results[i] = &o
	}

	pending := lo.Filter(lo.Range(len(in.Recipients)), func(i int, _ int) bool {
		if s.skipBlank && in.Recipients[i].IsBlank() {
			slog.WarnContext(ctx, "skipping recipient with blank field", "position", i, "error", ErrBlankRecord)
			return false
		}
		return true
	})

	if s.workers <= 1 {
		for _, i := range pending {
			if ctx.Err() != nil {
				break
			}
			run(ctx, i)
		}
	} else {
		mgr := goroutine.NewManager(s.workers)
		for _, i := range pending {
			if err := mgr.Go(ctx, func(ctx context.Context) error {
				run(ctx, i)
				return nil
			}); err != nil {
				break
			}
		}
		if err := mgr.Wait(); err != nil {
			slog.ErrorContext(ctx, "worker pool reported errors", "error", err)
		}
	}

	for _, i := range pending {
		if results[i] == nil {
			cause := context.Cause(ctx)
			if cause == nil {
				cause = ErrNotProcessed
			}
			o := entity.FailureOutcome(in.Recipients[i].Normalize(), entity.StagePending, cause)
			results[i] = &o
		}
		results[i].Position = i
		report.Outcomes = append(report.Outcomes, *results[i])
	}
	report.FinishedAt = s.clock.Now()

	s.summarize(ctx, report, len(in.Recipients))
	s.persist(ctx, report)

	return report, nil
}

func (s *Usecase) summarize(ctx context.Context, report *entity.Report, total int) {
	failedStages := lo.CountValuesBy(
		lo.Filter(report.Outcomes, func(o entity.Outcome, _ int) bool { return o.Status == entity.StatusFailure }),
		func(o entity.Outcome) string { return o.Stage.String() },
	)

	slog.InfoContext(ctx, "batch finished",
		"recipients", total,
		"outcomes", len(report.Outcomes),
		"success", report.Count(entity.StatusSuccess),
		"failure", report.Count(entity.StatusFailure),
		"skipped", report.Count(entity.StatusSkipped),
		"failed_stages", failedStages,
		"duration", report.FinishedAt.Sub(report.StartedAt).String(),
	)
}

func (s *Usecase) persist(ctx context.Context, report *entity.Report) {
	if s.repoDB == nil {
		return
	}

	if err := s.repoDB.SaveReport(context.WithoutCancel(ctx), report); err != nil {
		slog.ErrorContext(ctx, "failed to save batch report", "error", err)
	}
}
