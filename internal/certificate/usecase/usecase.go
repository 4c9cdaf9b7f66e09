package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/clock"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"github.com/shandysiswandi/certsend/internal/pkg/uid"
	"github.com/shandysiswandi/certsend/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

type renderer interface {
	Render(ctx context.Context, in entity.RenderInput) (*entity.Artifact, error)
}

type packager interface {
	Package(ctx context.Context, art *entity.Artifact) (*entity.Document, error)
}

type deliverer interface {
	Deliver(ctx context.Context, in entity.Delivery) error
}

type ledger interface {
	Acquire(ctx context.Context, key string) (entity.DeliveryState, error)
	MarkSent(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

type repoDB interface {
	SaveReport(ctx context.Context, report *entity.Report) error
}

type Usecase struct {
	renderer  renderer
	packager  packager
	deliverer deliverer
	ledger    ledger
	repoDB    repoDB
	validator validator.Validator
	uuid      uid.StringID
	clock     clock.Clocker
	ins       instrument.Instrumentation
	skipBlank bool
	workers   int

	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

type Dependency struct {
	Renderer   renderer
	Packager   packager
	Deliverer  deliverer
	Validator  validator.Validator
	UUID       uid.StringID
	Clock      clock.Clocker
	Instrument instrument.Instrumentation

	// Ledger is optional; every recipient is processed when nil.
	Ledger ledger
	// RepoDB is optional; reports are only logged when nil.
	RepoDB repoDB
	// SkipBlank drops records with a blank name or email without an outcome.
	// When false such records produce a Failure outcome.
	SkipBlank bool
	// Workers is the number of recipients processed concurrently.
	Workers int
}

func New(dep Dependency) *Usecase {
	uc := &Usecase{
		renderer:  dep.Renderer,
		packager:  dep.Packager,
		deliverer: dep.Deliverer,
		ledger:    dep.Ledger,
		repoDB:    dep.RepoDB,
		validator: dep.Validator,
		uuid:      dep.UUID,
		clock:     dep.Clock,
		ins:       dep.Instrument,
		skipBlank: dep.SkipBlank,
		workers:   max(dep.Workers, 1),
	}

	meter := uc.ins.Meter("certificate.usecase")

	outcomes, err := meter.Int64Counter("certificate.outcomes",
		metric.WithDescription("Processed recipients by status and terminal stage"))
	if err != nil {
		slog.Warn("failed to create outcome counter", "error", err)
		outcomes = metricnoop.Int64Counter{}
	}
	uc.outcomes = outcomes

	duration, err := meter.Float64Histogram("certificate.process.duration",
		metric.WithDescription("Time to render, package and deliver one certificate"),
		metric.WithUnit("s"))
	if err != nil {
		slog.Warn("failed to create duration histogram", "error", err)
		duration = metricnoop.Float64Histogram{}
	}
	uc.duration = duration

	return uc
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("certificate.usecase").Start(ctx, name)
}
