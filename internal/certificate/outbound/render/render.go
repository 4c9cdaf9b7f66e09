package render

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DriverLocal draws the name onto a raster template.
	DriverLocal = "local"
	// DriverRemote renders a copy of a Google Slides template.
	DriverRemote = "remote"
)

var (
	ErrUnknownDriver = errors.New("render: unknown driver")
	ErrNoService     = errors.New("render: remote template service is required")
)

// Renderer produces the personalized certificate page for one name.
//
// A non-nil error means no artifact was produced. The renderer has already
// logged it with the recipient name, so callers only decide control flow.
type Renderer interface {
	Render(ctx context.Context, in entity.RenderInput) (*entity.Artifact, error)
}

// Options groups the configuration of every renderer driver.
type Options struct {
	Local   LocalConfig
	Remote  RemoteConfig
	Service TemplateService
}

// NewFromDriver constructs the Renderer selected by driver.
func NewFromDriver(driver string, opts Options, ins instrument.Instrumentation) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverLocal, "":
		return NewLocal(opts.Local, ins)
	case DriverRemote:
		if opts.Service == nil {
			return nil, ErrNoService
		}
		return NewRemote(opts.Service, opts.Remote, ins), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

func startSpan(ctx context.Context, ins instrument.Instrumentation, name string) (context.Context, trace.Span) {
	return ins.Tracer("certificate.outbound.render").Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
