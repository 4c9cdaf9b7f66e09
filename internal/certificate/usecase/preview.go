package usecase

import (
	"context"
	"strings"

	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/goerror"
)

type PreviewInput struct {
	Template entity.Template
	FullName string `validate:"notblank"`
	Overlay  entity.Overlay
}

// Preview renders one certificate for review without packaging or sending it.
func (s *Usecase) Preview(ctx context.Context, in PreviewInput) (*entity.Artifact, error) {
	ctx, span := s.startSpan(ctx, "Preview")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	// the renderer logs its own failures
	return s.renderer.Render(ctx, entity.RenderInput{
		Template: in.Template,
		FullName: strings.TrimSpace(in.FullName),
		Overlay:  in.Overlay,
	})
}
