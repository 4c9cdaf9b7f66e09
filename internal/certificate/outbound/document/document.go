package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/go-pdf/fpdf"
	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/goerror"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var ErrNoArtifact = errors.New("document: artifact is empty")

// PDF converts rendered artifacts into single-page PDF documents.
//
// One image pixel maps to one point, so the page has the exact size of the
// artifact and the image is embedded without scaling.
type PDF struct {
	creator string
	ins     instrument.Instrumentation
}

func NewPDF(creator string, ins instrument.Instrumentation) *PDF {
	return &PDF{creator: creator, ins: ins}
}

func (p *PDF) Package(ctx context.Context, art *entity.Artifact) (doc *entity.Document, err error) {
	_, span := p.ins.Tracer("certificate.outbound.document").Start(ctx, "PDF.Package")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if art == nil || len(art.Data) == 0 {
		return nil, goerror.NewPackaging(ErrNoArtifact)
	}

	data, imageType, cfg, err := embeddable(art.Data)
	if err != nil {
		return nil, goerror.NewPackaging(err)
	}
	span.SetAttributes(attribute.Int("width", cfg.Width), attribute.Int("height", cfg.Height))

	w, h := float64(cfg.Width), float64(cfg.Height)
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if p.creator != "" {
		pdf.SetCreator(p.creator, true)
	}
	pdf.AddPage()

	opt := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader("certificate", opt, bytes.NewReader(data))
	pdf.ImageOptions("certificate", 0, 0, w, h, false, opt, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, goerror.NewPackaging(err)
	}

	return &entity.Document{Data: buf.Bytes()}, nil
}

// embeddable returns bytes fpdf can embed as-is. Formats it cannot read are
// converted losslessly to PNG.
func embeddable(data []byte) ([]byte, string, image.Config, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", image.Config{}, fmt.Errorf("read artifact: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", image.Config{}, fmt.Errorf("read artifact: invalid size %dx%d", cfg.Width, cfg.Height)
	}

	switch format {
	case "jpeg":
		return data, "JPG", cfg, nil
	case "png":
		return data, "PNG", cfg, nil
	case "gif":
		return data, "GIF", cfg, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", image.Config{}, fmt.Errorf("decode artifact: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", image.Config{}, fmt.Errorf("convert artifact: %w", err)
	}

	return buf.Bytes(), "PNG", cfg, nil
}
