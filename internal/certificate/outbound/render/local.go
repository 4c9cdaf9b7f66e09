package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/goerror"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	// BaseFontSize is the text height in pixels at scale 1.
	BaseFontSize = 24.0

	defaultJPEGQuality = 95
)

var ErrInvalidScale = errors.New("render: overlay scale must be positive")

// LocalConfig configures the raster renderer.
type LocalConfig struct {
	// JPEGQuality is the output quality, 1..100.
	JPEGQuality int
}

// Local draws the recipient name on a decoded copy of the template image
// and re-encodes it as JPEG.
type Local struct {
	quality int
	fonts   map[entity.Font]*opentype.Font
	ins     instrument.Instrumentation
}

// NewLocal parses the bundled fonts and returns a Local renderer.
func NewLocal(cfg LocalConfig, ins instrument.Instrumentation) (*Local, error) {
	quality := cfg.JPEGQuality
	if quality < 1 || quality > 100 {
		quality = defaultJPEGQuality
	}

	sources := map[entity.Font][]byte{
		entity.FontScript:    goitalic.TTF,
		entity.FontRegular:   goregular.TTF,
		entity.FontBold:      gobold.TTF,
		entity.FontMono:      gomono.TTF,
		entity.FontSmallCaps: gosmallcaps.TTF,
	}

	fonts := make(map[entity.Font]*opentype.Font, len(sources))
	for f, ttf := range sources {
		parsed, err := opentype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", f, err)
		}
		fonts[f] = parsed
	}

	return &Local{quality: quality, fonts: fonts, ins: ins}, nil
}

func (l *Local) Render(ctx context.Context, in entity.RenderInput) (art *entity.Artifact, err error) {
	ctx, span := startSpan(ctx, l.ins, "Local.Render")
	defer func() {
		if err != nil {
			slog.ErrorContext(ctx, "failed to render certificate", "full_name", in.FullName, "error", err)
		}
		endSpan(span, err)
	}()

	src, _, err := image.Decode(bytes.NewReader(in.Template.Image))
	if err != nil {
		return nil, goerror.NewDecode(err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Src)

	face, err := l.face(in.Overlay)
	if err != nil {
		return nil, goerror.NewRender("load font", err)
	}
	defer func() { _ = face.Close() }()

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(in.Overlay.Color.RGBA()),
		Face: face,
		Dot:  fixed.P(in.Overlay.Position.X, in.Overlay.Position.Y),
	}
	drawer.DrawString(in.FullName)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: l.quality}); err != nil {
		return nil, goerror.NewRender("encode image", err)
	}

	return &entity.Artifact{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
	}, nil
}

func (l *Local) face(o entity.Overlay) (font.Face, error) {
	if o.Scale <= 0 {
		return nil, ErrInvalidScale
	}

	f, ok := l.fonts[o.Font]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrFontUnknown, o.Font)
	}

	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    BaseFontSize * o.Scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
