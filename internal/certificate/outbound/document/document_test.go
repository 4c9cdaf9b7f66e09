package document

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"regexp"
	"testing"

	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/pkg/goerror"
	"github.com/shandysiswandi/certsend/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

var pageObject = regexp.MustCompile(`/Type /Page\b`)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: 200, G: 180, B: 40, A: 255})
		}
	}
	return img
}

func TestPDF_PackageSinglePage(t *testing.T) {
	t.Parallel()

	encoders := map[string]func(*bytes.Buffer, image.Image) error{
		"jpeg": func(b *bytes.Buffer, img image.Image) error { return jpeg.Encode(b, img, &jpeg.Options{Quality: 95}) },
		"png":  func(b *bytes.Buffer, img image.Image) error { return png.Encode(b, img) },
		"bmp":  func(b *bytes.Buffer, img image.Image) error { return bmp.Encode(b, img) },
	}

	p := NewPDF("certsend", instrument.NewNoop())
	for name, enc := range encoders {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			require.NoError(t, enc(&buf, solid(842, 595)))

			doc, err := p.Package(context.Background(), &entity.Artifact{Data: buf.Bytes()})
			require.NoError(t, err)

			assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
			assert.Len(t, pageObject.FindAll(doc.Data, -1), 1)
			assert.Contains(t, string(doc.Data), "/MediaBox [0 0 842.00 595.00]")
		})
	}
}

func TestPDF_PackageRejectsMissingArtifact(t *testing.T) {
	t.Parallel()

	p := NewPDF("", instrument.NewNoop())

	_, err := p.Package(context.Background(), nil)
	require.ErrorIs(t, err, goerror.ErrPackaging)
	require.ErrorIs(t, err, ErrNoArtifact)

	_, err = p.Package(context.Background(), &entity.Artifact{Data: []byte("not an image")})
	require.ErrorIs(t, err, goerror.ErrPackaging)
}
