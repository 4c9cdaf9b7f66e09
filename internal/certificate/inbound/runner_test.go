package inbound

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/shandysiswandi/certsend/internal/certificate/entity"
	"github.com/shandysiswandi/certsend/internal/certificate/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsecase struct {
	previewIn   *usecase.PreviewInput
	batchIn     *usecase.BatchInput
	previewErr  error
	batchErr    error
	previewType string
}

func (f *fakeUsecase) Preview(_ context.Context, in usecase.PreviewInput) (*entity.Artifact, error) {
	f.previewIn = &in
	if f.previewErr != nil {
		return nil, f.previewErr
	}
	if f.previewType == "" {
		return &entity.Artifact{Data: []byte("jpeg"), ContentType: "image/jpeg", Width: 4, Height: 2}, nil
	}
	return &entity.Artifact{Data: []byte("png"), ContentType: f.previewType, Width: 4, Height: 2}, nil
}

func (f *fakeUsecase) ProcessBatch(_ context.Context, in usecase.BatchInput) (*entity.Report, error) {
	f.batchIn = &in
	if f.batchErr != nil {
		return nil, f.batchErr
	}

	report := &entity.Report{BatchID: "batch-1"}
	for _, r := range in.Recipients {
		report.Outcomes = append(report.Outcomes, entity.SuccessOutcome(r))
	}
	return report, nil
}

type memFiles struct {
	data    map[string][]byte
	written map[string][]byte
}

func newMemFiles(kv ...string) *memFiles {
	m := &memFiles{data: map[string][]byte{}, written: map[string][]byte{}}
	for i := 0; i+1 < len(kv); i += 2 {
		m.data[kv[i]] = []byte(kv[i+1])
	}
	return m
}

func (m *memFiles) ReadFile(_ context.Context, ref string) ([]byte, error) {
	d, ok := m.data[ref]
	if !ok {
		return nil, fs.ErrNotExist
	}
	return d, nil
}

func (m *memFiles) WriteFile(_ context.Context, ref, _ string, data []byte) (string, error) {
	m.written[ref] = data
	return ref, nil
}

const csvFixture = "Full Name,Email\nAda Lovelace,ada@example.com\nAlan Turing,alan@example.com\n"

func TestRunner_Send(t *testing.T) {
	t.Parallel()

	uc := &fakeUsecase{}
	files := newMemFiles("people.csv", csvFixture, "template.png", "png-bytes")
	overlay := entity.Overlay{Position: entity.Position{X: 10, Y: 20}, Scale: 1}

	r := NewRunner(uc, files, RunConfig{
		RecipientsPath: "people.csv",
		TemplateRef:    "template.png",
		Overlay:        overlay,
		Subject:        "Hi {{.FullName}}",
		Body:           "Body",
	})

	require.NoError(t, r.Run(context.Background()))
	require.NotNil(t, uc.batchIn)
	assert.Equal(t, []byte("png-bytes"), uc.batchIn.Template.Image)
	assert.Empty(t, uc.batchIn.Template.DocumentID)
	assert.Equal(t, overlay, uc.batchIn.Overlay)
	assert.Equal(t, "Hi {{.FullName}}", uc.batchIn.Subject)
	require.Len(t, uc.batchIn.Recipients, 2)
	assert.Equal(t, "Alan Turing", uc.batchIn.Recipients[1].FullName)
}

func TestRunner_SendRemoteTemplate(t *testing.T) {
	t.Parallel()

	uc := &fakeUsecase{}
	r := NewRunner(uc, newMemFiles("people.csv", csvFixture), RunConfig{
		Mode:           ModeSend,
		RecipientsPath: "people.csv",
		TemplateRef:    "presentation-1",
		RemoteTemplate: true,
	})

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, "presentation-1", uc.batchIn.Template.DocumentID)
	assert.Nil(t, uc.batchIn.Template.Image)
}

func TestRunner_StartFailures(t *testing.T) {
	t.Parallel()

	batchErr := errors.New("bad subject")

	tests := []struct {
		name    string
		files   *memFiles
		cfg     RunConfig
		uc      *fakeUsecase
		wantErr error
	}{
		{
			name:    "missing template file",
			files:   newMemFiles("people.csv", csvFixture),
			cfg:     RunConfig{RecipientsPath: "people.csv", TemplateRef: "nope.png"},
			wantErr: fs.ErrNotExist,
		},
		{
			name:    "missing template reference",
			files:   newMemFiles("people.csv", csvFixture),
			cfg:     RunConfig{RecipientsPath: "people.csv"},
			wantErr: ErrNoTemplateRef,
		},
		{
			name:    "missing recipients file",
			files:   newMemFiles("template.png", "x"),
			cfg:     RunConfig{RecipientsPath: "people.csv", TemplateRef: "template.png"},
			wantErr: fs.ErrNotExist,
		},
		{
			name:    "recipients without email column",
			files:   newMemFiles("people.csv", "Full Name\nAda\n", "template.png", "x"),
			cfg:     RunConfig{RecipientsPath: "people.csv", TemplateRef: "template.png"},
			wantErr: ErrMissingColumn,
		},
		{
			name:    "batch cannot start",
			files:   newMemFiles("people.csv", csvFixture, "template.png", "x"),
			cfg:     RunConfig{RecipientsPath: "people.csv", TemplateRef: "template.png"},
			uc:      &fakeUsecase{batchErr: batchErr},
			wantErr: batchErr,
		},
		{
			name:    "unknown mode",
			files:   newMemFiles(),
			cfg:     RunConfig{Mode: "dry-run"},
			wantErr: ErrUnknownMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			uc := tt.uc
			if uc == nil {
				uc = &fakeUsecase{}
			}

			err := NewRunner(uc, tt.files, tt.cfg).Run(context.Background())

			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRunner_PreviewFirstRecipient(t *testing.T) {
	t.Parallel()

	uc := &fakeUsecase{}
	files := newMemFiles("people.csv", csvFixture, "template.png", "png-bytes")

	r := NewRunner(uc, files, RunConfig{
		Mode:           ModePreview,
		RecipientsPath: "people.csv",
		TemplateRef:    "template.png",
	})

	require.NoError(t, r.Run(context.Background()))
	require.NotNil(t, uc.previewIn)
	assert.Equal(t, "Ada Lovelace", uc.previewIn.FullName)
	assert.Equal(t, []byte("jpeg"), files.written["preview.jpg"])
	assert.Nil(t, uc.batchIn)
}

func TestRunner_PreviewRemoteDefaultsToPNG(t *testing.T) {
	t.Parallel()

	uc := &fakeUsecase{previewType: "image/png"}
	files := newMemFiles()

	r := NewRunner(uc, files, RunConfig{
		Mode:           ModePreview,
		TemplateRef:    "presentation-1",
		RemoteTemplate: true,
		PreviewName:    "Grace Hopper",
	})

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, []byte("png"), files.written["preview.png"])
	assert.NotContains(t, files.written, "preview.jpg")
}

func TestExtensionOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".jpg", extensionOf("image/jpeg"))
	assert.Equal(t, ".png", extensionOf("image/png"))
	assert.Equal(t, ".gif", extensionOf("image/gif"))
	assert.Equal(t, ".jpg", extensionOf(""))
}

func TestRunner_PreviewNamed(t *testing.T) {
	t.Parallel()

	uc := &fakeUsecase{}
	files := newMemFiles("template.png", "png-bytes")

	r := NewRunner(uc, files, RunConfig{
		Mode:          ModePreview,
		TemplateRef:   "template.png",
		PreviewName:   "Grace Hopper",
		PreviewOutput: "out/grace.jpg",
	})

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, "Grace Hopper", uc.previewIn.FullName)
	assert.Contains(t, files.written, "out/grace.jpg")
}

func TestRunner_PreviewFailures(t *testing.T) {
	t.Parallel()

	t.Run("no recipients", func(t *testing.T) {
		t.Parallel()

		r := NewRunner(&fakeUsecase{}, newMemFiles("people.csv", "Full Name,Email\n", "template.png", "x"), RunConfig{
			Mode:           ModePreview,
			RecipientsPath: "people.csv",
			TemplateRef:    "template.png",
		})

		require.ErrorIs(t, r.Run(context.Background()), ErrNoRecipients)
	})

	t.Run("render failed", func(t *testing.T) {
		t.Parallel()

		renderErr := errors.New("decode template")
		files := newMemFiles("template.png", "x")
		r := NewRunner(&fakeUsecase{previewErr: renderErr}, files, RunConfig{
			Mode:        ModePreview,
			TemplateRef: "template.png",
			PreviewName: "Ada",
		})

		require.ErrorIs(t, r.Run(context.Background()), renderErr)
		assert.Empty(t, files.written)
	})
}
