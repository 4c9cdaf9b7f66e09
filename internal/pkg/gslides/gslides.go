package gslides

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/slides/v1"
)

// Scopes are the OAuth scopes needed by Client.
var Scopes = []string{drive.DriveScope, slides.PresentationsScope}

var (
	// ErrNoSlides is returned when a presentation has no pages to export.
	ErrNoSlides = errors.New("gslides: presentation has no slides")

	// ErrEmptyID is returned when a document id is blank.
	ErrEmptyID = errors.New("gslides: document id is required")
)

const (
	// ThumbnailLarge is the largest thumbnail size the Slides API renders.
	ThumbnailLarge = "LARGE"
	// ThumbnailMedium is the medium thumbnail size.
	ThumbnailMedium = "MEDIUM"
)

// Config configures the Google API services.
type Config struct {
	// ClientOptions are passed to both drive.NewService and slides.NewService.
	ClientOptions []option.ClientOption
	// SlidesOptions are appended for the Slides service only (endpoint overrides).
	SlidesOptions []option.ClientOption
	// DriveOptions are appended for the Drive service only (endpoint overrides).
	DriveOptions []option.ClientOption
	// HTTPClient downloads exported thumbnails. Defaults to a client with Timeout.
	HTTPClient *http.Client
	// ThumbnailSize is LARGE or MEDIUM. Defaults to LARGE.
	ThumbnailSize string
	// Timeout bounds the thumbnail download when HTTPClient is nil.
	Timeout time.Duration
}

// Client performs template operations on Google Slides documents.
type Client struct {
	drive         *drive.Service
	slides        *slides.Service
	http          *http.Client
	thumbnailSize string
}

// New builds a Client from the configured credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	driveOpts := append(append([]option.ClientOption{}, cfg.ClientOptions...), cfg.DriveOptions...)
	driveSvc, err := drive.NewService(ctx, driveOpts...)
	if err != nil {
		return nil, fmt.Errorf("gslides: drive service: %w", err)
	}

	slidesOpts := append(append([]option.ClientOption{}, cfg.ClientOptions...), cfg.SlidesOptions...)
	slidesSvc, err := slides.NewService(ctx, slidesOpts...)
	if err != nil {
		return nil, fmt.Errorf("gslides: slides service: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	size := cfg.ThumbnailSize
	if size == "" {
		size = ThumbnailLarge
	}

	return &Client{drive: driveSvc, slides: slidesSvc, http: httpClient, thumbnailSize: size}, nil
}

// Duplicate copies the template document and returns the id of the copy.
func (c *Client) Duplicate(ctx context.Context, templateID, name string) (string, error) {
	if templateID == "" {
		return "", ErrEmptyID
	}

	file, err := c.drive.Files.Copy(templateID, &drive.File{Name: name}).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("gslides: copy %s: %w", templateID, err)
	}

	return file.Id, nil
}

// ReplaceAllText replaces every case-sensitive occurrence of token with
// replacement and returns how many occurrences changed.
func (c *Client) ReplaceAllText(ctx context.Context, documentID, token, replacement string) (int64, error) {
	if documentID == "" {
		return 0, ErrEmptyID
	}

	req := &slides.BatchUpdatePresentationRequest{
		Requests: []*slides.Request{{
			ReplaceAllText: &slides.ReplaceAllTextRequest{
				ContainsText: &slides.SubstringMatchCriteria{Text: token, MatchCase: true},
				ReplaceText:  replacement,
			},
		}},
	}

	resp, err := c.slides.Presentations.BatchUpdate(documentID, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("gslides: replace text in %s: %w", documentID, err)
	}

	var changed int64
	for _, r := range resp.Replies {
		if r != nil && r.ReplaceAllText != nil {
			changed += r.ReplaceAllText.OccurrencesChanged
		}
	}

	return changed, nil
}

// ExportFirstPage renders the first slide of the document as PNG bytes.
func (c *Client) ExportFirstPage(ctx context.Context, documentID string) ([]byte, error) {
	if documentID == "" {
		return nil, ErrEmptyID
	}

	pres, err := c.slides.Presentations.Get(documentID).Fields("slides.objectId").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gslides: get %s: %w", documentID, err)
	}
	if len(pres.Slides) == 0 || pres.Slides[0] == nil {
		return nil, ErrNoSlides
	}

	thumb, err := c.slides.Presentations.Pages.GetThumbnail(documentID, pres.Slides[0].ObjectId).
		ThumbnailPropertiesMimeType("PNG").
		ThumbnailPropertiesThumbnailSize(c.thumbnailSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("gslides: thumbnail %s: %w", documentID, err)
	}

	return c.download(ctx, thumb.ContentUrl)
}

// Delete permanently removes the document.
func (c *Client) Delete(ctx context.Context, documentID string) error {
	if documentID == "" {
		return ErrEmptyID
	}

	if err := c.drive.Files.Delete(documentID).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gslides: delete %s: %w", documentID, err)
	}

	return nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gslides: download thumbnail: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, fmt.Errorf("gslides: download thumbnail: status %d: %s", resp.StatusCode, body)
	}

	return io.ReadAll(resp.Body)
}
