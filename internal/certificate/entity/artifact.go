package entity

// Template is the unpersonalized certificate source: raster bytes for the
// local renderer or a document id for the remote one.
type Template struct {
	Image      []byte
	DocumentID string
}

// Artifact is a rendered certificate page before packaging.
type Artifact struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Document is a packaged single-page PDF.
type Document struct {
	Data []byte
}

// RenderInput is one render request.
type RenderInput struct {
	Template Template
	FullName string
	Overlay  Overlay
}

// Delivery is one certificate email.
type Delivery struct {
	Recipient Recipient
	Subject   string
	Body      string
	Document  *Document
}
