// Package upload manages the lifecycle of a single photograph: local
// preview, transmission to the comparison service and the response.
package upload

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zombor/auditly/internal/comparison"
)

// Status is the state of an upload session
type Status string

const (
	StatusIdle      Status = "idle"
	StatusUploading Status = "uploading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// File is a locally selected photograph
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

// Options tune how previews are produced
type Options struct {
	// MaxPreviewDimension caps the longest preview edge in pixels; 0 keeps the original
	MaxPreviewDimension int
}

// Info is a read-only view of a session for rendering
type Info struct {
	ComparisonType comparison.Type `json:"comparison_type"`
	Status         Status          `json:"status"`
	Filename       string          `json:"filename,omitempty"`
	Preview        string          `json:"preview,omitempty"`
}

// Session uploads exactly one image tagged with its comparison type.
// It is safe for concurrent use; the network call runs without holding the lock.
type Session struct {
	mu       sync.Mutex
	client   comparison.Client
	compType comparison.Type
	opts     Options

	file     *File
	preview  string
	status   Status
	response *comparison.Response
}

// NewSession creates an idle session with no file selected
func NewSession(client comparison.Client, t comparison.Type, opts Options) *Session {
	return &Session{
		client:   client,
		compType: t,
		opts:     opts,
		status:   StatusIdle,
	}
}

// Select sets the file to upload and renders its preview. The session goes
// back to idle and any previous response is discarded.
func (s *Session) Select(f *File) error {
	if f == nil || len(f.Data) == 0 {
		return ErrNoFileSelected
	}

	contentType := detectContentType(f.Data)
	if !isImageType(contentType) {
		return ErrUnsupportedImage
	}

	preview, err := buildPreview(f.Data, contentType, s.opts.MaxPreviewDimension)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusUploading {
		return ErrUploadInProgress
	}

	s.file = &File{Name: f.Name, ContentType: contentType, Data: f.Data}
	s.preview = preview
	s.status = StatusIdle
	s.response = nil
	return nil
}

// Submit sends the selected file. On failure the file and preview are
// cleared and the caller must select a file again; there is no retry.
func (s *Session) Submit(ctx context.Context) (*comparison.Response, error) {
	s.mu.Lock()
	if s.status == StatusUploading {
		s.mu.Unlock()
		return nil, ErrUploadInProgress
	}
	if s.file == nil {
		s.mu.Unlock()
		return nil, ErrNoFileSelected
	}
	s.status = StatusUploading
	img := comparison.Image{
		Filename:    s.file.Name,
		ContentType: s.file.ContentType,
		Data:        s.file.Data,
	}
	s.mu.Unlock()

	resp, err := s.client.Compare(ctx, s.compType, img)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		slog.Warn("Upload failed",
			"comparison_type", s.compType,
			"filename", img.Filename,
			"file_size", len(img.Data),
			"error", err,
		)
		s.clear()
		return nil, err
	}

	s.status = StatusSucceeded
	s.response = resp
	return resp, nil
}

// MarkFailed fails a session whose response could not be accepted
func (s *Session) MarkFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
}

func (s *Session) clear() {
	s.status = StatusFailed
	s.file = nil
	s.preview = ""
	s.response = nil
}

// Status returns the current status
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Preview returns the data-URI preview of the selected file
func (s *Session) Preview() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preview
}

// File returns the selected file, or nil
func (s *Session) File() *File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file
}

// Response returns the last successful response, or nil
func (s *Session) Response() *comparison.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.response
}

// ComparisonType returns the tag sent with this session's upload
func (s *Session) ComparisonType() comparison.Type {
	return s.compType
}

// Info returns a snapshot for rendering
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		ComparisonType: s.compType,
		Status:         s.status,
		Preview:        s.preview,
	}
	if s.file != nil {
		info.Filename = s.file.Name
	}
	return info
}
