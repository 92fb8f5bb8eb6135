package media

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"mentorly/internal/models"
)

// Kind-specific upload ceilings.
const (
	MaxImageSize = 2 << 20 // 2 MiB
	MaxFileSize  = 5 << 20 // 5 MiB
)

// PreviewScheme prefixes locally issued, non-persistent preview URLs.
const PreviewScheme = "preview://"

// File is an attachment staged for upload.
type File struct {
	Name string
	Data []byte
}

// DetectType sniffs the attachment kind from content, not the file name.
func DetectType(data []byte) models.AttachmentType {
	if filetype.IsImage(data) {
		return models.AttachmentTypeImage
	}
	return models.AttachmentTypeFile
}

// CheckSize enforces the kind-specific ceiling.
func CheckSize(kind models.AttachmentType, size int64) error {
	limit := int64(MaxFileSize)
	label := "5 MiB"
	if kind == models.AttachmentTypeImage {
		limit = MaxImageSize
		label = "2 MiB"
	}
	if size > limit {
		return fmt.Errorf("attachment is too large: %s files are limited to %s", kind, label)
	}
	return nil
}

// uploader is the slice of the REST client the media service needs.
type uploader interface {
	UploadMedia(ctx context.Context, name string, data []byte, onProgress func(done, total int64)) (models.Attachment, error)
	DeleteMedia(ctx context.Context, url string) error
}

// Service stages, validates and uploads attachments. Upload progress is
// tracked per temporary message id so concurrent sends never share state.
type Service struct {
	api uploader

	mu       sync.Mutex
	progress map[string]float64
	previews map[string]File
}

func NewService(api uploader) *Service {
	return &Service{
		api:      api,
		progress: make(map[string]float64),
		previews: make(map[string]File),
	}
}

// Validate returns the sniffed kind, or an error when the file exceeds the
// ceiling for its kind.
func (s *Service) Validate(f File) (models.AttachmentType, error) {
	kind := DetectType(f.Data)
	if err := CheckSize(kind, int64(len(f.Data))); err != nil {
		return kind, err
	}
	return kind, nil
}

// IssuePreview returns a local preview URL for a staged file. The URL is
// not persistent and must be revoked once the send settles.
func (s *Service) IssuePreview(f File) string {
	url := PreviewScheme + uuid.NewString()
	s.mu.Lock()
	s.previews[url] = f
	s.mu.Unlock()
	return url
}

// OpenPreview resolves a preview URL while it is still live.
func (s *Service) OpenPreview(url string) (File, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.previews[url]
	return f, ok
}

// RevokePreview drops a preview URL.
func (s *Service) RevokePreview(url string) {
	s.mu.Lock()
	delete(s.previews, url)
	s.mu.Unlock()
}

// Upload pushes the file to the media store, recording progress under
// tempID. The returned attachment carries the server-confirmed URL, size
// and name.
func (s *Service) Upload(ctx context.Context, tempID string, f File) (models.Attachment, error) {
	kind, err := s.Validate(f)
	if err != nil {
		return models.Attachment{}, err
	}

	s.setProgress(tempID, 0)
	defer s.clearProgress(tempID)

	att, err := s.api.UploadMedia(ctx, f.Name, f.Data, func(done, total int64) {
		if total > 0 {
			s.setProgress(tempID, float64(done)/float64(total))
		}
	})
	if err != nil {
		return models.Attachment{}, fmt.Errorf("upload of %q failed: %w", f.Name, err)
	}

	att.Type = kind
	return att, nil
}

// Delete removes a previously uploaded attachment from the media store.
func (s *Service) Delete(ctx context.Context, url string) error {
	return s.api.DeleteMedia(ctx, url)
}

// Progress reports the last recorded upload progress for a temporary
// message id, in [0,1]. Unknown ids report zero.
func (s *Service) Progress(tempID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress[tempID]
}

func (s *Service) setProgress(tempID string, v float64) {
	s.mu.Lock()
	s.progress[tempID] = v
	s.mu.Unlock()
}

func (s *Service) clearProgress(tempID string) {
	s.mu.Lock()
	delete(s.progress, tempID)
	s.mu.Unlock()
}
