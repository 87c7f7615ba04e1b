package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/edusphere/apiserver/internal/logger"
	"github.com/edusphere/apiserver/types"
)

// MaxUploadSize is the largest accepted image in bytes.
const MaxUploadSize = 2 << 20

var supportedImageTypes = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
	"webp": true,
	"svg":  true,
}

// FileRepository defines persistence operations for upload records.
type FileRepository interface {
	Create(ctx context.Context, file types.File) (types.File, error)
}

// ObjectUploader is the upload capability.
type ObjectUploader interface {
	Upload(ctx context.Context, data []byte, folder, filename, contentType string) (key, secureURL string, err error)
	Delete(ctx context.Context, key string) error
}

// UploadNotifier announces a stored upload.
type UploadNotifier interface {
	FileUploaded(ctx context.Context, file types.File) error
}

type UploadInput struct {
	Name        string
	Email       string
	Tag         string
	Filename    string
	ContentType string
	Data        []byte
}

// UploadService stores images and records who uploaded them.
type UploadService struct {
	files    FileRepository
	objects  ObjectUploader
	notifier UploadNotifier
	folder   string
	timeout  time.Duration
}

func NewUploadService(files FileRepository, objects ObjectUploader, notifier UploadNotifier, folder string, timeout time.Duration) *UploadService {
	return &UploadService{
		files:    files,
		objects:  objects,
		notifier: notifier,
		folder:   folder,
		timeout:  timeout,
	}
}

// Upload validates and stores the image, then records it. The stored object
// is removed again if the record cannot be written. Notification is best
// effort.
func (s *UploadService) Upload(ctx context.Context, in UploadInput) (types.File, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Tag = strings.TrimSpace(in.Tag)

	if in.Name == "" || in.Email == "" {
		return types.File{}, ErrMissingFields
	}
	if len(in.Data) == 0 {
		return types.File{}, ErrFileRequired
	}
	if len(in.Data) > MaxUploadSize {
		return types.File{}, ErrFileTooLarge
	}
	if !IsSupportedImage(in.Filename) {
		return types.File{}, ErrUnsupportedFileType
	}

	log := logger.FromContext(ctx)

	octx, cancel := withTimeout(ctx, s.timeout)
	key, secureURL, err := s.objects.Upload(octx, in.Data, s.folder, in.Filename, in.ContentType)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("object upload failed")
		return types.File{}, ErrUploadFailed
	}

	fctx, cancel := withTimeout(ctx, s.timeout)
	file, err := s.files.Create(fctx, types.File{
		Name:     in.Name,
		Email:    in.Email,
		ImageURL: secureURL,
		Tag:      in.Tag,
	})
	cancel()
	if err != nil {
		dctx, cancel := detached(ctx, s.timeout)
		if derr := s.objects.Delete(dctx, key); derr != nil {
			log.Error().Err(derr).Str("key", key).Msg("remove orphaned object failed")
		}
		cancel()
		return types.File{}, fmt.Errorf("record upload: %w", err)
	}

	if s.notifier != nil {
		nctx, cancel := withTimeout(ctx, s.timeout)
		if err := s.notifier.FileUploaded(nctx, file); err != nil {
			log.Warn().Err(err).Str("file_id", file.ID).Msg("upload notification failed")
		}
		cancel()
	}
	return file, nil
}

// IsSupportedImage reports whether filename carries an accepted image extension.
func IsSupportedImage(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.TrimSpace(filename)), "."))
	return supportedImageTypes[ext]
}
