package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"time"

	"github.com/rs/zerolog"

	"vidstream/api/internal/apperr"
	"vidstream/api/internal/ids"
	"vidstream/api/internal/media/sniffer"
	"vidstream/api/internal/models"
)

const maxImageBytes = 8 << 20 // 8 MiB per profile image

type uploadStore interface {
	Create(ctx context.Context, upload models.Upload) error
	ListSuperseded(ctx context.Context, olderThan time.Time, limit int) ([]models.Upload, error)
	Delete(ctx context.Context, id string) error
}

type objectStore interface {
	Bucket() string
	Put(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, objectKey string) error
	PublicURL(objectKey string) string
}

// UploadService stores avatar and cover images on the media host and keeps
// an upload ledger so replaced objects can be purged.
type UploadService struct {
	uploads uploadStore
	store   objectStore
	log     zerolog.Logger
}

func NewUploadService(uploads uploadStore, store objectStore, log zerolog.Logger) *UploadService {
	return &UploadService{
		uploads: uploads,
		store:   store,
		log:     log,
	}
}

// Store validates and uploads one profile image, returning the upload
// record and its public URL.
func (s *UploadService) Store(ctx context.Context, userID string, kind models.UploadKind, file multipart.File, header *multipart.FileHeader) (models.Upload, string, error) {
	if file == nil || header == nil {
		return models.Upload{}, "", apperr.Validation("image file is required")
	}
	if header.Size > maxImageBytes {
		return models.Upload{}, "", apperr.Validation("image file too large")
	}

	result, head, err := sniffer.Detect(file)
	if err != nil {
		return models.Upload{}, "", apperr.Validation("unsupported image type")
	}

	declared := sniffer.MimeTypeFromContentType(header.Header.Get("Content-Type"))
	if declared != "" && declared != result.MIME {
		return models.Upload{}, "", apperr.Validation(
			fmt.Sprintf("content type mismatch: declared %s, actual %s", declared, result.MIME))
	}

	rest, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		return models.Upload{}, "", apperr.Internal("read image", err)
	}
	data := append(head, rest...)
	if len(data) == 0 {
		return models.Upload{}, "", apperr.Validation("image file is empty")
	}

	upload := models.Upload{
		ID:          ids.New(),
		UserID:      userID,
		Kind:        kind,
		Bucket:      s.store.Bucket(),
		ObjectKey:   buildObjectKey(kind, result.Type),
		ContentType: result.MIME,
		SizeBytes:   int64(len(data)),
		Status:      models.UploadStatusActive,
	}

	if err := s.store.Put(ctx, upload.ObjectKey, bytes.NewReader(data), upload.SizeBytes, upload.ContentType); err != nil {
		return models.Upload{}, "", apperr.Internal("store image", err)
	}

	if err := s.uploads.Create(ctx, upload); err != nil {
		return models.Upload{}, "", apperr.Internal("record upload", err)
	}

	s.log.Debug().
		Str("user_id", userID).
		Str("object_key", upload.ObjectKey).
		Int64("size_bytes", upload.SizeBytes).
		Msg("image stored")

	return upload, s.store.PublicURL(upload.ObjectKey), nil
}

// PurgeSuperseded removes objects that were replaced before the cutoff,
// then drops their ledger rows. Object removal failures are logged and the
// row kept for the next run.
func (s *UploadService) PurgeSuperseded(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	uploads, err := s.uploads.ListSuperseded(ctx, olderThan, limit)
	if err != nil {
		return 0, fmt.Errorf("list superseded uploads: %w", err)
	}

	purged := 0
	for _, upload := range uploads {
		if err := s.store.Remove(ctx, upload.ObjectKey); err != nil {
			s.log.Warn().Err(err).Str("object_key", upload.ObjectKey).Msg("remove object failed")
			continue
		}
		if err := s.uploads.Delete(ctx, upload.ID); err != nil {
			s.log.Warn().Err(err).Str("upload_id", upload.ID).Msg("delete upload row failed")
			continue
		}
		purged++
	}
	return purged, nil
}

func buildObjectKey(kind models.UploadKind, imageType sniffer.ImageType) string {
	datePrefix := time.Now().UTC().Format("2006/01/02")
	return path.Join(string(kind), datePrefix, fmt.Sprintf("%s.%s", ids.New(), imageType))
}
